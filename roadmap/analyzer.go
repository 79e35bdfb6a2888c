// Package roadmap provides offline analysis of a decoded audio buffer
// into a time-segmented sequence of dominant notes.
package roadmap

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/soniclabs/pitchline/dsp/buffer"
	"github.com/soniclabs/pitchline/dsp/energy"
	"github.com/soniclabs/pitchline/dsp/notes"
	"github.com/soniclabs/pitchline/dsp/yin"
	"github.com/soniclabs/pitchline/logging"
)

const midiBuckets = 128

// Params configures an offline analyzer. Zero values fall back to the
// documented defaults; SampleRate is required.
type Params struct {
	SampleRate         float64    `json:"sample_rate"`          // Required, Hz
	WindowSize         int        `json:"window_size"`          // Default 2048
	HopSize            int        `json:"hop_size"`             // Default 1024
	Method             yin.Method `json:"method"`               // Default MethodFFT
	SegmentSeconds     float64    `json:"segment_seconds"`      // Default 5
	MaxSeconds         float64    `json:"max_seconds"`          // Processing cap, default 300
	SilenceThresholdDB float64    `json:"silence_threshold_db"` // Default -40 dBFS
	MinConfidence      float64    `json:"min_confidence"`       // Vote floor, default 0.85
	A4ReferenceHz      float64    `json:"a4_reference_hz"`      // Default 440
}

// DefaultParams returns the standard offline configuration for the given
// sample rate.
func DefaultParams(sampleRate float64) Params {
	return Params{
		SampleRate:         sampleRate,
		WindowSize:         2048,
		HopSize:            1024,
		Method:             yin.MethodFFT,
		SegmentSeconds:     5.0,
		MaxSeconds:         300.0,
		SilenceThresholdDB: -40.0,
		MinConfidence:      0.85,
		A4ReferenceHz:      notes.DefaultA4,
	}
}

// Segment is one fixed-duration slice of the roadmap. Immutable once
// appended to the result.
type Segment struct {
	StartSec   float64 `json:"start_sec"`
	EndSec     float64 `json:"end_sec"`
	NoteName   string  `json:"note_name"`
	Octave     int     `json:"octave"`
	FullName   string  `json:"full_name"`
	Confidence float64 `json:"confidence"`
	HasNote    bool    `json:"has_note"`
}

// Result is the full output of one offline analysis.
type Result struct {
	Segments         []Segment `json:"segments"`
	DominantNote     string    `json:"dominant_note"`
	TotalDurationSec float64   `json:"total_duration_sec"`
}

// Analyzer re-runs the live window/estimate pipeline over a full decoded
// buffer, replacing the continuous conditioning with per-segment
// confidence-weighted voting over MIDI note numbers.
//
// An Analyzer holds scratch state and must not be shared across
// concurrent analyses; in particular it never shares an estimator with a
// live session.
type Analyzer struct {
	params    Params
	ring      *buffer.Ring
	estimator *yin.Estimator
	window    []float64
	log       logging.Logger
}

// NewAnalyzer creates an analyzer. Window size must be a power of two and
// the sample rate positive.
func NewAnalyzer(params Params) (*Analyzer, error) {
	if params.WindowSize == 0 {
		params.WindowSize = 2048
	}
	if params.HopSize == 0 {
		params.HopSize = params.WindowSize / 2
	}
	if params.SegmentSeconds == 0 {
		params.SegmentSeconds = 5.0
	}
	if params.MaxSeconds == 0 {
		params.MaxSeconds = 300.0
	}
	if params.SilenceThresholdDB == 0 {
		params.SilenceThresholdDB = -40.0
	}
	if params.MinConfidence == 0 {
		params.MinConfidence = 0.85
	}
	if params.A4ReferenceHz == 0 {
		params.A4ReferenceHz = notes.DefaultA4
	}
	if params.HopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive, got %d", params.HopSize)
	}
	if params.SegmentSeconds <= 0 {
		return nil, fmt.Errorf("segment duration must be positive, got %v", params.SegmentSeconds)
	}

	ring, err := buffer.NewRing(params.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("creating window accumulator: %w", err)
	}

	yinParams := yin.DefaultParams(params.SampleRate)
	yinParams.WindowSize = params.WindowSize
	yinParams.Method = params.Method
	estimator, err := yin.New(yinParams)
	if err != nil {
		return nil, fmt.Errorf("creating pitch estimator: %w", err)
	}

	return &Analyzer{
		params:    params,
		ring:      ring,
		estimator: estimator,
		window:    make([]float64, params.WindowSize),
		log: logging.WithFields(logging.Fields{
			"component":   "roadmap_analyzer",
			"sample_rate": params.SampleRate,
		}),
	}, nil
}

// Analyze drives the decoded mono buffer through the pipeline and returns
// the segmented roadmap. An empty buffer yields an empty result, not an
// error. Input beyond the configured processing cap is ignored.
func (a *Analyzer) Analyze(pcm []float64) Result {
	if len(pcm) == 0 {
		return Result{Segments: []Segment{}}
	}

	maxSamples := int(a.params.MaxSeconds * a.params.SampleRate)
	if len(pcm) > maxSamples {
		a.log.Warn("input exceeds processing cap, truncating", logging.Fields{
			"input_sec": float64(len(pcm)) / a.params.SampleRate,
			"cap_sec":   a.params.MaxSeconds,
		})
		pcm = pcm[:maxSamples]
	}

	a.ring.Reset()

	segmentSamples := int(a.params.SegmentSeconds * a.params.SampleRate)
	totalSec := float64(len(pcm)) / a.params.SampleRate

	var votes, globalVotes [midiBuckets]float64
	segments := []Segment{}
	segStartSec := 0.0
	samplesIntoSegment := 0

	finalize := func(endSec float64) {
		seg := a.finalizeSegment(votes[:], segStartSec, endSec)
		segments = append(segments, seg)
		if seg.HasNote {
			floats.Add(globalVotes[:], votes[:])
		}
		for i := range votes {
			votes[i] = 0
		}
		segStartSec = endSec
		samplesIntoSegment = 0
	}

	for offset := 0; offset < len(pcm); offset += a.params.HopSize {
		end := offset + a.params.HopSize
		if end > len(pcm) {
			end = len(pcm)
		}
		chunk := pcm[offset:end]
		a.ring.Push(chunk)
		samplesIntoSegment += len(chunk)

		if a.ring.IsFull() {
			a.ring.SnapshotInto(a.window)
			a.accumulateVotes(a.window, votes[:])
		}

		if samplesIntoSegment >= segmentSamples {
			finalize(segStartSec + a.params.SegmentSeconds)
		}
	}

	// The buffer ended mid-segment: flush the partial segment the same way.
	if samplesIntoSegment > 0 {
		finalize(totalSec)
	}

	result := Result{
		Segments:         segments,
		DominantNote:     dominantNote(globalVotes[:], a.params.A4ReferenceHz),
		TotalDurationSec: totalSec,
	}
	a.log.Debug("analysis complete", logging.Fields{
		"segments":      len(result.Segments),
		"dominant_note": result.DominantNote,
		"duration_sec":  result.TotalDurationSec,
	})
	return result
}

// accumulateVotes runs the silence gate and estimator over one window and
// adds a confidence-weighted vote for the nearest MIDI note.
func (a *Analyzer) accumulateVotes(window []float64, votes []float64) {
	if energy.WindowLevelDB(window) < a.params.SilenceThresholdDB {
		return
	}
	est, ok := a.estimator.Detect(window)
	if !ok || est.Confidence < a.params.MinConfidence {
		return
	}
	midi := notes.NearestMIDI(est.Frequency, a.params.A4ReferenceHz)
	votes[midi] += est.Confidence
}

// finalizeSegment turns one segment's vote accumulator into a Segment.
func (a *Analyzer) finalizeSegment(votes []float64, startSec, endSec float64) Segment {
	total := floats.Sum(votes)
	if total == 0 {
		return Segment{StartSec: startSec, EndSec: endSec}
	}

	winner := floats.MaxIdx(votes)
	note, ok := notes.Convert(notes.MIDIFrequency(winner, a.params.A4ReferenceHz), a.params.A4ReferenceHz)
	if !ok {
		// Winning bucket maps outside the nameable band (extreme MIDI
		// numbers); report the segment as unvoiced.
		return Segment{StartSec: startSec, EndSec: endSec}
	}

	return Segment{
		StartSec:   startSec,
		EndSec:     endSec,
		NoteName:   note.Name,
		Octave:     note.Octave,
		FullName:   note.FullName(),
		Confidence: votes[winner] / total,
		HasNote:    true,
	}
}

// dominantNote picks the single strongest MIDI bucket across the run.
func dominantNote(globalVotes []float64, a4 float64) string {
	if floats.Sum(globalVotes) == 0 {
		return ""
	}
	winner := floats.MaxIdx(globalVotes)
	note, ok := notes.Convert(notes.MIDIFrequency(winner, a4), a4)
	if !ok {
		return ""
	}
	return note.FullName()
}
