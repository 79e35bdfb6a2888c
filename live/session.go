package live

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soniclabs/pitchline/dsp/buffer"
	"github.com/soniclabs/pitchline/dsp/notes"
	"github.com/soniclabs/pitchline/dsp/yin"
	"github.com/soniclabs/pitchline/logging"
)

// DefaultStalenessMS is how old a published estimate may be, relative to
// read time, before Latest treats it as absent.
const DefaultStalenessMS = 200.0

// SessionParams configures a live detection session. Zero values fall back
// to the documented defaults; SampleRate has no default because the host
// must report the real device rate.
type SessionParams struct {
	SampleRate         float64    `json:"sample_rate"`          // Required, Hz
	WindowSize         int        `json:"window_size"`          // Default 2048
	Method             yin.Method `json:"method"`               // Default MethodDirect
	SilenceThresholdDB float64    `json:"silence_threshold_db"` // Default -40 dBFS
	ConfidenceEnter    float64    `json:"confidence_enter"`     // Default 0.85
	ConfidenceExit     float64    `json:"confidence_exit"`      // Default 0.75
	A4ReferenceHz      float64    `json:"a4_reference_hz"`      // Default 440
	StalenessMS        float64    `json:"staleness_ms"`         // Default 200
}

// DefaultSessionParams returns the standard live configuration for the
// given sample rate.
func DefaultSessionParams(sampleRate float64) SessionParams {
	return SessionParams{
		SampleRate:         sampleRate,
		WindowSize:         2048,
		Method:             yin.MethodDirect,
		SilenceThresholdDB: -40.0,
		ConfidenceEnter:    0.85,
		ConfidenceExit:     0.75,
		A4ReferenceHz:      notes.DefaultA4,
		StalenessMS:        DefaultStalenessMS,
	}
}

// Estimate is the published result of one analysis window, read by a
// consumer through Latest. Readers always observe a whole value, never a
// mix of two writes.
type Estimate struct {
	Frequency   float64 `json:"frequency"`
	NoteName    string  `json:"note_name"`
	Octave      int     `json:"octave"`
	FullName    string  `json:"full_name"`
	Cents       int     `json:"cents"`
	Confidence  float64 `json:"confidence"`
	TimestampMS float64 `json:"timestamp_ms"`
	IsValid     bool    `json:"is_valid"`
}

// Stats counts what a session has done since construction or the last
// Reset.
type Stats struct {
	WindowsProcessed uint64 `json:"windows_processed"`
	Published        uint64 `json:"published"`
	Rejected         uint64 `json:"rejected"`
}

// Session wires the ring accumulator, estimator, conditioner and note
// conversion into a per-chunk processing loop.
//
// OnChunk must be called from a single producer context, chunks in order,
// never concurrently. Latest and the tunable setters are safe from any
// goroutine at any time.
type Session struct {
	ring        *buffer.Ring
	conditioner *Conditioner
	window      []float64
	stalenessMS float64

	silenceDB atomicFloat64
	confEnter atomicFloat64
	confExit  atomicFloat64
	a4        atomicFloat64

	mu     sync.Mutex
	latest Estimate

	windows   atomic.Uint64
	published atomic.Uint64
	rejected  atomic.Uint64

	nowMS func() float64

	log logging.Logger
}

// NewSession creates a session. The window size must be a power of two
// (ring precondition) and the sample rate positive; both are programmer
// errors surfaced at construction, never mid-stream.
func NewSession(params SessionParams) (*Session, error) {
	if params.WindowSize == 0 {
		params.WindowSize = 2048
	}
	if params.SilenceThresholdDB == 0 {
		params.SilenceThresholdDB = -40.0
	}
	if params.ConfidenceEnter == 0 {
		params.ConfidenceEnter = 0.85
	}
	if params.ConfidenceExit == 0 {
		params.ConfidenceExit = 0.75
	}
	if params.A4ReferenceHz == 0 {
		params.A4ReferenceHz = notes.DefaultA4
	}
	if params.StalenessMS == 0 {
		params.StalenessMS = DefaultStalenessMS
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

	s := &Session{
		ring:        ring,
		conditioner: NewConditioner(estimator),
		window:      make([]float64, params.WindowSize),
		stalenessMS: params.StalenessMS,
		nowMS:       wallClockMS,
		log: logging.WithFields(logging.Fields{
			"component":   "live_session",
			"sample_rate": params.SampleRate,
		}),
	}
	s.silenceDB.Store(params.SilenceThresholdDB)
	s.confEnter.Store(params.ConfidenceEnter)
	s.confExit.Store(params.ConfidenceExit)
	s.a4.Store(params.A4ReferenceHz)

	s.log.Debug("session created", logging.Fields{"window_size": params.WindowSize})
	return s, nil
}

// OnChunk feeds one capture chunk into the session. Once the accumulator
// has a full window, every subsequent chunk triggers one analysis step
// over the most recent window. Runs allocation-free with MethodDirect.
func (s *Session) OnChunk(samples []float64) {
	s.ring.Push(samples)
	if !s.ring.IsFull() {
		return
	}

	s.ring.SnapshotInto(s.window)
	s.windows.Add(1)

	cfg := StepConfig{
		SilenceThresholdDB: s.silenceDB.Load(),
		ConfidenceEnter:    s.confEnter.Load(),
		ConfidenceExit:     s.confExit.Load(),
		A4ReferenceHz:      s.a4.Load(),
	}

	result, verdict := s.conditioner.Step(s.window, cfg)
	switch verdict {
	case VerdictNote:
		s.published.Add(1)
		s.store(Estimate{
			Frequency:   result.Frequency,
			NoteName:    result.Note.Name,
			Octave:      result.Note.Octave,
			FullName:    result.Note.FullName(),
			Cents:       result.Note.Cents,
			Confidence:  result.Confidence,
			TimestampMS: s.nowMS(),
			IsValid:     true,
		})
	case VerdictClear:
		s.rejected.Add(1)
		s.store(Estimate{TimestampMS: s.nowMS()})
	case VerdictNone:
		s.rejected.Add(1)
	}
}

// Latest returns the most recently published estimate. It returns false
// when nothing valid has been published or when the estimate is older than
// the staleness window relative to read time. Safe to call before the
// producer has ever run.
func (s *Session) Latest() (Estimate, bool) {
	s.mu.Lock()
	est := s.latest
	s.mu.Unlock()

	if !est.IsValid {
		return Estimate{}, false
	}
	if s.nowMS()-est.TimestampMS > s.stalenessMS {
		return Estimate{}, false
	}
	return est, true
}

// Reset re-zeroes the accumulator and conditioning state and invalidates
// the published estimate. Called on session start and after an external
// interruption (e.g. the audio device was reclaimed by the host).
func (s *Session) Reset() {
	s.ring.Reset()
	s.conditioner.Reset()
	s.store(Estimate{})
	s.windows.Store(0)
	s.published.Store(0)
	s.rejected.Store(0)
	s.log.Debug("session reset")
}

// Stats returns processing counters since construction or the last Reset.
func (s *Session) Stats() Stats {
	return Stats{
		WindowsProcessed: s.windows.Load(),
		Published:        s.published.Load(),
		Rejected:         s.rejected.Load(),
	}
}

// SetSilenceThresholdDB updates the silence gate, effective next window.
func (s *Session) SetSilenceThresholdDB(db float64) { s.silenceDB.Store(db) }

// SetConfidenceEnter updates the hysteresis entry threshold, effective
// next window.
func (s *Session) SetConfidenceEnter(v float64) { s.confEnter.Store(v) }

// SetConfidenceExit updates the hysteresis exit threshold, effective next
// window.
func (s *Session) SetConfidenceExit(v float64) { s.confExit.Store(v) }

// SetA4Reference updates the tuning reference in Hz, effective next
// window.
func (s *Session) SetA4Reference(hz float64) { s.a4.Store(hz) }

func (s *Session) store(est Estimate) {
	s.mu.Lock()
	s.latest = est
	s.mu.Unlock()
}

func wallClockMS() float64 {
	return float64(time.Now().UnixNano()) / 1e6
}

// atomicFloat64 is a float64 stored through bit-casting into an
// atomic.Uint64: single-word visibility without locks, which is all a
// tunable scalar needs.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Store(v float64) {
	a.bits.Store(math.Float64bits(v))
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}
