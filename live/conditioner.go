// Package live provides the continuous pitch-tracking pipeline: signal
// conditioning over raw YIN estimates and the per-chunk detection session.
package live

import (
	"github.com/soniclabs/pitchline/dsp/energy"
	"github.com/soniclabs/pitchline/dsp/notes"
	"github.com/soniclabs/pitchline/dsp/yin"
)

// Octave-jump suppression policy: a frequency ratio inside either band
// looks like an octave error and is held back, at most OctaveSuppressMax
// consecutive times. On the next suspected jump the new value is accepted,
// so a genuine octave change is never frozen out.
const (
	OctaveSuppressMax = 3

	octaveUpLow    = 1.85
	octaveUpHigh   = 2.15
	octaveDownLow  = 0.46
	octaveDownHigh = 0.54
)

const medianSlots = 3

// Verdict is the outcome of one conditioning step.
type Verdict int

const (
	// VerdictNone emits nothing and leaves the prior published state
	// untouched (e.g. a low-confidence attack transient before a note is
	// showing).
	VerdictNone Verdict = iota
	// VerdictClear invalidates the current note (silence, lost pitch, or
	// confidence dropping below the exit threshold).
	VerdictClear
	// VerdictNote publishes a fresh validated estimate.
	VerdictNote
)

// StepConfig carries the tunable thresholds for a single conditioning
// step. The session snapshots its atomics into one of these per window, so
// a concurrent tunable change takes effect on the next window, never
// mid-computation.
type StepConfig struct {
	SilenceThresholdDB float64
	ConfidenceEnter    float64
	ConfidenceExit     float64
	A4ReferenceHz      float64
}

// Conditioned is a validated, debounced pitch estimate ready for
// conversion into the published record.
type Conditioned struct {
	Frequency  float64
	Confidence float64
	Note       notes.Note
}

// Estimator is the raw pitch source the conditioner consumes. Satisfied
// by *yin.Estimator.
type Estimator interface {
	Detect(window []float64) (yin.Estimate, bool)
}

// Conditioner turns the per-window stream of raw YIN estimates into
// debounced note decisions. It owns the "is a note currently showing"
// state and all smoothing history; it is mutated only on the producer
// context and reset whenever the session (re)starts.
type Conditioner struct {
	estimator Estimator

	showing       bool
	prevFrequency float64
	octaveHold    int

	median      [medianSlots]float64
	medianIdx   int
	medianCount int
}

// NewConditioner wraps an estimator with conditioning state.
func NewConditioner(estimator Estimator) *Conditioner {
	return &Conditioner{estimator: estimator}
}

// Reset returns the conditioner to its zero state, as on session start.
func (c *Conditioner) Reset() {
	c.showing = false
	c.prevFrequency = 0
	c.octaveHold = 0
	c.median = [medianSlots]float64{}
	c.medianIdx = 0
	c.medianCount = 0
}

// Showing reports whether a note is currently being shown.
func (c *Conditioner) Showing() bool {
	return c.showing
}

// Step processes one analysis window. The stage order is load-bearing:
// silence gating must precede estimation, and octave suppression must
// precede the median filter so jumps are caught rather than smoothed over.
func (c *Conditioner) Step(window []float64, cfg StepConfig) (Conditioned, Verdict) {
	// Stage 1: silence gate.
	if energy.WindowLevelDB(window) < cfg.SilenceThresholdDB {
		c.clear()
		return Conditioned{}, VerdictClear
	}

	// Stage 2: pitch estimation.
	raw, ok := c.estimator.Detect(window)
	if !ok {
		c.clear()
		return Conditioned{}, VerdictClear
	}

	// Stage 3: confidence hysteresis. Losing a note requires dropping
	// below the exit threshold; gaining one requires clearing the higher
	// entry threshold. Between the two, an attack transient neither shows
	// nor clears.
	if c.showing {
		if raw.Confidence < cfg.ConfidenceExit {
			c.clear()
			return Conditioned{}, VerdictClear
		}
	} else if raw.Confidence < cfg.ConfidenceEnter {
		return Conditioned{}, VerdictNone
	}

	// Stage 4: octave-jump suppression.
	frequency := c.suppressOctaveJump(raw.Frequency)

	// Stage 5: median smoothing. Never suppresses emission.
	filtered := c.pushMedian(frequency)

	// Stage 6: note conversion. A conversion failure here means the
	// frequency escaped the estimator band into conversion's wider limits;
	// leave prior state as the last known good rather than flickering.
	note, ok := notes.Convert(filtered, cfg.A4ReferenceHz)
	if !ok {
		return Conditioned{}, VerdictNone
	}

	c.showing = true
	return Conditioned{
		Frequency:  filtered,
		Confidence: raw.Confidence,
		Note:       note,
	}, VerdictNote
}

func (c *Conditioner) clear() {
	c.showing = false
	c.prevFrequency = 0
	c.octaveHold = 0
	c.medianIdx = 0
	c.medianCount = 0
}

// suppressOctaveJump holds the previous frequency when the new one looks
// like an octave error, up to OctaveSuppressMax consecutive windows.
func (c *Conditioner) suppressOctaveJump(frequency float64) float64 {
	used := frequency
	if c.prevFrequency > 0 {
		ratio := frequency / c.prevFrequency
		looksLikeJump := (ratio > octaveUpLow && ratio < octaveUpHigh) ||
			(ratio > octaveDownLow && ratio < octaveDownHigh)
		if looksLikeJump {
			if c.octaveHold < OctaveSuppressMax {
				c.octaveHold++
				used = c.prevFrequency
			} else {
				// Persisted past the hold budget: treat it as a real
				// octave change.
				c.octaveHold = 0
			}
		} else {
			c.octaveHold = 0
		}
	}
	c.prevFrequency = used
	return used
}

// pushMedian records the frequency into the 3-slot rolling buffer and
// returns the smoothed value: identity for one sample, mean of two, true
// median once full.
func (c *Conditioner) pushMedian(frequency float64) float64 {
	c.median[c.medianIdx] = frequency
	c.medianIdx = (c.medianIdx + 1) % medianSlots
	if c.medianCount < medianSlots {
		c.medianCount++
	}

	switch c.medianCount {
	case 1:
		return frequency
	case 2:
		a := c.median[0]
		b := c.median[1]
		return (a + b) / 2.0
	default:
		return medianOfThree(c.median[0], c.median[1], c.median[2])
	}
}

func medianOfThree(a, b, c float64) float64 {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	if a > b {
		b = a
	}
	return b
}
