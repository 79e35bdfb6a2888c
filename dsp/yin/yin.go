// Package yin implements the YIN fundamental-frequency estimation
// algorithm over fixed-size analysis windows.
//
// Reference: de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental
// frequency estimator for speech and music"
package yin

import (
	"fmt"
	"math"
)

// Method selects how the difference function is computed. Both methods
// produce the same estimates; they differ in cost profile.
type Method int

const (
	// MethodDirect computes the difference function in the time domain,
	// O(N²/4) but allocation-free. The right choice on the live path.
	MethodDirect Method = iota
	// MethodFFT computes the difference function through FFT
	// autocorrelation, O(N log N) but allocating per call. The right
	// choice for batch analysis.
	MethodFFT
)

// Params defines configuration options for the estimator.
type Params struct {
	WindowSize   int     `json:"window_size"`   // Analysis window length in samples
	SampleRate   float64 `json:"sample_rate"`   // Audio sampling rate in Hz
	Threshold    float64 `json:"threshold"`     // CMND absolute threshold
	MinFrequency float64 `json:"min_frequency"` // Minimum accepted frequency in Hz
	MaxFrequency float64 `json:"max_frequency"` // Maximum accepted frequency in Hz
	Method       Method  `json:"method"`
}

// DefaultParams returns the standard engine configuration for the given
// sample rate.
func DefaultParams(sampleRate float64) Params {
	return Params{
		WindowSize:   2048,
		SampleRate:   sampleRate,
		Threshold:    0.12,
		MinFrequency: 75.0,
		MaxFrequency: 2000.0,
		Method:       MethodDirect,
	}
}

// Estimate is the raw output of one YIN pass on one window.
type Estimate struct {
	Frequency  float64 `json:"frequency"`  // Fundamental frequency in Hz
	Confidence float64 `json:"confidence"` // Periodicity strength in [0, 1]
}

// Estimator runs YIN over fixed-size windows. It owns pre-allocated
// scratch buffers sized at construction, so Detect never allocates with
// MethodDirect. It holds no state between windows, but concurrent
// estimators must not share an instance because of the scratch buffers.
type Estimator struct {
	params Params
	half   int

	diff []float64 // difference function, indexed by lag
	cmnd []float64 // cumulative mean normalized difference
}

// New creates an estimator from params. Window size must be an even value
// of at least 8 samples and the sample rate must be positive; both are
// construction-time preconditions, never mid-stream errors.
func New(params Params) (*Estimator, error) {
	if params.WindowSize < 8 || params.WindowSize%2 != 0 {
		return nil, fmt.Errorf("window size must be even and at least 8, got %d", params.WindowSize)
	}
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %v", params.SampleRate)
	}
	if params.MinFrequency <= 0 || params.MaxFrequency <= params.MinFrequency {
		return nil, fmt.Errorf(
			"invalid frequency band [%v, %v]",
			params.MinFrequency, params.MaxFrequency,
		)
	}

	half := params.WindowSize / 2
	return &Estimator{
		params: params,
		half:   half,
		diff:   make([]float64, half),
		cmnd:   make([]float64, half),
	}, nil
}

// NewWithDefaults creates an estimator with DefaultParams at the given
// sample rate.
func NewWithDefaults(sampleRate float64) (*Estimator, error) {
	return New(DefaultParams(sampleRate))
}

// Params returns the estimator configuration.
func (e *Estimator) Params() Params {
	return e.params
}

// Detect runs one YIN pass over the window, which must match the
// configured window size. The second return value is false when no
// confident pitch exists in the window; that is the normal steady state
// for silence and noise, not an error.
func (e *Estimator) Detect(window []float64) (Estimate, bool) {
	if len(window) != e.params.WindowSize {
		panic(fmt.Sprintf("yin: window length %d does not match configured size %d", len(window), e.params.WindowSize))
	}

	switch e.params.Method {
	case MethodFFT:
		e.differenceFFT(window)
	default:
		e.differenceDirect(window)
	}

	e.normalize()

	tau, ok := e.absoluteThreshold()
	if !ok {
		return Estimate{}, false
	}

	refined := e.parabolicInterpolation(tau)
	frequency := e.params.SampleRate / refined
	if frequency < e.params.MinFrequency || frequency > e.params.MaxFrequency {
		return Estimate{}, false
	}

	confidence := 1.0 - e.cmnd[tau]
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	return Estimate{Frequency: frequency, Confidence: confidence}, true
}

// differenceDirect fills e.diff with the squared difference of the window
// against a lag-shifted copy of itself, the dominant cost of the pipeline.
func (e *Estimator) differenceDirect(window []float64) {
	half := e.half
	for tau := 1; tau < half; tau++ {
		sum := 0.0
		for j := 0; j < half; j++ {
			delta := window[j] - window[j+tau]
			sum += delta * delta
		}
		e.diff[tau] = sum
	}
}

// normalize fills e.cmnd with the cumulative mean normalized difference.
func (e *Estimator) normalize() {
	e.cmnd[0] = 1.0
	runningSum := 0.0
	for tau := 1; tau < e.half; tau++ {
		runningSum += e.diff[tau]
		if runningSum > 0 {
			e.cmnd[tau] = e.diff[tau] * float64(tau) / runningSum
		} else {
			e.cmnd[tau] = 1.0
		}
	}
}

// absoluteThreshold finds the first lag whose CMND drops below the
// threshold, then walks forward to the bottom of that dip so the estimate
// lands on the true local minimum rather than the first crossing.
func (e *Estimator) absoluteThreshold() (int, bool) {
	for tau := 2; tau <= e.half-2; tau++ {
		if e.cmnd[tau] >= e.params.Threshold {
			continue
		}
		for tau+1 < e.half && e.cmnd[tau+1] < e.cmnd[tau] {
			tau++
		}
		return tau, true
	}
	return 0, false
}

// parabolicInterpolation refines the integer lag by fitting a parabola
// through the chosen point and its neighbors, clamped at array bounds.
func (e *Estimator) parabolicInterpolation(tau int) float64 {
	x0 := tau - 1
	if x0 < 0 {
		x0 = tau
	}
	x2 := tau + 1
	if x2 >= e.half {
		x2 = tau
	}

	y0 := e.cmnd[x0]
	y1 := e.cmnd[tau]
	y2 := e.cmnd[x2]

	denom := 2.0 * (y0 - 2.0*y1 + y2)
	if math.Abs(denom) <= 1e-8 {
		return float64(tau)
	}
	return float64(tau) + (y0-y2)/denom
}
