package yin

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// differenceFFT fills e.diff with the same values as differenceDirect but
// through FFT autocorrelation:
//
//	d[τ] = Σ x[j]² + Σ x[j+τ]² − 2·Σ x[j]·x[j+τ]   (j = 0 .. N/2−1)
//
// The cross term is a linear correlation of the window's first half
// against the full window, computed with zero-padded FFTs so circular
// wraparound never reaches the lags of interest. This path allocates its
// FFT intermediates per call, so it is reserved for batch analysis.
func (e *Estimator) differenceFFT(window []float64) {
	n := len(window)
	half := e.half

	size := nextPow2(n + half)
	a := make([]float64, size)
	b := make([]float64, size)
	copy(a, window[:half])
	copy(b, window)

	fa := fft.FFTReal(a)
	fb := fft.FFTReal(b)
	prod := make([]complex128, size)
	for i := range prod {
		prod[i] = fb[i] * cmplx.Conj(fa[i])
	}
	corr := fft.IFFT(prod)

	// powerA is the window's leading-half energy; powerB slides one
	// sample per lag.
	powerA := 0.0
	for j := 0; j < half; j++ {
		powerA += window[j] * window[j]
	}

	powerB := powerA
	for tau := 1; tau < half; tau++ {
		powerB += window[tau+half-1]*window[tau+half-1] - window[tau-1]*window[tau-1]
		d := powerA + powerB - 2.0*real(corr[tau])
		// Floating-point cancellation can leave a tiny negative residue.
		if d < 0 {
			d = 0
		}
		e.diff[tau] = d
	}
}

func nextPow2(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}
