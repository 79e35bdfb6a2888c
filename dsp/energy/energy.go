// Package energy provides time-domain level measurements used for
// silence gating.
package energy

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// SilenceFloorDB is the sentinel level reported for an all-zero window.
// Any realistic silence threshold sits far above it.
const SilenceFloorDB = -200.0

// RMS calculates the root mean square of a signal. Returns 0 for an empty
// slice.
func RMS(signal []float64) float64 {
	if len(signal) == 0 {
		return 0.0
	}
	sumSquares := floats.Dot(signal, signal)
	return math.Sqrt(sumSquares / float64(len(signal)))
}

// LevelDB converts an RMS value to dBFS (20*log10), mapping rms == 0 to
// SilenceFloorDB instead of -Inf.
func LevelDB(rms float64) float64 {
	if rms <= 0 {
		return SilenceFloorDB
	}
	return 20.0 * math.Log10(rms)
}

// WindowLevelDB measures a window's level in dBFS in one call.
func WindowLevelDB(signal []float64) float64 {
	return LevelDB(RMS(signal))
}
