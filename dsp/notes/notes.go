// Package notes converts frequencies to equal-tempered note names.
//
// MIDI note 69 is A4 by definition; octave numbering follows the
// scientific-pitch convention (MIDI 60 = C4).
package notes

import (
	"fmt"
	"math"
)

// DefaultA4 is the standard concert pitch reference in Hz.
const DefaultA4 = 440.0

// Conversion accepts frequencies in (MinFrequency, MaxFrequency].
const (
	MinFrequency = 20.0
	MaxFrequency = 5000.0
)

// ChromaticNames is the fixed sharps-only pitch-class table, indexed by
// MIDI note number mod 12.
var ChromaticNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Note is the result of converting a frequency to the nearest
// equal-tempered note.
type Note struct {
	Name   string `json:"name"`   // Pitch class, e.g. "A#"
	Octave int    `json:"octave"` // Scientific pitch octave, e.g. 4
	Cents  int    `json:"cents"`  // Deviation from the nearest note, signed
	MIDI   int    `json:"midi"`   // Nearest MIDI note number
}

// FullName returns the note name with its octave, e.g. "A4".
func (n Note) FullName() string {
	return fmt.Sprintf("%s%d", n.Name, n.Octave)
}

// Convert maps a frequency in Hz to the nearest note for the given A4
// reference. Returns false for frequencies outside (20, 5000] Hz.
//
// Cents is the rounded log2 deviation and is intentionally not clamped to
// [-50, 50]: a frequency almost exactly between two notes can round to a
// magnitude slightly above 50, and callers treat that as a near-tie.
func Convert(frequency, a4 float64) (Note, bool) {
	if frequency <= MinFrequency || frequency > MaxFrequency {
		return Note{}, false
	}

	noteNumber := 12.0*math.Log2(frequency/a4) + 69.0
	nearestMIDI := int(math.Round(noteNumber))
	nearestFreq := a4 * math.Pow(2, float64(nearestMIDI-69)/12.0)
	cents := int(math.Round(1200.0 * math.Log2(frequency/nearestFreq)))

	return Note{
		Name:   ChromaticNames[((nearestMIDI%12)+12)%12],
		Octave: int(math.Floor(float64(nearestMIDI)/12.0)) - 1,
		Cents:  cents,
		MIDI:   nearestMIDI,
	}, true
}

// NearestMIDI returns the MIDI note number closest to the frequency for the
// given A4 reference, clamped to the valid [0, 127] range.
func NearestMIDI(frequency, a4 float64) int {
	midi := int(math.Round(12.0*math.Log2(frequency/a4) + 69.0))
	if midi < 0 {
		return 0
	}
	if midi > 127 {
		return 127
	}
	return midi
}

// MIDIFrequency returns the equal-tempered frequency of a MIDI note number
// for the given A4 reference.
func MIDIFrequency(midi int, a4 float64) float64 {
	return a4 * math.Pow(2, float64(midi-69)/12.0)
}
