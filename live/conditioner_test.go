package live

import (
	"testing"

	"github.com/soniclabs/pitchline/dsp/yin"
	"github.com/soniclabs/pitchline/internal/testutil"
)

// scriptedEstimator replays a fixed sequence of raw estimates, letting the
// tests drive exact confidence and frequency sequences through the
// conditioner stages.
type scriptedEstimator struct {
	t         *testing.T
	estimates []yin.Estimate
	oks       []bool
	calls     int
}

func (s *scriptedEstimator) Detect(window []float64) (yin.Estimate, bool) {
	if s.calls >= len(s.estimates) {
		s.t.Fatalf("scripted estimator exhausted after %d calls", s.calls)
	}
	est := s.estimates[s.calls]
	ok := s.oks[s.calls]
	s.calls++
	return est, ok
}

func defaultStepConfig() StepConfig {
	return StepConfig{
		SilenceThresholdDB: -40.0,
		ConfidenceEnter:    0.85,
		ConfidenceExit:     0.75,
		A4ReferenceHz:      440.0,
	}
}

// loudWindow passes the default silence gate without carrying any real
// pitch; the scripted estimator supplies the estimate.
func loudWindow() []float64 {
	return testutil.DC(0.5, 2048)
}

func scripted(t *testing.T, estimates []yin.Estimate, oks []bool) *Conditioner {
	t.Helper()
	return NewConditioner(&scriptedEstimator{t: t, estimates: estimates, oks: oks})
}

func repeat(est yin.Estimate, n int) ([]yin.Estimate, []bool) {
	ests := make([]yin.Estimate, n)
	oks := make([]bool, n)
	for i := range ests {
		ests[i] = est
		oks[i] = true
	}
	return ests, oks
}

func TestSilenceClearsRegardlessOfPriorState(t *testing.T) {
	t.Parallel()

	ests, oks := repeat(yin.Estimate{Frequency: 220, Confidence: 0.95}, 1)
	c := scripted(t, ests, oks)
	cfg := defaultStepConfig()

	if _, verdict := c.Step(loudWindow(), cfg); verdict != VerdictNote {
		t.Fatalf("expected note on confident estimate, got verdict %d", verdict)
	}
	if !c.Showing() {
		t.Fatal("conditioner not showing after accepted note")
	}

	// A silent window clears without ever reaching the estimator (the
	// script has no second entry, so a Detect call would fail the test).
	if _, verdict := c.Step(make([]float64, 2048), cfg); verdict != VerdictClear {
		t.Fatalf("expected clear on silent window, got verdict %d", verdict)
	}
	if c.Showing() {
		t.Fatal("conditioner still showing after silence")
	}

	// Idempotent: silence again, same outcome.
	if _, verdict := c.Step(make([]float64, 2048), cfg); verdict != VerdictClear {
		t.Fatal("silence not idempotent")
	}
}

func TestNoPitchClears(t *testing.T) {
	t.Parallel()

	c := scripted(t,
		[]yin.Estimate{{Frequency: 220, Confidence: 0.95}, {}},
		[]bool{true, false},
	)
	cfg := defaultStepConfig()

	c.Step(loudWindow(), cfg)
	if _, verdict := c.Step(loudWindow(), cfg); verdict != VerdictClear {
		t.Fatal("expected clear when estimator reports no pitch")
	}
	if c.Showing() {
		t.Fatal("still showing after lost pitch")
	}
}

func TestHysteresisAsymmetry(t *testing.T) {
	t.Parallel()

	cfg := defaultStepConfig()

	// While showing, a dip to 0.80 (between exit 0.75 and enter 0.85)
	// keeps the note.
	c := scripted(t,
		[]yin.Estimate{
			{Frequency: 220, Confidence: 0.95},
			{Frequency: 220, Confidence: 0.80},
		},
		[]bool{true, true},
	)
	c.Step(loudWindow(), cfg)
	result, verdict := c.Step(loudWindow(), cfg)
	if verdict != VerdictNote {
		t.Fatalf("0.80 confidence while showing: verdict %d, want note", verdict)
	}
	if result.Note.FullName() != "A3" {
		t.Errorf("note = %s, want A3", result.Note.FullName())
	}

	// Not yet showing, the same 0.80 must neither show nor clear.
	c = scripted(t,
		[]yin.Estimate{{Frequency: 220, Confidence: 0.80}},
		[]bool{true},
	)
	if _, verdict := c.Step(loudWindow(), cfg); verdict != VerdictNone {
		t.Fatalf("0.80 confidence while not showing: verdict %d, want none", verdict)
	}
	if c.Showing() {
		t.Fatal("attack transient must not start showing")
	}

	// Dropping below exit while showing clears.
	c = scripted(t,
		[]yin.Estimate{
			{Frequency: 220, Confidence: 0.95},
			{Frequency: 220, Confidence: 0.70},
		},
		[]bool{true, true},
	)
	c.Step(loudWindow(), cfg)
	if _, verdict := c.Step(loudWindow(), cfg); verdict != VerdictClear {
		t.Fatal("confidence below exit must clear")
	}
}

func TestOctaveJumpHeldThenAccepted(t *testing.T) {
	t.Parallel()

	cfg := defaultStepConfig()

	// One window at f, then a sustained doubling. The first
	// OctaveSuppressMax doubled windows are held at f; the next one is
	// accepted as a genuine octave change.
	estimates := []yin.Estimate{{Frequency: 220, Confidence: 0.95}}
	for n := 0; n < OctaveSuppressMax+3; n++ {
		estimates = append(estimates, yin.Estimate{Frequency: 440, Confidence: 0.95})
	}
	oks := make([]bool, len(estimates))
	for i := range oks {
		oks[i] = true
	}
	c := scripted(t, estimates, oks)

	var outputs []float64
	for range estimates {
		result, verdict := c.Step(loudWindow(), cfg)
		if verdict != VerdictNote {
			t.Fatalf("unexpected verdict %d mid-sequence", verdict)
		}
		outputs = append(outputs, result.Frequency)
	}

	// Held windows keep the old frequency.
	for i := 1; i <= OctaveSuppressMax; i++ {
		if outputs[i] != 220 {
			t.Errorf("window %d: frequency %v, want held 220", i, outputs[i])
		}
	}
	// The jump is eventually accepted (median smoothing delays it by one
	// window after acceptance).
	final := outputs[len(outputs)-1]
	if final != 440 {
		t.Errorf("final frequency %v, want accepted 440", final)
	}
}

func TestOctaveCounterResetsOnNormalMotion(t *testing.T) {
	t.Parallel()

	cfg := defaultStepConfig()

	// jump, jump, normal, jump, jump, jump: no acceptance, every jump is
	// held, because the normal window resets the counter.
	freqs := []float64{220, 440, 440, 225, 450, 450, 450}
	estimates := make([]yin.Estimate, len(freqs))
	oks := make([]bool, len(freqs))
	for i, f := range freqs {
		estimates[i] = yin.Estimate{Frequency: f, Confidence: 0.95}
		oks[i] = true
	}
	c := scripted(t, estimates, oks)

	var outputs []float64
	for range freqs {
		result, _ := c.Step(loudWindow(), cfg)
		outputs = append(outputs, result.Frequency)
	}

	// Windows 1-2 held at 220, window 3 moves normally to 225, windows
	// 4-6 held at 225. Median output of the last window is 225.
	if outputs[len(outputs)-1] != 225 {
		t.Errorf("final output %v, want 225 (jumps held, counter reset by normal motion)", outputs[len(outputs)-1])
	}
}

func TestMedianFilterStages(t *testing.T) {
	t.Parallel()

	cfg := defaultStepConfig()

	tests := []struct {
		name  string
		freqs []float64
		want  []float64
	}{
		{"ascending", []float64{200, 210, 205}, []float64{200, 205, 205}},
		{"descending", []float64{210, 205, 200}, []float64{210, 207.5, 205}},
		{"middle first", []float64{205, 200, 210}, []float64{205, 202.5, 205}},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			estimates := make([]yin.Estimate, len(test.freqs))
			oks := make([]bool, len(test.freqs))
			for i, f := range test.freqs {
				estimates[i] = yin.Estimate{Frequency: f, Confidence: 0.95}
				oks[i] = true
			}
			c := scripted(t, estimates, oks)

			for i := range test.freqs {
				result, verdict := c.Step(loudWindow(), cfg)
				if verdict != VerdictNote {
					t.Fatalf("step %d: verdict %d, want note", i, verdict)
				}
				if result.Frequency != test.want[i] {
					t.Errorf("step %d: frequency %v, want %v", i, result.Frequency, test.want[i])
				}
			}
		})
	}
}

func TestResetClearsAllState(t *testing.T) {
	t.Parallel()

	ests, oks := repeat(yin.Estimate{Frequency: 300, Confidence: 0.95}, 2)
	c := scripted(t, ests, oks)
	cfg := defaultStepConfig()

	c.Step(loudWindow(), cfg)
	c.Reset()

	if c.Showing() {
		t.Fatal("showing after Reset")
	}

	// After reset the median history is gone: the next accepted value
	// passes through unsmoothed.
	result, verdict := c.Step(loudWindow(), cfg)
	if verdict != VerdictNote {
		t.Fatalf("verdict %d after reset, want note", verdict)
	}
	if result.Frequency != 300 {
		t.Errorf("frequency %v after reset, want raw 300", result.Frequency)
	}
}
