package buffer

import (
	"testing"
)

func TestNewRingRejectsNonPowerOfTwo(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{0, -1, 3, 1000, 2047} {
		if _, err := NewRing(capacity); err == nil {
			t.Errorf("NewRing(%d): expected error, got nil", capacity)
		}
	}

	for _, capacity := range []int{1, 2, 1024, 2048} {
		if _, err := NewRing(capacity); err != nil {
			t.Errorf("NewRing(%d): unexpected error: %v", capacity, err)
		}
	}
}

func TestRingFillsAcrossChunks(t *testing.T) {
	t.Parallel()

	r, err := NewRing(8)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	r.Push([]float64{1, 2, 3})
	if r.IsFull() {
		t.Fatal("ring reported full after 3 of 8 samples")
	}
	r.Push([]float64{4, 5, 6})
	if r.IsFull() {
		t.Fatal("ring reported full after 6 of 8 samples")
	}
	r.Push([]float64{7, 8})
	if !r.IsFull() {
		t.Fatal("ring not full after 8 samples")
	}

	out := make([]float64, 8)
	r.SnapshotInto(out)
	for i, want := range []float64{1, 2, 3, 4, 5, 6, 7, 8} {
		if out[i] != want {
			t.Fatalf("snapshot[%d] = %v, want %v", i, out[i], want)
		}
	}
}

func TestRingKeepsMostRecentWindow(t *testing.T) {
	t.Parallel()

	r, err := NewRing(4)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	// 6 samples into a 4-slot ring: the first two are overwritten.
	r.Push([]float64{1, 2, 3, 4, 5, 6})

	out := make([]float64, 4)
	r.SnapshotInto(out)
	for i, want := range []float64{3, 4, 5, 6} {
		if out[i] != want {
			t.Fatalf("snapshot[%d] = %v, want %v", i, out[i], want)
		}
	}

	// Snapshot is stable with no intervening Push.
	again := make([]float64, 4)
	r.SnapshotInto(again)
	for i := range out {
		if out[i] != again[i] {
			t.Fatalf("repeated snapshot differs at %d: %v vs %v", i, out[i], again[i])
		}
	}
}

func TestRingChunkLargerThanCapacity(t *testing.T) {
	t.Parallel()

	r, err := NewRing(4)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	chunk := make([]float64, 11)
	for i := range chunk {
		chunk[i] = float64(i)
	}
	r.Push(chunk)

	if !r.IsFull() {
		t.Fatal("ring not full after oversized chunk")
	}

	out := make([]float64, 4)
	r.SnapshotInto(out)
	for i, want := range []float64{7, 8, 9, 10} {
		if out[i] != want {
			t.Fatalf("snapshot[%d] = %v, want %v", i, out[i], want)
		}
	}
}

func TestRingReset(t *testing.T) {
	t.Parallel()

	r, err := NewRing(4)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	r.Push([]float64{1, 2, 3, 4, 5})
	r.Reset()

	if r.IsFull() {
		t.Fatal("ring still full after Reset")
	}

	r.Push([]float64{9, 9, 9, 9})
	out := make([]float64, 4)
	r.SnapshotInto(out)
	for i := range out {
		if out[i] != 9 {
			t.Fatalf("snapshot[%d] = %v after reset+refill, want 9", i, out[i])
		}
	}
}
