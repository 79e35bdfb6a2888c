// Package buffer provides fixed-capacity sample buffers for streaming
// audio processing.
package buffer

import (
	"fmt"
)

// Ring is a fixed-capacity circular accumulator that assembles an
// overlapping analysis window from a stream of smaller capture chunks.
// Capacity must be a power of two so the write cursor can advance with a
// bitmask instead of a modulo.
//
// Ring is not safe for concurrent use; it is owned by a single producer.
type Ring struct {
	buf      []float64
	mask     int
	writePos int
	seen     int // total samples written, saturates at capacity
}

// NewRing creates a ring accumulator with the given capacity.
// The capacity must be a positive power of two.
func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("ring capacity must be a positive power of two, got %d", capacity)
	}
	return &Ring{
		buf:  make([]float64, capacity),
		mask: capacity - 1,
	}, nil
}

// Capacity returns the fixed window size of the ring.
func (r *Ring) Capacity() int {
	return len(r.buf)
}

// Push appends chunk samples at the current write cursor, overwriting the
// oldest samples once the ring is full. Chunks smaller or larger than the
// capacity are both fine. Never allocates, never fails.
func (r *Ring) Push(chunk []float64) {
	for _, s := range chunk {
		r.buf[r.writePos] = s
		r.writePos = (r.writePos + 1) & r.mask
	}
	if r.seen < len(r.buf) {
		r.seen += len(chunk)
		if r.seen > len(r.buf) {
			r.seen = len(r.buf)
		}
	}
}

// IsFull reports whether at least capacity samples have ever been written.
func (r *Ring) IsFull() bool {
	return r.seen == len(r.buf)
}

// SnapshotInto unrolls the ring starting at the oldest retained sample into
// out, which must have length equal to the capacity. With no intervening
// Push the same order is produced every call. Only meaningful once IsFull.
func (r *Ring) SnapshotInto(out []float64) {
	if len(out) != len(r.buf) {
		panic(fmt.Sprintf("buffer: snapshot length %d does not match ring capacity %d", len(out), len(r.buf)))
	}
	// Oldest retained sample sits at the write cursor once the ring has
	// wrapped.
	n := copy(out, r.buf[r.writePos:])
	copy(out[n:], r.buf[:r.writePos])
}

// Reset zeroes the buffer and all cursors, discarding any accumulated
// samples.
func (r *Ring) Reset() {
	for i := range r.buf {
		r.buf[i] = 0
	}
	r.writePos = 0
	r.seen = 0
}
