// Package sequence buffers admitted feature vectors into the fixed-size
// temporal window the classifier consumes, and validates and preprocesses
// window snapshots before inference.
package sequence

import (
	"fmt"

	"github.com/ayusman/signify/internal/landmark"
)

// Window is a fixed-capacity FIFO of feature vectors. Once full, every push
// evicts the oldest vector.
//
// A Window is not safe for concurrent use; its owner serializes access.
type Window struct {
	capacity int
	vectors  []landmark.Vector
}

// NewWindow creates a window holding at most capacity vectors. A
// non-positive capacity selects landmark.SequenceLength.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = landmark.SequenceLength
	}
	return &Window{
		capacity: capacity,
		vectors:  make([]landmark.Vector, 0, capacity),
	}
}

// Push appends v, evicting from the front until the window is back at
// capacity.
func (w *Window) Push(v landmark.Vector) {
	if len(w.vectors) >= w.capacity {
		// Shift left, dropping the oldest entries
		drop := len(w.vectors) - w.capacity + 1
		n := copy(w.vectors, w.vectors[drop:])
		for i := n; i < len(w.vectors); i++ {
			w.vectors[i] = nil
		}
		w.vectors = w.vectors[:n]
	}
	w.vectors = append(w.vectors, v)

	if len(w.vectors) > w.capacity {
		panic(fmt.Sprintf("sequence: window length %d exceeds capacity %d", len(w.vectors), w.capacity))
	}
}

// Len returns the number of buffered vectors.
func (w *Window) Len() int {
	return len(w.vectors)
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return w.capacity
}

// IsFull reports whether the window holds capacity vectors.
func (w *Window) IsFull() bool {
	return len(w.vectors) == w.capacity
}

// Snapshot returns a deep copy of the window contents, oldest first. It
// returns nil unless the window is full.
func (w *Window) Snapshot() [][]float64 {
	if !w.IsFull() {
		return nil
	}
	return w.Contents()
}

// Contents returns a deep copy of whatever the window currently holds.
func (w *Window) Contents() [][]float64 {
	out := make([][]float64, len(w.vectors))
	for i, v := range w.vectors {
		out[i] = append([]float64(nil), v...)
	}
	return out
}

// Clear empties the window.
func (w *Window) Clear() {
	for i := range w.vectors {
		w.vectors[i] = nil
	}
	w.vectors = w.vectors[:0]
}
