package classifier

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Demo is a stand-in classifier that ignores its input and answers with a
// uniformly random class and a confidence in [0.7, 1.0). It exists so the
// pipeline can run end to end without a trained model and must not be used
// to judge recognition quality.
type Demo struct {
	classes int
	mu      sync.Mutex
	rng     *rand.Rand
}

// NewDemo creates a demo classifier over classes output classes. A zero
// seed draws from the clock.
func NewDemo(classes int, seed uint64) *Demo {
	if classes <= 0 {
		classes = 1
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Demo{
		classes: classes,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// SetClasses changes the range of drawn class indices. Values below one
// are ignored.
func (d *Demo) SetClasses(n int) {
	if n <= 0 {
		return
	}
	d.mu.Lock()
	d.classes = n
	d.mu.Unlock()
}

// Classes returns the current class count.
func (d *Demo) Classes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classes
}

// Ready always reports true.
func (d *Demo) Ready() bool { return true }

// Infer returns a random prediction.
func (d *Demo) Infer(ctx context.Context, _ [][]float64) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return Prediction{
		ClassIndex: d.rng.IntN(d.classes),
		Confidence: 0.7 + d.rng.Float64()*0.3,
	}, nil
}

// Close is a no-op for the demo classifier.
func (d *Demo) Close() error { return nil }
