package source

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ayusman/signify/internal/landmark"
)

// Simulated generates plausible random landmarks for running the pipeline
// without a camera. Points outside the face and pose subsets are zero.
type Simulated struct {
	mu       sync.Mutex
	rng      *rand.Rand
	dropRate float64
}

// NewSimulated creates a simulated source. dropRate is the probability that
// a frame has nothing detected. A zero seed draws from the clock.
func NewSimulated(seed uint64, dropRate float64) *Simulated {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Simulated{
		rng:      rand.New(rand.NewPCG(seed, seed>>1|1)),
		dropRate: dropRate,
	}
}

func (s *Simulated) Open() error { return nil }

func (s *Simulated) Close() error { return nil }

// Next returns a random frame with face, pose and both hands.
func (s *Simulated) Next(ctx context.Context) (landmark.Frame, error) {
	if err := ctx.Err(); err != nil {
		return landmark.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dropRate > 0 && s.rng.Float64() < s.dropRate {
		return landmark.Frame{}, nil
	}

	face := make([]landmark.Point3D, 468)
	for _, idx := range landmark.FaceIndices() {
		face[idx] = s.bodyPoint()
	}
	pose := make([]landmark.Point3D, 33)
	for _, idx := range landmark.PoseIndices() {
		pose[idx] = s.bodyPoint()
	}

	return landmark.Frame{
		Face: face,
		Pose: pose,
		Hands: []landmark.Hand{
			s.hand("Left"),
			s.hand("Right"),
		},
	}, nil
}

// bodyPoint draws x in [0.1, 0.9), y in [0.2, 0.8) and z in [0.3, 0.7).
func (s *Simulated) bodyPoint() landmark.Point3D {
	return landmark.Point3D{
		X: s.rng.Float64()*0.8 + 0.1,
		Y: s.rng.Float64()*0.6 + 0.2,
		Z: s.rng.Float64()*0.4 + 0.3,
	}
}

// hand places a wrist in the middle of the image and scatters the remaining
// points within 0.2 of it on each axis.
func (s *Simulated) hand(side string) landmark.Hand {
	wrist := landmark.Point3D{
		X: 0.3 + s.rng.Float64()*0.4,
		Y: 0.4 + s.rng.Float64()*0.4,
		Z: 0,
	}

	points := make([]landmark.Point3D, landmark.HandPoints)
	points[landmark.Wrist] = wrist
	for i := 1; i < landmark.HandPoints; i++ {
		points[i] = landmark.Point3D{
			X: wrist.X + s.rng.Float64()*0.4 - 0.2,
			Y: wrist.Y + s.rng.Float64()*0.4 - 0.2,
			Z: wrist.Z + s.rng.Float64()*0.4 - 0.2,
		}
	}
	return landmark.Hand{Points: points, Handedness: side, Score: 0.9}
}
