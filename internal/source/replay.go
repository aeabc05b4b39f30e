package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/ayusman/signify/internal/landmark"
)

// Replay plays back a fixed sequence of frames.
type Replay struct {
	mu     sync.Mutex
	frames []landmark.Frame
	index  int
	loop   bool
}

// NewReplay creates a replay source over frames.
func NewReplay(frames []landmark.Frame, loop bool) *Replay {
	return &Replay{frames: frames, loop: loop}
}

// LoadReplay reads a JSON array of frames from path.
func LoadReplay(path string, loop bool) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replay file: %w", err)
	}

	var frames []landmark.Frame
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("parse replay file: %w", err)
	}
	return NewReplay(frames, loop), nil
}

// Open rewinds to the first frame.
func (r *Replay) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = 0
	return nil
}

func (r *Replay) Close() error { return nil }

// Next returns the next frame, or ErrExhausted once a non-looping replay
// has run out.
func (r *Replay) Next(ctx context.Context) (landmark.Frame, error) {
	if err := ctx.Err(); err != nil {
		return landmark.Frame{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.frames) == 0 {
		return landmark.Frame{}, ErrExhausted
	}
	if r.index >= len(r.frames) {
		if !r.loop {
			return landmark.Frame{}, ErrExhausted
		}
		r.index = 0
	}

	f := r.frames[r.index]
	r.index++
	return f, nil
}

// Remaining reports how many frames are left before the replay ends or
// loops.
func (r *Replay) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames) - r.index
}
