// Package session implements the detection session: the Idle/Running state
// machine that buffers admitted frames and dispatches full windows for
// inference.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/signify/internal/inference"
	"github.com/ayusman/signify/internal/landmark"
	"github.com/ayusman/signify/internal/sequence"
)

// ErrAlreadyRunning is returned by owners of a session that refuse to
// restart one that is running.
var ErrAlreadyRunning = errors.New("session already running")

// State is the view of a session handed to consumers.
type State struct {
	Running        bool              `json:"running"`
	SessionID      string            `json:"session_id,omitempty"`
	FrameCount     int               `json:"frame_count"`
	SequenceLength int               `json:"sequence_length"`
	Admitted       int               `json:"admitted"`
	Result         *inference.Result `json:"result"`
}

// ResultFunc receives each result stored by a session.
type ResultFunc func(sessionID string, r inference.Result)

// Session owns one sequence window and one result slot.
//
// Ticks never overlap: a tick arriving while another is executing is
// skipped. Inference runs in the background with at most one call in
// flight; full windows produced meanwhile collapse into a single pending
// snapshot and the newest one wins. Results that complete after Stop, or
// after a restart, are dropped.
//
// A result's callbacks run as one batch. Start and Stop wait for a batch
// already running, so no callback sees a result after Stop returns. A
// ResultFunc therefore must not call Start or Stop.
type Session struct {
	dispatcher *inference.Dispatcher
	log        logrus.FieldLogger

	tick sync.Mutex
	// fanout is held across a result's callbacks; taken before mu.
	fanout sync.Mutex

	mu        sync.Mutex
	running   bool
	id        string
	gen       uint64
	window    *sequence.Window
	admitted  int
	result    *inference.Result
	inflight  bool
	pending   [][]float64
	cancel    context.CancelFunc
	inferCtx  context.Context
	callbacks []ResultFunc

	wg sync.WaitGroup
}

// New creates an idle session that dispatches through d.
func New(d *inference.Dispatcher, log logrus.FieldLogger) *Session {
	return &Session{
		dispatcher: d,
		log:        log,
		window:     sequence.NewWindow(landmark.SequenceLength),
	}
}

// OnResult registers fn to be called, outside the session lock, with every
// result the session stores.
func (s *Session) OnResult(fn ResultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// Start moves the session to Running with an empty window and returns the
// new session ID. Starting a running session resets it.
func (s *Session) Start() string {
	s.fanout.Lock()
	defer s.fanout.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.running = true
	s.id = uuid.NewString()
	s.inferCtx, s.cancel = context.WithCancel(context.Background())

	s.log.WithField("session", s.id).Info("session started")
	return s.id
}

// Stop moves the session to Idle, clearing the window and the last result.
// Any in-flight inference is cancelled and its result discarded. Stopping
// an idle session only repeats the reset.
func (s *Session) Stop() {
	s.fanout.Lock()
	defer s.fanout.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.WithFields(logrus.Fields{
			"session":  s.id,
			"admitted": s.admitted,
		}).Info("session stopped")
	}

	s.resetLocked()
	s.running = false
	s.id = ""
}

func (s *Session) resetLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.window.Clear()
	s.admitted = 0
	s.result = nil
	s.pending = nil
}

// Running reports whether the session is in the Running state.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ID returns the current session ID, empty when idle.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State returns a snapshot of the consumer-facing state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Running:        s.running,
		SessionID:      s.id,
		FrameCount:     s.window.Len(),
		SequenceLength: s.window.Cap(),
		Admitted:       s.admitted,
	}
	if s.result != nil {
		r := *s.result
		st.Result = &r
	}
	return st
}

// Tick runs one pass over frame: normalize, gate, buffer and, when the
// window is full, schedule inference. It reports whether the tick ran; a
// tick is skipped when the session is idle, ctx is done, or another tick is
// still executing.
func (s *Session) Tick(ctx context.Context, frame landmark.Frame) bool {
	if ctx.Err() != nil {
		return false
	}
	if !s.tick.TryLock() {
		s.log.Debug("tick skipped: previous tick still running")
		return false
	}
	defer s.tick.Unlock()

	vec := landmark.Normalize(frame)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}

	if !landmark.HasEnoughData(vec) {
		return true
	}

	s.window.Push(vec)
	s.admitted++

	if !s.window.IsFull() {
		return true
	}

	snapshot := s.window.Snapshot()
	if s.inflight {
		s.pending = snapshot
		return true
	}
	s.launchLocked(snapshot)
	return true
}

func (s *Session) launchLocked(snapshot [][]float64) {
	s.inflight = true
	gen := s.gen
	ctx := s.inferCtx

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, ok := s.dispatcher.Dispatch(ctx, snapshot)
		s.complete(gen, res, ok)
	}()
}

func (s *Session) complete(gen uint64, res inference.Result, ok bool) {
	s.fanout.Lock()
	defer s.fanout.Unlock()
	s.mu.Lock()

	s.inflight = false

	var (
		notify    []ResultFunc
		sessionID string
	)
	switch {
	case gen != s.gen:
		s.log.Debug("discarding late inference result")
	case ok:
		s.result = &res
		notify = append(notify, s.callbacks...)
		sessionID = s.id
	}

	if s.running && s.pending != nil {
		next := s.pending
		s.pending = nil
		s.launchLocked(next)
	}

	s.mu.Unlock()

	for _, fn := range notify {
		fn(sessionID, res)
	}
}

// Wait blocks until no inference is in flight.
func (s *Session) Wait() {
	s.wg.Wait()
}
