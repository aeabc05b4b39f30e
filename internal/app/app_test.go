package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayusman/signify/internal/classifier"
	"github.com/ayusman/signify/internal/inference"
	"github.com/ayusman/signify/internal/labels"
	"github.com/ayusman/signify/internal/landmark"
	"github.com/ayusman/signify/internal/logging"
	"github.com/ayusman/signify/internal/session"
	"github.com/ayusman/signify/internal/source"
	"github.com/ayusman/signify/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func signingReplay() *source.Replay {
	return source.NewReplay([]landmark.Frame{landmark.SigningFrame()}, true)
}

func TestApp_DetectionPipeline(t *testing.T) {
	s := newStore(t)

	a := New(Config{
		Store:        s,
		Source:       signingReplay(),
		Classifier:   classifier.NewDemo(labels.Default().Len(), 11),
		TickInterval: 5 * time.Millisecond,
		Log:          logging.Discard(),
	})
	defer a.Close()

	var mu sync.Mutex
	var got []inference.Result
	a.OnResult(func(_ string, r inference.Result) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
	})

	id, err := a.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !a.Running() {
		t.Error("Running() = false after Start")
	}

	waitFor(t, "first result", func() bool { return a.State().Result != nil })

	st := a.State()
	if st.SessionID != id || st.FrameCount != landmark.SequenceLength {
		t.Errorf("state = %+v", st)
	}

	if err := a.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if a.Running() {
		t.Error("Running() = true after Stop")
	}
	if st := a.State(); st.Result != nil || st.FrameCount != 0 {
		t.Errorf("state after stop = %+v", st)
	}

	rec, err := s.Sessions().GetByID(id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if rec.StoppedAt == nil {
		t.Error("stored session not marked stopped")
	}
	if rec.Admitted < landmark.SequenceLength {
		t.Errorf("stored admitted = %d, want >= %d", rec.Admitted, landmark.SequenceLength)
	}

	dets, err := s.Detections().ListBySession(id)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(dets) == 0 || len(dets) != len(got) {
		t.Errorf("stored %d detections, callbacks saw %d", len(dets), len(got))
	}
}

func TestApp_StartTwice(t *testing.T) {
	a := New(Config{
		Source:     signingReplay(),
		Classifier: classifier.NewDemo(1, 1),
		Log:        logging.Discard(),
	})
	defer a.Close()

	if _, err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := a.Start(); !errors.Is(err, session.ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestApp_StopIdle(t *testing.T) {
	a := New(Config{Source: signingReplay(), Classifier: classifier.NewDemo(1, 1), Log: logging.Discard()})
	defer a.Close()

	for i := 0; i < 2; i++ {
		if err := a.Stop(); err != nil {
			t.Errorf("Stop() %d error = %v", i, err)
		}
	}
}

type failingSource struct {
	opened atomic.Bool
	err    error
	calls  atomic.Int32
}

func (f *failingSource) Open() error {
	f.opened.Store(true)
	return nil
}

func (f *failingSource) Next(context.Context) (landmark.Frame, error) {
	f.calls.Add(1)
	return landmark.Frame{}, f.err
}

func (f *failingSource) Close() error { return nil }

func TestApp_SourceErrorsCountAsEmptyTicks(t *testing.T) {
	src := &failingSource{err: errors.New("camera unplugged")}
	a := New(Config{
		Source:       src,
		Classifier:   classifier.NewDemo(1, 1),
		TickInterval: 2 * time.Millisecond,
		Log:          logging.Discard(),
	})
	defer a.Close()

	if _, err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "several ticks", func() bool { return src.calls.Load() >= 5 })

	st := a.State()
	if !st.Running {
		t.Error("session stopped after source errors")
	}
	if st.Admitted != 0 || st.FrameCount != 0 {
		t.Errorf("Admitted = %d, FrameCount = %d, want 0", st.Admitted, st.FrameCount)
	}
}

func TestApp_SourceExhausted(t *testing.T) {
	frames := make([]landmark.Frame, 5)
	for i := range frames {
		frames[i] = landmark.SigningFrame()
	}
	src := source.NewReplay(frames, false)

	a := New(Config{
		Source:       src,
		Classifier:   classifier.NewDemo(1, 1),
		TickInterval: 2 * time.Millisecond,
		Log:          logging.Discard(),
	})
	defer a.Close()

	a.Start()
	waitFor(t, "replay drained", func() bool { return src.Remaining() == 0 })
	time.Sleep(20 * time.Millisecond)

	if st := a.State(); st.Admitted != 5 || st.Result != nil {
		t.Errorf("state = %+v, want 5 admitted and no result", st)
	}
}

type badOpenSource struct{ failingSource }

func (b *badOpenSource) Open() error { return errors.New("no camera") }

func TestApp_StartOpenFailure(t *testing.T) {
	a := New(Config{Source: &badOpenSource{}, Classifier: classifier.NewDemo(1, 1), Log: logging.Discard()})
	defer a.Close()

	if _, err := a.Start(); err == nil {
		t.Fatal("expected error when the source cannot open")
	}
	if a.Running() || a.State().Running {
		t.Error("app running after failed start")
	}
}

func TestApp_SetLabels(t *testing.T) {
	s := newStore(t)
	a := New(Config{Store: s, Source: signingReplay(), Classifier: classifier.NewDemo(1, 1), Log: logging.Discard()})
	defer a.Close()

	if a.Labels().Lookup(0) != "Hello" {
		t.Errorf("default label 0 = %q", a.Labels().Lookup(0))
	}

	if err := a.SetLabels(labels.Table{0: "Bonjour"}); err != nil {
		t.Fatalf("SetLabels() error = %v", err)
	}
	if a.Labels().Lookup(0) != "Bonjour" {
		t.Errorf("label 0 = %q after SetLabels", a.Labels().Lookup(0))
	}

	stored, err := s.Labels().Table()
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	if stored.Lookup(0) != "Bonjour" || stored.Len() != 1 {
		t.Errorf("stored table = %v", stored)
	}
}

type healthClassifier struct {
	*classifier.Demo
	checks atomic.Int32
	closed atomic.Bool
}

func (h *healthClassifier) CheckHealth(context.Context) error {
	h.checks.Add(1)
	return nil
}

func (h *healthClassifier) Close() error {
	h.closed.Store(true)
	return nil
}

func TestApp_HealthChecks(t *testing.T) {
	c := &healthClassifier{Demo: classifier.NewDemo(1, 1)}
	a := New(Config{
		Source:         signingReplay(),
		Classifier:     c,
		HealthInterval: 5 * time.Millisecond,
		Log:            logging.Discard(),
	})

	waitFor(t, "repeated health checks", func() bool { return c.checks.Load() >= 3 })

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !c.closed.Load() {
		t.Error("classifier not closed")
	}

	n := c.checks.Load()
	time.Sleep(20 * time.Millisecond)
	if c.checks.Load() != n {
		t.Error("health checks continued after Close")
	}
}

func TestApp_HealthCheckWithoutInterval(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		posts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"class_index": 4, "confidence": 0.95}`))
	}))
	defer srv.Close()

	c := classifier.NewHTTP(srv.URL, time.Second)
	a := New(Config{
		Source:       signingReplay(),
		Classifier:   c,
		TickInterval: 5 * time.Millisecond,
		Log:          logging.Discard(),
	})
	defer a.Close()

	waitFor(t, "classifier ready", c.Ready)

	if _, err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "remote result", func() bool { return a.State().Result != nil })

	if got := a.State().Result.Label; got != "Yes" {
		t.Errorf("Label = %q, want Yes", got)
	}
	if posts.Load() == 0 {
		t.Error("inference service never called")
	}
}

func TestApp_HealthCheckRetriesUntilHealthy(t *testing.T) {
	old := healthRetry
	healthRetry = 5 * time.Millisecond
	t.Cleanup(func() { healthRetry = old })

	var healthy atomic.Bool
	var checks atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := classifier.NewHTTP(srv.URL, time.Second)
	a := New(Config{Source: signingReplay(), Classifier: c, Log: logging.Discard()})
	defer a.Close()

	waitFor(t, "repeated failing checks", func() bool { return checks.Load() >= 3 })
	if c.Ready() {
		t.Fatal("classifier ready while service unhealthy")
	}

	healthy.Store(true)
	waitFor(t, "classifier ready", c.Ready)

	n := checks.Load()
	time.Sleep(30 * time.Millisecond)
	if got := checks.Load(); got != n {
		t.Errorf("health checks continued after success: %d -> %d", n, got)
	}
}

func TestResolveLabels(t *testing.T) {
	log := logging.Discard()

	t.Run("no store uses defaults", func(t *testing.T) {
		tbl, err := ResolveLabels(nil, "", log)
		if err != nil {
			t.Fatalf("ResolveLabels() error = %v", err)
		}
		if tbl.Len() != labels.Default().Len() {
			t.Errorf("Len() = %d", tbl.Len())
		}
	})

	t.Run("empty store is seeded", func(t *testing.T) {
		s := newStore(t)
		if _, err := ResolveLabels(s, "", log); err != nil {
			t.Fatalf("ResolveLabels() error = %v", err)
		}
		stored, err := s.Labels().Table()
		if err != nil || stored.Lookup(1) != "Thank you" {
			t.Errorf("stored = %v, %v", stored, err)
		}
	})

	t.Run("stored table wins over defaults", func(t *testing.T) {
		s := newStore(t)
		s.Labels().Replace(labels.Table{0: "Custom"})

		tbl, err := ResolveLabels(s, "", log)
		if err != nil {
			t.Fatalf("ResolveLabels() error = %v", err)
		}
		if tbl.Lookup(0) != "Custom" || tbl.Len() != 1 {
			t.Errorf("table = %v", tbl)
		}
	})

	t.Run("mapping file wins and is saved", func(t *testing.T) {
		s := newStore(t)
		s.Labels().Replace(labels.Table{0: "Custom"})

		path := filepath.Join(t.TempDir(), "label_mapping.txt")
		os.WriteFile(path, []byte("Wave,0\nPoint,1\n"), 0644)

		tbl, err := ResolveLabels(s, path, log)
		if err != nil {
			t.Fatalf("ResolveLabels() error = %v", err)
		}
		if tbl.Lookup(1) != "Point" {
			t.Errorf("table = %v", tbl)
		}
		stored, _ := s.Labels().Table()
		if stored.Lookup(0) != "Wave" {
			t.Errorf("stored = %v", stored)
		}
	})

	t.Run("missing mapping file", func(t *testing.T) {
		if _, err := ResolveLabels(nil, filepath.Join(t.TempDir(), "absent.txt"), log); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestApp_ResumeRequested(t *testing.T) {
	s := newStore(t)
	newApp := func() *App {
		return New(Config{Store: s, Source: signingReplay(), Classifier: classifier.NewDemo(1, 1), Log: logging.Discard()})
	}

	a := newApp()
	if a.ResumeRequested() {
		t.Error("fresh store requested resume")
	}
	a.Start()
	a.Close()

	b := newApp()
	if !b.ResumeRequested() {
		t.Error("session running at Close should resume")
	}
	b.Start()
	b.Stop()
	b.Close()

	if newApp().ResumeRequested() {
		t.Error("explicit Stop should clear the resume flag")
	}
}
