// Package app wires a frame source, the detection session and storage into
// the running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/signify/internal/classifier"
	"github.com/ayusman/signify/internal/inference"
	"github.com/ayusman/signify/internal/labels"
	"github.com/ayusman/signify/internal/session"
	"github.com/ayusman/signify/internal/source"
	"github.com/ayusman/signify/internal/store"
)

// DefaultTickInterval is the pipeline cadence.
const DefaultTickInterval = 100 * time.Millisecond

// healthRetry paces health checks while waiting for a classifier that is
// only checked until it first reports healthy.
var healthRetry = 5 * time.Second

// settingRunning remembers whether detection was on when the app last shut
// down, so the next start can resume it.
const settingRunning = "detection.running"

// Config holds configuration options for the application.
type Config struct {
	Store      *store.Store
	Source     source.Source
	Classifier classifier.Classifier
	// Labels is the initial label table; nil uses the built-in labels.
	Labels labels.Table

	TickInterval     time.Duration
	HealthInterval   time.Duration
	MaxInferenceRate float64

	Log logrus.FieldLogger
}

// App runs detection sessions: it pulls frames from the source on a fixed
// tick, feeds the session and records results.
type App struct {
	config     Config
	dispatcher *inference.Dispatcher
	session    *session.Session
	log        logrus.FieldLogger

	mu       sync.Mutex
	cancel   context.CancelFunc
	loopDone chan struct{}

	healthCancel context.CancelFunc
	healthDone   chan struct{}
	closeOnce    sync.Once
}

// New creates an App. When the classifier needs health checks the first one
// runs immediately. With a positive HealthInterval they repeat until Close;
// otherwise they repeat every healthRetry only until one succeeds.
func New(config Config) *App {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.Log == nil {
		config.Log = logrus.StandardLogger()
	}

	d := inference.NewDispatcher(config.Classifier, config.Labels, config.Log)
	d.SetMaxRate(config.MaxInferenceRate)

	a := &App{
		config:     config,
		dispatcher: d,
		session:    session.New(d, config.Log),
		log:        config.Log,
	}

	if config.Store != nil {
		a.session.OnResult(a.persist)
	}

	if hc, ok := config.Classifier.(classifier.HealthChecker); ok {
		ctx, cancel := context.WithCancel(context.Background())
		a.healthCancel = cancel
		a.healthDone = make(chan struct{})
		go a.runHealthChecks(ctx, hc)
	}

	return a
}

// OnResult registers fn for every stored result.
func (a *App) OnResult(fn session.ResultFunc) {
	a.session.OnResult(fn)
}

// State returns the current session state.
func (a *App) State() session.State {
	return a.session.State()
}

// Running reports whether a session is active.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

// Start opens the source, starts a new session and launches the pipeline.
// It returns session.ErrAlreadyRunning if a session is active.
func (a *App) Start() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return "", session.ErrAlreadyRunning
	}

	if err := a.config.Source.Open(); err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}

	id := a.session.Start()

	if a.config.Store != nil {
		if err := a.config.Store.Sessions().Create(&store.Session{ID: id}); err != nil {
			a.log.WithError(err).WithField("session", id).Warn("session not recorded")
		}
	}

	a.saveSetting(settingRunning, "true")

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.loopDone = make(chan struct{})
	go a.runPipeline(ctx, a.loopDone)

	a.log.WithFields(logrus.Fields{
		"session": id,
		"tick":    a.config.TickInterval,
	}).Info("detection pipeline started")
	return id, nil
}

// Stop halts the pipeline, clears the session and closes the source.
// Stopping an idle app is a no-op. Stop returns once no inference started
// by the stopped session is still running.
func (a *App) Stop() error {
	return a.stop(true)
}

func (a *App) stop(explicit bool) error {
	defer a.session.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel == nil {
		a.session.Stop()
		return nil
	}

	a.cancel()
	<-a.loopDone
	a.cancel = nil
	a.loopDone = nil

	if explicit {
		a.saveSetting(settingRunning, "false")
	}

	st := a.session.State()
	a.session.Stop()

	if a.config.Store != nil && st.SessionID != "" {
		if err := a.config.Store.Sessions().Stop(st.SessionID, st.Admitted); err != nil {
			a.log.WithError(err).WithField("session", st.SessionID).Warn("session stop not recorded")
		}
	}

	if err := a.config.Source.Close(); err != nil {
		a.log.WithError(err).Warn("error closing source")
	}

	a.log.WithFields(logrus.Fields{
		"session":  st.SessionID,
		"admitted": st.Admitted,
	}).Info("detection pipeline stopped")
	return nil
}

// Labels returns the active label table.
func (a *App) Labels() labels.Table {
	return a.dispatcher.Labels()
}

// SetLabels persists t and applies it to subsequent results.
func (a *App) SetLabels(t labels.Table) error {
	if a.config.Store != nil {
		if err := a.config.Store.Labels().Replace(t); err != nil {
			return fmt.Errorf("save labels: %w", err)
		}
	}
	a.dispatcher.SetLabels(t)
	a.log.WithField("labels", t.Len()).Info("label table replaced")
	return nil
}

// ResumeRequested reports whether detection was running when the app was
// last closed.
func (a *App) ResumeRequested() bool {
	if a.config.Store == nil {
		return false
	}
	v, err := a.config.Store.Settings().Get(settingRunning)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		a.log.WithError(err).Warn("read settings")
	}
	return v == "true"
}

// Close stops any session, the health checks and the classifier. A session
// running at Close is resumed by the next ResumeRequested check.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.stop(false)
		if a.healthCancel != nil {
			a.healthCancel()
			<-a.healthDone
		}
		err = a.config.Classifier.Close()
	})
	return err
}

func (a *App) saveSetting(key, value string) {
	if a.config.Store == nil {
		return
	}
	if err := a.config.Store.Settings().Set(key, value); err != nil {
		a.log.WithError(err).WithField("key", key).Warn("setting not saved")
	}
}

func (a *App) persist(sessionID string, r inference.Result) {
	d := &store.Detection{
		SessionID:  sessionID,
		Label:      r.Label,
		ClassIndex: r.ClassIndex,
		Confidence: r.Confidence,
		CreatedAt:  r.At,
	}
	if err := a.config.Store.Detections().Create(d); err != nil {
		a.log.WithError(err).WithField("session", sessionID).Warn("detection not recorded")
	}
}

func (a *App) runHealthChecks(ctx context.Context, hc classifier.HealthChecker) {
	defer close(a.healthDone)

	periodic := a.config.HealthInterval > 0
	period := a.config.HealthInterval
	timeout := classifier.DefaultTimeout
	if periodic {
		timeout = min(period, timeout)
	} else {
		period = healthRetry
	}

	check := func() bool {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := hc.CheckHealth(cctx)
		if err != nil && ctx.Err() == nil {
			a.log.WithError(err).Warn("classifier health check failed")
		}
		return err == nil
	}

	if check() && !periodic {
		return
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if check() && !periodic {
				return
			}
		}
	}
}
