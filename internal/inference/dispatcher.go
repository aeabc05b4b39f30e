// Package inference turns a full sequence window into a detection result.
package inference

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ayusman/signify/internal/classifier"
	"github.com/ayusman/signify/internal/labels"
	"github.com/ayusman/signify/internal/landmark"
	"github.com/ayusman/signify/internal/sequence"
)

// Result is one recognized sign.
type Result struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	ClassIndex int       `json:"class_index"`
	At         time.Time `json:"at"`
}

// Confident reports whether the result meets threshold. Consumers use it to
// gate display; the dispatcher itself never filters on confidence.
func (r Result) Confident(threshold float64) bool {
	return r.Confidence >= threshold
}

// Dispatcher validates and preprocesses a window, runs the classifier once
// and maps the class index to a label.
type Dispatcher struct {
	classifier classifier.Classifier
	log        logrus.FieldLogger

	mu      sync.RWMutex
	table   labels.Table
	limiter *rate.Limiter

	now func() time.Time
}

// NewDispatcher creates a dispatcher. A nil table uses the built-in labels.
func NewDispatcher(c classifier.Classifier, table labels.Table, log logrus.FieldLogger) *Dispatcher {
	if table == nil {
		table = labels.Default()
	}
	return &Dispatcher{
		classifier: c,
		log:        log,
		table:      table,
		now:        time.Now,
	}
}

// SetLabels replaces the label table used for subsequent results. A
// classifier whose class range is adjustable follows the new table size.
func (d *Dispatcher) SetLabels(table labels.Table) {
	if table == nil {
		table = labels.Default()
	}
	d.mu.Lock()
	d.table = table
	d.mu.Unlock()

	if r, ok := d.classifier.(classRanger); ok {
		r.SetClasses(table.Span())
	}
}

type classRanger interface {
	SetClasses(n int)
}

// Labels returns the current label table.
func (d *Dispatcher) Labels() labels.Table {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.table
}

// SetMaxRate bounds classifier calls to perSecond. Zero or less removes the
// bound.
func (d *Dispatcher) SetMaxRate(perSecond float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if perSecond <= 0 {
		d.limiter = nil
		return
	}
	d.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Classifier returns the underlying classifier.
func (d *Dispatcher) Classifier() classifier.Classifier { return d.classifier }

// Dispatch classifies snapshot. It reports false when there is no result
// for this call: the window is not full, the classifier is not ready, the
// input is invalid, the rate bound is hit, or inference failed.
func (d *Dispatcher) Dispatch(ctx context.Context, snapshot [][]float64) (Result, bool) {
	if len(snapshot) != landmark.SequenceLength {
		return Result{}, false
	}
	if !d.classifier.Ready() {
		return Result{}, false
	}
	if !sequence.Validate(snapshot) {
		d.log.Debug("dropping invalid window")
		return Result{}, false
	}

	d.mu.RLock()
	limiter := d.limiter
	table := d.table
	d.mu.RUnlock()

	if limiter != nil && !limiter.Allow() {
		return Result{}, false
	}

	pred, err := d.classifier.Infer(ctx, sequence.Preprocess(snapshot))
	if err != nil {
		switch {
		case errors.Is(err, classifier.ErrNotReady):
			d.log.Debug("classifier not ready")
		case ctx.Err() != nil:
			d.log.WithError(err).Debug("inference cancelled")
		default:
			d.log.WithError(err).Warn("inference failed")
		}
		return Result{}, false
	}

	return Result{
		Label:      table.Lookup(pred.ClassIndex),
		Confidence: clampUnit(pred.Confidence),
		ClassIndex: pred.ClassIndex,
		At:         d.now(),
	}, true
}

func clampUnit(x float64) float64 {
	if x != x || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
