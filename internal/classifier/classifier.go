// Package classifier defines the sequence classifier capability the
// inference dispatcher drives, together with its implementations: a demo
// stand-in and three real-model backends (ONNX Runtime, an external
// process, and an HTTP inference service).
package classifier

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// ErrNotReady is returned by Infer when the model cannot serve requests yet.
var ErrNotReady = errors.New("classifier not ready")

// Kind selects a classifier implementation.
type Kind string

const (
	KindDemo    Kind = "demo"
	KindONNX    Kind = "onnx"
	KindProcess Kind = "process"
	KindHTTP    Kind = "http"
)

// Prediction is the raw classifier output for one window.
type Prediction struct {
	ClassIndex int     `json:"class_index"`
	Confidence float64 `json:"confidence"`
}

// Classifier scores a SequenceLength x InputDim window.
type Classifier interface {
	// Ready reports whether Infer can currently be served.
	Ready() bool

	// Infer classifies one preprocessed window. It returns ErrNotReady
	// when the model is unavailable and a wrapped error on failure.
	Infer(ctx context.Context, sequence [][]float64) (Prediction, error)

	// Close releases any resources held by the classifier.
	Close() error
}

// HealthChecker is implemented by classifiers whose readiness depends on
// an external service and must be checked before use.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Config holds the options for every classifier kind; each kind reads the
// fields it needs.
type Config struct {
	Kind Kind

	// Classes is the number of output classes. The ONNX backend prefers
	// the count declared by the model.
	Classes int

	// Seed makes the demo classifier deterministic when non-zero.
	Seed uint64

	// ONNX
	ModelPath   string
	LibraryPath string
	InputName   string
	OutputName  string

	// Process
	Command []string

	// HTTP
	URL string

	// Timeout bounds a single inference call for process and HTTP kinds.
	Timeout time.Duration
}

// New builds the classifier selected by cfg.Kind.
func New(cfg Config, log logrus.FieldLogger) (Classifier, error) {
	switch cfg.Kind {
	case KindDemo, "":
		log.Warn("using demo classifier: predictions are random and for testing only")
		return NewDemo(cfg.Classes, cfg.Seed), nil
	case KindONNX:
		return NewONNX(cfg)
	case KindProcess:
		return NewProcess(cfg.Command, cfg.Timeout)
	case KindHTTP:
		return NewHTTP(cfg.URL, cfg.Timeout), nil
	default:
		return nil, errors.Errorf("unknown classifier kind %q", cfg.Kind)
	}
}

// predictionResponse is the wire shape shared by the process and HTTP
// backends. A backend may answer with the chosen class directly or with the
// full probability vector.
type predictionResponse struct {
	ClassIndex    *int      `json:"class_index,omitempty"`
	Confidence    float64   `json:"confidence,omitempty"`
	Probabilities []float64 `json:"probabilities,omitempty"`
	Error         string    `json:"error,omitempty"`
}

func (r predictionResponse) prediction() (Prediction, error) {
	if r.Error != "" {
		return Prediction{}, errors.Errorf("model error: %s", r.Error)
	}
	if len(r.Probabilities) > 0 {
		return fromProbabilities(r.Probabilities), nil
	}
	if r.ClassIndex == nil {
		return Prediction{}, errors.New("response has neither class_index nor probabilities")
	}
	return Prediction{ClassIndex: *r.ClassIndex, Confidence: r.Confidence}, nil
}

// fromProbabilities picks the most likely class from a probability vector.
func fromProbabilities(probs []float64) Prediction {
	idx := floats.MaxIdx(probs)
	return Prediction{ClassIndex: idx, Confidence: probs[idx]}
}

// requestBody is the JSON payload sent to process and HTTP backends.
type requestBody struct {
	Sequence [][]float64 `json:"sequence"`
}
