package classifier

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/ayusman/signify/internal/landmark"
)

// Default tensor names for an exported sequence model.
const (
	DefaultInputName  = "input"
	DefaultOutputName = "output"
)

// ONNX runs the sequence classifier through ONNX Runtime. Input and output
// tensors are allocated once and reused, so calls are serialized.
type ONNX struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	classes int
	closed  bool
}

// NewONNX loads cfg.ModelPath with ONNX Runtime. cfg.LibraryPath points at
// the onnxruntime shared library when it is not on the default search path.
//
// The class count comes from the model's output shape. cfg.Classes is only
// used when the model leaves that dimension dynamic.
func NewONNX(cfg Config) (*ONNX, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("onnx model path is required")
	}

	inputName := cfg.InputName
	if inputName == "" {
		inputName = DefaultInputName
	}
	outputName := cfg.OutputName
	if outputName == "" {
		outputName = DefaultOutputName
	}

	if !ort.IsInitialized() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "initialize onnx environment")
		}
	}

	_, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "read model info for %s", cfg.ModelPath)
	}
	classes, err := modelClasses(outputs, outputName, cfg.Classes)
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "create session options")
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(runtime.NumCPU())
	options.SetInterOpNumThreads(1)

	input, err := ort.NewEmptyTensor[float32](inputShape())
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}

	output, err := ort.NewEmptyTensor[float32](outputShape(classes))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "create output tensor")
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "create session for %s", cfg.ModelPath)
	}

	return &ONNX{
		session: session,
		input:   input,
		output:  output,
		classes: classes,
	}, nil
}

// inputShape is the [batch, frames, features] shape of one window.
func inputShape() ort.Shape {
	return ort.NewShape(1, int64(landmark.SequenceLength), int64(landmark.InputDim))
}

func outputShape(classes int) ort.Shape {
	return ort.NewShape(1, int64(classes))
}

// modelClasses reads the class count from the last dimension of the named
// output. A dynamic dimension falls back to fallback.
func modelClasses(outputs []ort.InputOutputInfo, name string, fallback int) (int, error) {
	for _, info := range outputs {
		if info.Name != name {
			continue
		}
		dims := info.Dimensions
		if len(dims) > 0 && dims[len(dims)-1] > 0 {
			return int(dims[len(dims)-1]), nil
		}
		if fallback > 0 {
			return fallback, nil
		}
		return 0, errors.Errorf("output %q has a dynamic class dimension and no class count is configured", name)
	}
	return 0, errors.Errorf("model has no output named %q", name)
}

// Ready reports whether the session is loaded.
func (m *ONNX) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && m.session != nil
}

// Infer copies the window into the input tensor and runs the model.
func (m *ONNX) Infer(ctx context.Context, sequence [][]float64) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.session == nil {
		return Prediction{}, ErrNotReady
	}

	if err := fillInput(m.input.GetData(), sequence); err != nil {
		return Prediction{}, err
	}

	if err := m.session.Run(); err != nil {
		return Prediction{}, errors.Wrap(err, "onnx inference")
	}

	out := m.output.GetData()
	probs := make([]float64, len(out))
	for i, p := range out {
		probs[i] = float64(p)
	}
	return fromProbabilities(probs), nil
}

// Close destroys the session and its tensors.
func (m *ONNX) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	if m.session != nil {
		err = m.session.Destroy()
	}
	if m.input != nil {
		m.input.Destroy()
	}
	if m.output != nil {
		m.output.Destroy()
	}
	return err
}

// fillInput flattens sequence row-major into dst.
func fillInput(dst []float32, sequence [][]float64) error {
	if len(dst) != landmark.SequenceLength*landmark.InputDim {
		return errors.Errorf("input tensor holds %d values, want %d", len(dst), landmark.SequenceLength*landmark.InputDim)
	}
	if len(sequence) != landmark.SequenceLength {
		return errors.Errorf("sequence has %d frames, want %d", len(sequence), landmark.SequenceLength)
	}

	for i, row := range sequence {
		if len(row) != landmark.InputDim {
			return errors.Errorf("frame %d has %d values, want %d", i, len(row), landmark.InputDim)
		}
		base := i * landmark.InputDim
		for j, x := range row {
			dst[base+j] = float32(x)
		}
	}
	return nil
}
