package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/pkg/errors"
)

// DefaultTimeout bounds one inference call to an external backend.
const DefaultTimeout = 5 * time.Second

// Process runs an external model program once per window. The program
// receives {"sequence": [[...]]} on stdin and answers on stdout with either
// {"class_index": n, "confidence": c} or {"probabilities": [...]}.
type Process struct {
	path    string
	args    []string
	timeout time.Duration
}

// NewProcess resolves command[0] on PATH and returns a classifier that
// invokes it with the remaining arguments.
func NewProcess(command []string, timeout time.Duration) (*Process, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("process classifier needs a command")
	}

	path, err := exec.LookPath(command[0])
	if err != nil {
		return nil, errors.Wrapf(err, "find model program %q", command[0])
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Process{
		path:    path,
		args:    append([]string(nil), command[1:]...),
		timeout: timeout,
	}, nil
}

// Ready reports true once the program has been located.
func (p *Process) Ready() bool { return p.path != "" }

// Infer runs the model program on sequence.
func (p *Process) Infer(ctx context.Context, sequence [][]float64) (Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	reqJSON, err := json.Marshal(requestBody{Sequence: sequence})
	if err != nil {
		return Prediction{}, errors.Wrap(err, "marshal request")
	}

	cmd := exec.CommandContext(ctx, p.path, p.args...)
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return Prediction{}, errors.Errorf("model program timeout after %s", p.timeout)
	}
	if err != nil {
		if s := stderr.String(); s != "" {
			return Prediction{}, errors.Wrapf(err, "model program failed, stderr: %s", s)
		}
		return Prediction{}, errors.Wrap(err, "model program failed")
	}

	var resp predictionResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Prediction{}, errors.Wrapf(err, "parse model response %q", stdout.String())
	}
	return resp.prediction()
}

// Close is a no-op; each call starts its own process.
func (p *Process) Close() error { return nil }
