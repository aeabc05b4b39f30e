package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/signify/internal/landmark"
)

const scriptName = "holistic_service.py"

// MediaPipeDetector implements Detector using a Python MediaPipe Holistic
// subprocess. Frames go to the helper as a 4-byte big-endian length followed
// by JPEG bytes; the helper answers with one JSON line per frame.
type MediaPipeDetector struct {
	config     Config
	scriptPath string
	log        logrus.FieldLogger

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config, log logrus.FieldLogger) (*MediaPipeDetector, error) {
	scriptPath := config.ScriptPath
	if scriptPath == "" {
		scriptPath = findScript()
	}
	if scriptPath == "" {
		return nil, fmt.Errorf("%s not found", scriptName)
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultConfig().IdleTimeout
	}

	return &MediaPipeDetector{
		config:     config,
		scriptPath: scriptPath,
		log:        log,
	}, nil
}

// Detect analyzes a frame and returns its landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) (landmark.Frame, error) {
	if frame == nil || frame.Empty() {
		return landmark.Frame{}, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return landmark.Frame{}, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return landmark.Frame{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	if err := writeFrame(d.stdin, buf.GetBytes()); err != nil {
		d.shutdown()
		return landmark.Frame{}, err
	}

	result, err := readResponse(d.stdout)
	if err != nil {
		d.shutdown()
		return landmark.Frame{}, err
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return result, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	pythonPath := d.config.PythonPath
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, d.scriptPath,
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
	)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start holistic service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.lastUsed = time.Now()

	d.log.WithFields(logrus.Fields{
		"python": pythonPath,
		"script": d.scriptPath,
	}).Info("holistic service started")

	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	d.log.Debug("holistic service stopped")
	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// writeFrame sends one length-prefixed image.
func writeFrame(w io.Writer, data []byte) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := w.Write(length); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// readResponse reads one JSON line and converts it to a landmark.Frame.
func readResponse(r *bufio.Reader) (landmark.Frame, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return landmark.Frame{}, fmt.Errorf("read response: %w", err)
	}

	var resp jsonFrame
	if err := json.Unmarshal(line, &resp); err != nil {
		return landmark.Frame{}, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return landmark.Frame{}, fmt.Errorf("holistic service: %s", resp.Error)
	}
	return resp.toFrame(), nil
}

func findScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", scriptName),
		filepath.Join("..", "scripts", scriptName),
		filepath.Join(execDir, "scripts", scriptName),
		filepath.Join(os.Getenv("HOME"), ".signify", "scripts", scriptName),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
// It checks for venv/bin/python relative to the project directory.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".signify/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonFrame is the JSON structure from the Python service. Missing entities
// are omitted or null.
type jsonFrame struct {
	Face  []jsonPoint `json:"face"`
	Pose  []jsonPoint `json:"pose"`
	Hands []jsonHand  `json:"hands"`
	Error string      `json:"error,omitempty"`
}

type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (f jsonFrame) toFrame() landmark.Frame {
	out := landmark.Frame{
		Face: toPoints(f.Face),
		Pose: toPoints(f.Pose),
	}
	for _, h := range f.Hands {
		out.Hands = append(out.Hands, landmark.Hand{
			Points:     toPoints(h.Points),
			Handedness: h.Handedness,
			Score:      h.Score,
		})
	}
	return out
}

func toPoints(src []jsonPoint) []landmark.Point3D {
	if len(src) == 0 {
		return nil
	}
	out := make([]landmark.Point3D, len(src))
	for i, p := range src {
		out[i] = landmark.Point3D{X: p.X, Y: p.Y, Z: p.Z}
	}
	return out
}
