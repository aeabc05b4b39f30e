package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/signify/internal/landmark"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	frame landmark.Frame
	err   error
	calls  int
	closes int
	cerr   error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFrame sets the landmarks that will be returned by Detect.
func (m *MockDetector) SetFrame(f landmark.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame = f
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured landmarks or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (landmark.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return landmark.Frame{}, m.err
	}
	return m.frame, nil
}

// SetCloseError sets the error that will be returned by Close.
func (m *MockDetector) SetCloseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cerr = err
}

// Closes returns how many times Close was called.
func (m *MockDetector) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// Close records the call and returns the configured error.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return m.cerr
}
