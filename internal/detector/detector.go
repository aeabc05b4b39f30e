// Package detector extracts face, pose and hand landmarks from video frames.
package detector

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/signify/internal/landmark"
)

// Detector defines the interface for landmark detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the landmarks found in it.
	// A frame with nothing detected yields an empty landmark.Frame.
	Detect(frame *gocv.Mat) (landmark.Frame, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for landmark detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath overrides the lookup of holistic_service.py.
	ScriptPath string

	// PythonPath overrides the interpreter lookup.
	PythonPath string

	// IdleTimeout stops the helper process after this long without frames.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		IdleTimeout:     30 * time.Second,
	}
}
