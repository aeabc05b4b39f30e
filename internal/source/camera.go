package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayusman/signify/internal/capture"
	"github.com/ayusman/signify/internal/detector"
	"github.com/ayusman/signify/internal/landmark"
)

// Camera reads frames from a capture device and runs them through a
// landmark detector. When a cache is given, every captured frame is also
// stored there for the MJPEG stream.
type Camera struct {
	camera   capture.Camera
	detector detector.Detector
	cache    *capture.JPEGCache
}

// NewCamera creates a camera source that owns det. cache may be nil.
func NewCamera(cam capture.Camera, det detector.Detector, cache *capture.JPEGCache) *Camera {
	return &Camera{camera: cam, detector: det, cache: cache}
}

// Open opens the capture device.
func (c *Camera) Open() error {
	if err := c.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	return nil
}

// Next captures one frame and detects its landmarks.
func (c *Camera) Next(ctx context.Context) (landmark.Frame, error) {
	if err := ctx.Err(); err != nil {
		return landmark.Frame{}, err
	}

	mat, err := c.camera.ReadFrame()
	if err != nil {
		return landmark.Frame{}, fmt.Errorf("read frame: %w", err)
	}
	defer mat.Close()

	if c.cache != nil {
		// A failed preview encode must not cost the detection.
		_ = c.cache.Store(mat)
	}

	frame, err := c.detector.Detect(mat)
	if err != nil {
		return landmark.Frame{}, fmt.Errorf("detect landmarks: %w", err)
	}
	return frame, nil
}

// Close closes the capture device and the detector. A detector that runs a
// helper process starts it again on the next Detect after a reopen.
func (c *Camera) Close() error {
	var errs []error
	if err := c.camera.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close camera: %w", err))
	}
	if err := c.detector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close detector: %w", err))
	}
	return errors.Join(errs...)
}
