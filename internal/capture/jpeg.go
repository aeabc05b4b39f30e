package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// JPEGCache holds the most recent camera frame encoded as JPEG so several
// viewers can share one capture loop.
type JPEGCache struct {
	mu   sync.RWMutex
	data []byte
	seq  uint64
}

// Store encodes frame and replaces the cached image.
func (c *JPEGCache) Store(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() {
		return ErrNoFrame
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	c.Put(append([]byte(nil), buf.GetBytes()...))
	return nil
}

// Put replaces the cached image with an already encoded one.
func (c *JPEGCache) Put(jpeg []byte) {
	c.mu.Lock()
	c.data = jpeg
	c.seq++
	c.mu.Unlock()
}

// Latest returns the cached image and its sequence number. The sequence is
// zero until the first frame is stored.
func (c *JPEGCache) Latest() ([]byte, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data, c.seq
}
