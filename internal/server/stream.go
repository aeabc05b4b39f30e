package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/signify/internal/capture"
)

// StreamHandler serves the camera preview as MJPEG.
type StreamHandler struct {
	cache    *capture.JPEGCache
	interval time.Duration
}

// NewStreamHandler creates a StreamHandler reading from cache.
func NewStreamHandler(cache *capture.JPEGCache) *StreamHandler {
	return &StreamHandler{cache: cache, interval: 66 * time.Millisecond}
}

// ServeHTTP streams each new cached frame to the client.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last uint64
	for {
		if data, seq := h.cache.Latest(); seq != last && len(data) > 0 {
			last = seq
			if err := writePart(w, data); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\r\n")
	return err
}
