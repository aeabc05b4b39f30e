package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// HTTP sends windows to a remote inference service. The service accepts a
// JSON POST at its URL and exposes GET <url>/health.
//
// The classifier starts out not ready; CheckHealth or a successful call
// marks it ready and a transport failure marks it not ready again.
type HTTP struct {
	url     string
	client  *http.Client
	healthy atomic.Bool
}

// NewHTTP creates a classifier for the service at url.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTP{
		url:    strings.TrimRight(url, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Ready reports the outcome of the last health check or call.
func (h *HTTP) Ready() bool { return h.healthy.Load() }

// CheckHealth calls the health endpoint and updates readiness.
func (h *HTTP) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url+"/health", nil)
	if err != nil {
		h.healthy.Store(false)
		return errors.Wrap(err, "create health request")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.healthy.Store(false)
		return errors.Wrap(err, "inference service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.healthy.Store(false)
		return errors.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}

	h.healthy.Store(true)
	return nil
}

// Infer posts sequence to the service.
func (h *HTTP) Infer(ctx context.Context, sequence [][]float64) (Prediction, error) {
	if !h.Ready() {
		return Prediction{}, ErrNotReady
	}

	body, err := json.Marshal(requestBody{Sequence: sequence})
	if err != nil {
		return Prediction{}, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return Prediction{}, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.healthy.Store(false)
		return Prediction{}, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Prediction{}, errors.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var out predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Prediction{}, errors.Wrap(err, "decode response")
	}

	h.healthy.Store(true)
	return out.prediction()
}

// Close releases idle connections.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
