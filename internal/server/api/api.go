// Package api provides the HTTP API handlers for the detection service.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/signify/internal/labels"
	"github.com/ayusman/signify/internal/session"
)

// Controller is the part of the application the API drives. Start returns
// session.ErrAlreadyRunning when a session is active.
type Controller interface {
	State() session.State
	Start() (string, error)
	Stop() error
	Labels() labels.Table
	SetLabels(labels.Table) error
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
