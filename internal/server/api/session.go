package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/signify/internal/session"
)

// SessionHandler serves /api/session, /api/session/start and /api/session/stop.
type SessionHandler struct {
	app Controller
}

// NewSessionHandler creates a SessionHandler driving app.
func NewSessionHandler(app Controller) *SessionHandler {
	return &SessionHandler{app: app}
}

type startResponse struct {
	SessionID string `json:"session_id"`
}

// ServeHTTP routes on the path suffix.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/session")
	action = strings.Trim(action, "/")

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.app.State())
	case "start":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.start(w)
	case "stop":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.stop(w)
	default:
		http.NotFound(w, r)
	}
}

func (h *SessionHandler) start(w http.ResponseWriter) {
	id, err := h.app.Start()
	if err != nil {
		if errors.Is(err, session.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "Session already running")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}
	writeJSON(w, http.StatusOK, startResponse{SessionID: id})
}

func (h *SessionHandler) stop(w http.ResponseWriter) {
	if err := h.app.Stop(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to stop session")
		return
	}
	writeJSON(w, http.StatusOK, h.app.State())
}
