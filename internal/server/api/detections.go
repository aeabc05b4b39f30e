package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/signify/internal/store"
)

// DetectionsHandler serves the stored detection history.
type DetectionsHandler struct {
	store *store.Store
}

// NewDetectionsHandler creates a DetectionsHandler reading from s.
func NewDetectionsHandler(s *store.Store) *DetectionsHandler {
	return &DetectionsHandler{store: s}
}

type listDetectionsResponse struct {
	Detections []*store.Detection `json:"detections"`
}

// ServeHTTP handles GET /api/detections?session=<id>&limit=<n>. Without a
// session the most recent detections across all sessions are returned.
func (h *DetectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	var (
		list []*store.Detection
		err  error
	)
	if id := q.Get("session"); id != "" {
		list, err = h.store.Detections().ListBySession(id)
		if err == nil && limit > 0 && len(list) > limit {
			list = list[len(list)-limit:]
		}
	} else {
		list, err = h.store.Detections().Recent(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list detections")
		return
	}

	if list == nil {
		list = []*store.Detection{}
	}
	writeJSON(w, http.StatusOK, listDetectionsResponse{Detections: list})
}
