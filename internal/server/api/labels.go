package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/ayusman/signify/internal/labels"
)

// LabelsHandler reads and replaces the label table.
type LabelsHandler struct {
	app Controller
}

// NewLabelsHandler creates a LabelsHandler driving app.
func NewLabelsHandler(app Controller) *LabelsHandler {
	return &LabelsHandler{app: app}
}

type labelEntry struct {
	ClassIndex int    `json:"class_index"`
	Label      string `json:"label"`
}

type listLabelsResponse struct {
	Labels []labelEntry `json:"labels"`
}

type replaceLabelsRequest struct {
	Labels map[string]string `json:"labels"`
}

// ServeHTTP handles GET and PUT on /api/labels.
func (h *LabelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w)
	case http.MethodPut:
		h.replace(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *LabelsHandler) list(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, toLabelList(h.app.Labels()))
}

func (h *LabelsHandler) replace(w http.ResponseWriter, r *http.Request) {
	var req replaceLabelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(req.Labels) == 0 {
		writeError(w, http.StatusBadRequest, "labels is required")
		return
	}

	table := make(labels.Table, len(req.Labels))
	for key, label := range req.Labels {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 {
			writeError(w, http.StatusBadRequest, "label keys must be non-negative class indices")
			return
		}
		label = strings.TrimSpace(label)
		if label == "" {
			writeError(w, http.StatusBadRequest, "label for class "+key+" is empty")
			return
		}
		table[idx] = label
	}

	if err := h.app.SetLabels(table); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save labels")
		return
	}
	writeJSON(w, http.StatusOK, toLabelList(table))
}

func toLabelList(t labels.Table) listLabelsResponse {
	resp := listLabelsResponse{Labels: make([]labelEntry, 0, len(t))}
	for idx, label := range t {
		resp.Labels = append(resp.Labels, labelEntry{ClassIndex: idx, Label: label})
	}
	sort.Slice(resp.Labels, func(i, j int) bool {
		return resp.Labels[i].ClassIndex < resp.Labels[j].ClassIndex
	})
	return resp
}
