package api

import (
	"net/http"

	"github.com/ayusman/signify/internal/landmark"
)

type configResponse struct {
	SequenceLength      int     `json:"sequence_length"`
	InputDim            int     `json:"input_dim"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	MinNonZero          int     `json:"min_non_zero"`
	FaceIndices         []int   `json:"face_indices"`
	PoseIndices         []int   `json:"pose_indices"`
	HandPoints          int     `json:"hand_points"`
	Classifier          string  `json:"classifier"`
}

// ConfigHandler reports the fixed pipeline constants.
type ConfigHandler struct {
	classifier string
}

// NewConfigHandler creates a ConfigHandler naming the active classifier kind.
func NewConfigHandler(classifierKind string) *ConfigHandler {
	return &ConfigHandler{classifier: classifierKind}
}

// ServeHTTP handles GET /api/config.
func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, configResponse{
		SequenceLength:      landmark.SequenceLength,
		InputDim:            landmark.InputDim,
		ConfidenceThreshold: landmark.ConfidenceThreshold,
		MinNonZero:          landmark.MinNonZero,
		FaceIndices:         landmark.FaceIndices(),
		PoseIndices:         landmark.PoseIndices(),
		HandPoints:          landmark.HandPoints,
		Classifier:          h.classifier,
	})
}
