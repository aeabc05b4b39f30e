// Package landmark converts per-frame face, pose and hand detections into
// fixed-length feature vectors for the sequence classifier.
package landmark

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist      = 0
	ThumbCMC   = 1
	ThumbMCP   = 2
	ThumbIP    = 3
	ThumbTip   = 4
	IndexMCP   = 5
	IndexPIP   = 6
	IndexDIP   = 7
	IndexTip   = 8
	MiddleMCP  = 9
	MiddlePIP  = 10
	MiddleDIP  = 11
	MiddleTip  = 12
	RingMCP    = 13
	RingPIP    = 14
	RingDIP    = 15
	RingTip    = 16
	PinkyMCP   = 17
	PinkyPIP   = 18
	PinkyDIP   = 19
	PinkyTip   = 20
	HandPoints = 21
)

// Model input configuration shared by the pipeline and its consumers.
const (
	// SequenceLength is the number of admitted frames fed to the classifier.
	SequenceLength = 30
	// InputDim is the length of one feature vector.
	InputDim = (len(faceIndices)+len(poseIndices))*3 + 2*HandPoints*3
	// ConfidenceThreshold is the display gate for results. The pipeline
	// never applies it; consumers decide.
	ConfidenceThreshold = 0.82
	// MinNonZero is the number of non-zero entries a vector needs to be
	// admitted into the window.
	MinNonZero = 30
)

// Curated landmark subsets read from the full face mesh and pose outputs.
var (
	faceIndices = [...]int{1, 4, 33, 61, 199, 263, 291, 362, 454}
	poseIndices = [...]int{11, 12, 13, 14, 15, 16}
)

// Offsets of each entity block inside a feature vector.
const (
	faceOffset  = 0
	poseOffset  = faceOffset + len(faceIndices)*3
	leftOffset  = poseOffset + len(poseIndices)*3
	rightOffset = leftOffset + HandPoints*3
)

// FaceIndices returns a copy of the face mesh indices used for features.
func FaceIndices() []int {
	return append([]int(nil), faceIndices[:]...)
}

// PoseIndices returns a copy of the pose indices used for features.
func PoseIndices() []int {
	return append([]int(nil), poseIndices[:]...)
}

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns p translated by -o.
func (p Point3D) Sub(o Point3D) Point3D {
	return Point3D{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

// Hand is one detected hand. Points is expected to hold HandPoints entries.
type Hand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"` // "Left", "Right" or empty
	Score      float64   `json:"score"`
}

// Frame holds every entity detected in a single camera frame. Any field may
// be empty when the entity was not detected.
type Frame struct {
	Face  []Point3D `json:"face,omitempty"`
	Pose  []Point3D `json:"pose,omitempty"`
	Hands []Hand    `json:"hands,omitempty"`
}

// Empty reports whether the frame carries no detections at all.
func (f Frame) Empty() bool {
	return len(f.Face) == 0 && len(f.Pose) == 0 && len(f.Hands) == 0
}

// Vector is a flattened feature vector of InputDim values laid out as
// face, pose, left hand, right hand.
type Vector []float64
