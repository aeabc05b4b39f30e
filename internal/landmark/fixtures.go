package landmark

// Preset detections used by tests, the replay source and demos.

// faceMeshPoints and posePoints are the sizes of the full MediaPipe outputs.
const (
	faceMeshPoints = 468
	posePoints     = 33
)

// OpenPalmHand returns a hand with all fingers extended.
func OpenPalmHand(handedness string) Hand {
	h := Hand{
		Points:     make([]Point3D, HandPoints),
		Handedness: handedness,
		Score:      0.95,
	}

	// Wrist at base
	h.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended to the side
	h.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	h.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	h.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	h.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	h.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.01}
	h.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.01}
	h.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.01}
	h.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.01}

	h.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.01}
	h.Points[MiddlePIP] = Point3D{X: 0.51, Y: 0.52, Z: 0.01}
	h.Points[MiddleDIP] = Point3D{X: 0.51, Y: 0.40, Z: 0.01}
	h.Points[MiddleTip] = Point3D{X: 0.51, Y: 0.28, Z: 0.01}

	h.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.01}
	h.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.01}
	h.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.01}
	h.Points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.01}

	h.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.01}
	h.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.01}
	h.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.01}
	h.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.01}

	return h
}

// FistHand returns a hand with every finger curled toward the palm.
func FistHand(handedness string) Hand {
	h := Hand{
		Points:     make([]Point3D, HandPoints),
		Handedness: handedness,
		Score:      0.92,
	}

	h.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	h.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.0}
	h.Points[ThumbMCP] = Point3D{X: 0.57, Y: 0.70, Z: -0.01}
	h.Points[ThumbIP] = Point3D{X: 0.55, Y: 0.66, Z: -0.03}
	h.Points[ThumbTip] = Point3D{X: 0.52, Y: 0.66, Z: -0.04}

	h.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.70, Z: -0.02}
	h.Points[IndexPIP] = Point3D{X: 0.55, Y: 0.68, Z: -0.05}
	h.Points[IndexDIP] = Point3D{X: 0.52, Y: 0.70, Z: -0.04}
	h.Points[IndexTip] = Point3D{X: 0.50, Y: 0.72, Z: -0.02}

	h.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.68, Z: -0.02}
	h.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.66, Z: -0.05}
	h.Points[MiddleDIP] = Point3D{X: 0.47, Y: 0.68, Z: -0.04}
	h.Points[MiddleTip] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}

	h.Points[RingMCP] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}
	h.Points[RingPIP] = Point3D{X: 0.45, Y: 0.68, Z: -0.05}
	h.Points[RingDIP] = Point3D{X: 0.42, Y: 0.70, Z: -0.04}
	h.Points[RingTip] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}

	h.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}
	h.Points[PinkyPIP] = Point3D{X: 0.40, Y: 0.70, Z: -0.05}
	h.Points[PinkyDIP] = Point3D{X: 0.37, Y: 0.72, Z: -0.04}
	h.Points[PinkyTip] = Point3D{X: 0.35, Y: 0.74, Z: -0.02}

	return h
}

// FaceMesh returns a full-size face mesh with every point set to a distinct
// non-zero position.
func FaceMesh() []Point3D {
	pts := make([]Point3D, faceMeshPoints)
	for i := range pts {
		f := float64(i+1) / faceMeshPoints
		pts[i] = Point3D{X: 0.3 + 0.4*f, Y: 0.2 + 0.3*f, Z: -0.05 + 0.01*f}
	}
	return pts
}

// PoseBody returns a full-size pose result with every point non-zero.
func PoseBody() []Point3D {
	pts := make([]Point3D, posePoints)
	for i := range pts {
		f := float64(i+1) / posePoints
		pts[i] = Point3D{X: 0.2 + 0.6*f, Y: 0.3 + 0.6*f, Z: -0.2 + 0.1*f}
	}
	return pts
}

// SigningFrame returns a frame with face, pose and both hands detected. It
// always passes the validity gate.
func SigningFrame() Frame {
	return Frame{
		Face:  FaceMesh(),
		Pose:  PoseBody(),
		Hands: []Hand{OpenPalmHand("Left"), FistHand("Right")},
	}
}
