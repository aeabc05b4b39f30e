package landmark

import (
	"math"
	"strings"
)

// Normalize flattens a frame into a feature vector of exactly InputDim
// values.
//
// Face and pose contribute only their curated index subsets; an index the
// detector did not report is written as (0,0,0). Each detected hand is made
// wrist-relative, so its wrist always lands on (0,0,0), and is written into
// the left or right block by handedness. Unlabeled hands count as right.
// When two hands report the same side the later one wins. Hands with fewer
// than HandPoints points are malformed and treated as absent.
func Normalize(f Frame) Vector {
	v := make(Vector, InputDim)

	writeSubset(v[faceOffset:poseOffset], f.Face, faceIndices[:])
	writeSubset(v[poseOffset:leftOffset], f.Pose, poseIndices[:])

	for _, h := range f.Hands {
		if len(h.Points) < HandPoints {
			continue
		}

		offset := rightOffset
		if IsLeft(h.Handedness) {
			offset = leftOffset
		}

		block := v[offset : offset+HandPoints*3]
		wrist := coerce(h.Points[Wrist])
		for i := 0; i < HandPoints; i++ {
			writePoint(block, i, coerce(h.Points[i]).Sub(wrist))
		}
	}

	return v
}

// IsLeft reports whether a handedness label names the left hand.
func IsLeft(handedness string) bool {
	return strings.EqualFold(strings.TrimSpace(handedness), "left")
}

// HasEnoughData reports whether a vector carries enough signal to enter the
// sequence window: at least MinNonZero entries must differ from zero.
func HasEnoughData(v Vector) bool {
	return NonZero(v) >= MinNonZero
}

// NonZero counts the entries of v that are not exactly zero.
func NonZero(v Vector) int {
	n := 0
	for _, x := range v {
		if x != 0 {
			n++
		}
	}
	return n
}

func writeSubset(dst []float64, src []Point3D, indices []int) {
	for slot, idx := range indices {
		if idx < 0 || idx >= len(src) {
			continue
		}
		writePoint(dst, slot, coerce(src[idx]))
	}
}

func writePoint(dst []float64, slot int, p Point3D) {
	dst[slot*3] = p.X
	dst[slot*3+1] = p.Y
	dst[slot*3+2] = p.Z
}

// coerce replaces NaN coordinates with zero, the way an unset detector field
// reads. Infinities pass through and are rejected later by validation.
func coerce(p Point3D) Point3D {
	return Point3D{X: zeroNaN(p.X), Y: zeroNaN(p.Y), Z: zeroNaN(p.Z)}
}

func zeroNaN(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return x
}
