package sequence

import (
	"math"

	"github.com/ayusman/signify/internal/landmark"
)

// Validate reports whether a snapshot has the classifier's input shape
// (SequenceLength rows of InputDim values) and contains only finite values.
// Checks run in that order and stop at the first failure.
func Validate(snapshot [][]float64) bool {
	if len(snapshot) != landmark.SequenceLength {
		return false
	}

	for _, row := range snapshot {
		if len(row) != landmark.InputDim {
			return false
		}
	}

	for _, row := range snapshot {
		for _, x := range row {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}

	return true
}

// Preprocess returns a copy of snapshot with every value clamped to [-1, 1].
// Non-finite values become 0. The input is left untouched.
func Preprocess(snapshot [][]float64) [][]float64 {
	out := make([][]float64, len(snapshot))
	for i, row := range snapshot {
		r := make([]float64, len(row))
		for j, x := range row {
			r[j] = clamp(x)
		}
		out[i] = r
	}
	return out
}

func clamp(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return math.Max(-1, math.Min(1, x))
}
