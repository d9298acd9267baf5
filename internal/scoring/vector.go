// Package scoring holds the scoring math shared by matching and popularity.
package scoring

import (
	"math"

	apperrors "marketplace-engine/internal/common/errors"
)

// Cosine returns the cosine similarity of a and b. ok is false when the
// vectors differ in length, are empty or have zero magnitude.
func Cosine(a, b []float32) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}

	sim = dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, sim)), true
}

// RescaleCosine maps a similarity in [-1,1] onto [0,1].
func RescaleCosine(sim float64) float64 {
	return Clamp01((sim + 1) / 2)
}

// CheckDimension accepts an absent vector or one of exactly dim entries.
func CheckDimension(field string, v []float32, dim int) error {
	if len(v) == 0 || dim <= 0 {
		return nil
	}
	if len(v) != dim {
		return apperrors.NewValidationErrorf("%s has %d dimensions, expected %d", field, len(v), dim)
	}
	return nil
}
