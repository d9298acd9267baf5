package scoring

import (
	"math"
	"time"
)

// Component is one weighted input to a blended score.
type Component struct {
	Score   float64
	Weight  float64
	Present bool
}

// Clamp01 bounds x to [0,1]; NaN becomes 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Round6 rounds to six decimals so equal inputs compare equal after float noise.
func Round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}

// Blend is the weighted mean of the present components, with the weights
// renormalized over those components. It returns 0 when nothing carries weight.
func Blend(components ...Component) float64 {
	var sum, total float64
	for _, c := range components {
		if !c.Present || c.Weight <= 0 {
			continue
		}
		sum += Clamp01(c.Score) * c.Weight
		total += c.Weight
	}
	if total == 0 {
		return 0
	}
	return Round6(Clamp01(sum / total))
}

// Freshness halves every halfLifeDays since updatedAt. A timestamp in the
// future counts as brand new.
func Freshness(updatedAt, now time.Time, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		return 0
	}
	ageDays := now.Sub(updatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return Round6(Clamp01(math.Pow(0.5, ageDays/halfLifeDays)))
}

// WholeDays is the number of complete days between from and to, never negative.
func WholeDays(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
