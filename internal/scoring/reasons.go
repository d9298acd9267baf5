package scoring

import (
	"sort"

	"marketplace-engine/internal/models"
)

var toneOrder = map[models.Tone]int{
	models.ToneNegative: 0,
	models.TonePositive: 1,
	models.ToneNeutral:  2,
}

// FinalizeReasons dedupes chips by code (keeping the heaviest), orders them
// mismatches first, then matches, then neutral context, each by weight desc
// and code asc, and caps the list at max.
func FinalizeReasons(reasons []models.Reason, max int) []models.Reason {
	byCode := make(map[string]models.Reason, len(reasons))
	for _, r := range reasons {
		if r.Code == "" {
			continue
		}
		if prev, ok := byCode[r.Code]; !ok || r.Weight > prev.Weight {
			byCode[r.Code] = r
		}
	}

	out := make([]models.Reason, 0, len(byCode))
	for _, r := range byCode {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if toneOrder[a.Tone] != toneOrder[b.Tone] {
			return toneOrder[a.Tone] < toneOrder[b.Tone]
		}
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		return a.Code < b.Code
	})

	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
