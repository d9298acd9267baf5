// internal/popularity/aggregator.go
package popularity

import (
	"math"
	"sort"
	"time"

	"marketplace-engine/internal/models"
	"marketplace-engine/internal/scoring"
)

// Score is saves*W_save + views*W_view plus a recency bonus that shrinks by
// RecencyBonusPerDay for every whole day of age and stops at windowDays.
func Score(a models.ListingActivity, now time.Time, windowDays int, cfg Config) float64 {
	age := scoring.WholeDays(a.CreatedAt, now)
	bonus := math.Max(0, float64(windowDays-age)) * cfg.RecencyBonusPerDay
	return scoring.Round6(float64(a.Saves)*cfg.SaveWeight + float64(a.Views)*cfg.ViewWeight + bonus)
}

// CutoffIndex is the top-decile position floor(n*p), kept inside the
// segment so every non-empty segment has at least one qualifying slot.
func CutoffIndex(n int, percentile float64) int {
	if n <= 0 {
		return 0
	}
	idx := int(math.Floor(float64(n) * percentile))
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}

// Compute turns windowed activity into badge-bearing records. It is a pure
// function of its inputs; records come back sorted by listing id.
func Compute(activity []models.ListingActivity, now time.Time, windowDays int, cfg Config) []models.PopularityRecord {
	cfg = cfg.withDefaults()

	segments := make(map[string][]models.PopularityRecord)
	for _, a := range activity {
		rec := models.PopularityRecord{
			ListingID:  a.ListingID,
			Saves7d:    a.Saves,
			Views7d:    a.Views,
			Score:      Score(a, now, windowDays, cfg),
			SegmentKey: scoring.SegmentKey(a.Kind, a.PropertyType, a.Location),
			Badge:      models.BadgeNone,
		}
		segments[rec.SegmentKey] = append(segments[rec.SegmentKey], rec)
	}

	out := make([]models.PopularityRecord, 0, len(activity))
	for _, members := range segments {
		seg := segmentContext(members, cfg)
		for _, rec := range members {
			rec.Badge = assignBadge(badgeRules, seg, rec)
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ListingID < out[j].ListingID })
	return out
}

func segmentContext(members []models.PopularityRecord, cfg Config) SegmentContext {
	seg := SegmentContext{Config: cfg}
	if len(members) == 0 {
		return seg
	}

	seg.TopSaverID = topBy(members, func(r models.PopularityRecord) int { return r.Saves7d })
	seg.TopViewerID = topBy(members, func(r models.PopularityRecord) int { return r.Views7d })

	byScore := make([]models.PopularityRecord, len(members))
	copy(byScore, members)
	sort.Slice(byScore, func(i, j int) bool {
		if byScore[i].Score != byScore[j].Score {
			return byScore[i].Score > byScore[j].Score
		}
		return byScore[i].ListingID < byScore[j].ListingID
	})
	seg.CutoffScore = byScore[CutoffIndex(len(byScore), cfg.TrendingPercentile)].Score
	return seg
}

// topBy picks the leader on metric, breaking ties by score desc then id asc.
func topBy(members []models.PopularityRecord, metric func(models.PopularityRecord) int) string {
	best := members[0]
	for _, r := range members[1:] {
		switch {
		case metric(r) > metric(best):
			best = r
		case metric(r) < metric(best):
		case r.Score > best.Score:
			best = r
		case r.Score == best.Score && r.ListingID < best.ListingID:
			best = r
		}
	}
	return best.ListingID
}
