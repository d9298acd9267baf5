// internal/popularity/rules.go
package popularity

import "marketplace-engine/internal/models"

// Config holds the scoring weights and badge thresholds.
type Config struct {
	SaveWeight         float64
	ViewWeight         float64
	RecencyBonusPerDay float64
	MostSavedMin       int
	MostViewedMin      int
	TrendingSavesFloor int
	TrendingViewsFloor int
	TrendingPercentile float64
}

func DefaultConfig() Config {
	return Config{
		SaveWeight:         5,
		ViewWeight:         1,
		RecencyBonusPerDay: 0.5,
		MostSavedMin:       5,
		MostViewedMin:      60,
		TrendingSavesFloor: 3,
		TrendingViewsFloor: 25,
		TrendingPercentile: 0.1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SaveWeight <= 0 {
		c.SaveWeight = d.SaveWeight
	}
	if c.ViewWeight <= 0 {
		c.ViewWeight = d.ViewWeight
	}
	if c.RecencyBonusPerDay <= 0 {
		c.RecencyBonusPerDay = d.RecencyBonusPerDay
	}
	if c.MostSavedMin <= 0 {
		c.MostSavedMin = d.MostSavedMin
	}
	if c.MostViewedMin <= 0 {
		c.MostViewedMin = d.MostViewedMin
	}
	if c.TrendingSavesFloor <= 0 {
		c.TrendingSavesFloor = d.TrendingSavesFloor
	}
	if c.TrendingViewsFloor <= 0 {
		c.TrendingViewsFloor = d.TrendingViewsFloor
	}
	if c.TrendingPercentile <= 0 || c.TrendingPercentile > 1 {
		c.TrendingPercentile = d.TrendingPercentile
	}
	return c
}

// SegmentContext is what a rule can see about the listing's cohort.
type SegmentContext struct {
	Config
	TopSaverID  string
	TopViewerID string
	CutoffScore float64
}

// BadgeRule grants Badge when Applies holds. Rules are tried in order and
// the first match wins, so a listing never carries two badges.
type BadgeRule struct {
	Badge   models.Badge
	Applies func(seg SegmentContext, rec models.PopularityRecord) bool
}

var badgeRules = []BadgeRule{
	{Badge: models.BadgeMostSaved, Applies: isMostSaved},
	{Badge: models.BadgeMostViewed, Applies: isMostViewed},
	{Badge: models.BadgeTrending, Applies: isTrending},
}

// Rules returns the badge rules in priority order.
func Rules() []BadgeRule {
	out := make([]BadgeRule, len(badgeRules))
	copy(out, badgeRules)
	return out
}

func isMostSaved(seg SegmentContext, rec models.PopularityRecord) bool {
	return rec.ListingID == seg.TopSaverID && rec.Saves7d >= seg.MostSavedMin
}

func isMostViewed(seg SegmentContext, rec models.PopularityRecord) bool {
	return rec.ListingID == seg.TopViewerID && rec.Views7d >= seg.MostViewedMin
}

func isTrending(seg SegmentContext, rec models.PopularityRecord) bool {
	if rec.Score <= 0 {
		return false
	}
	if rec.Saves7d < seg.TrendingSavesFloor && rec.Views7d < seg.TrendingViewsFloor {
		return false
	}
	return rec.Score >= seg.CutoffScore
}

func assignBadge(rules []BadgeRule, seg SegmentContext, rec models.PopularityRecord) models.Badge {
	for _, rule := range rules {
		if rule.Applies(seg, rec) {
			return rule.Badge
		}
	}
	return models.BadgeNone
}
