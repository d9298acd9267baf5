package popularity

import (
	"fmt"
	"testing"
	"time"

	"marketplace-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

// ==========================
// Test Helper Functions
// ==========================

func activity(id string, saves, views, ageDays int) models.ListingActivity {
	return models.ListingActivity{
		ListingID:    id,
		Kind:         "SALE",
		PropertyType: "APARTMENT",
		Location:     "Kirchberg",
		CreatedAt:    fixedNow.AddDate(0, 0, -ageDays),
		Saves:        saves,
		Views:        views,
	}
}

func badgesByID(records []models.PopularityRecord) map[string]models.Badge {
	out := make(map[string]models.Badge, len(records))
	for _, r := range records {
		out[r.ListingID] = r.Badge
	}
	return out
}

// ==========================
// Test Cases
// ==========================

func TestScore(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5*2+30+0.0, Score(activity("a", 2, 30, 40), fixedNow, 7, cfg))
	// created two days ago: bonus (7-2)*0.5
	assert.Equal(t, 2.5, Score(activity("b", 0, 0, 2), fixedNow, 7, cfg))
	assert.Equal(t, 0.0, Score(activity("c", 0, 0, 7), fixedNow, 7, cfg))
}

func TestCutoffIndex(t *testing.T) {
	assert.Equal(t, 1, CutoffIndex(10, 0.1))
	assert.Equal(t, 0, CutoffIndex(9, 0.1))
	assert.Equal(t, 0, CutoffIndex(1, 0.1))
	assert.Equal(t, 2, CutoffIndex(25, 0.1))
	assert.Equal(t, 0, CutoffIndex(0, 0.1))
}

func TestConfig_TrendingPercentileBounds(t *testing.T) {
	assert.Equal(t, 1.0, Config{TrendingPercentile: 1}.withDefaults().TrendingPercentile)
	assert.Equal(t, 0.25, Config{TrendingPercentile: 0.25}.withDefaults().TrendingPercentile)
	assert.Equal(t, 0.1, Config{TrendingPercentile: 1.5}.withDefaults().TrendingPercentile)
	assert.Equal(t, 0.1, Config{}.withDefaults().TrendingPercentile)
	assert.Equal(t, 9, CutoffIndex(10, 1))
}

func TestCompute_DecileCutoffForTenListings(t *testing.T) {
	// scores 100, 90, 80, ... 10; cutoff index 1 is the second highest (90)
	var acts []models.ListingActivity
	for i := 0; i < 10; i++ {
		acts = append(acts, activity(fmt.Sprintf("l-%02d", i), 0, 100-10*i, 30))
	}

	records := Compute(acts, fixedNow, 7, DefaultConfig())
	badges := badgesByID(records)

	assert.Equal(t, models.BadgeMostViewed, badges["l-00"])
	assert.Equal(t, models.BadgeTrending, badges["l-01"], "score 90 sits exactly at the cutoff")
	assert.Equal(t, models.BadgeNone, badges["l-02"])
	for i := 3; i < 10; i++ {
		assert.Equal(t, models.BadgeNone, badges[fmt.Sprintf("l-%02d", i)])
	}
}

func TestCompute_MostSavedThreshold(t *testing.T) {
	below := Compute([]models.ListingActivity{activity("a", 4, 0, 30), activity("b", 1, 0, 30)}, fixedNow, 7, DefaultConfig())
	for _, r := range below {
		assert.NotEqual(t, models.BadgeMostSaved, r.Badge)
	}

	at := Compute([]models.ListingActivity{activity("a", 5, 0, 30), activity("b", 1, 0, 30)}, fixedNow, 7, DefaultConfig())
	assert.Equal(t, models.BadgeMostSaved, badgesByID(at)["a"])
}

func TestCompute_MostSavedTieBreak(t *testing.T) {
	records := Compute([]models.ListingActivity{
		activity("b", 6, 10, 30),
		activity("a", 6, 10, 30),
		activity("c", 6, 0, 30),
	}, fixedNow, 7, DefaultConfig())

	assert.Equal(t, models.BadgeMostSaved, badgesByID(records)["a"], "equal saves and score fall back to id")
}

func TestCompute_TopViewerIsTopSaverLeavesNoMostViewed(t *testing.T) {
	records := Compute([]models.ListingActivity{
		activity("star", 9, 200, 30),
		activity("runner-up", 1, 150, 30),
	}, fixedNow, 7, DefaultConfig())
	badges := badgesByID(records)

	assert.Equal(t, models.BadgeMostSaved, badges["star"])
	assert.NotEqual(t, models.BadgeMostViewed, badges["runner-up"])
}

func TestCompute_TrendingNeedsFloorAndPositiveScore(t *testing.T) {
	records := Compute([]models.ListingActivity{
		activity("quiet", 0, 0, 30),
		activity("fresh", 0, 0, 1),
	}, fixedNow, 7, DefaultConfig())

	for _, r := range records {
		assert.Equal(t, models.BadgeNone, r.Badge, r.ListingID)
	}
}

func TestCompute_SegmentsAreIndependent(t *testing.T) {
	rent := activity("r", 7, 0, 30)
	rent.Kind = "rent"
	sale := activity("s", 7, 0, 30)
	sale.Location = "  KIRCHBERG "

	records := Compute([]models.ListingActivity{rent, sale}, fixedNow, 7, DefaultConfig())
	badges := badgesByID(records)
	assert.Equal(t, models.BadgeMostSaved, badges["r"])
	assert.Equal(t, models.BadgeMostSaved, badges["s"])
	assert.Equal(t, "sale|apartment|kirchberg", records[1].SegmentKey)
}

func TestCompute_AtMostOneBadgeOfEachScarceTier(t *testing.T) {
	var acts []models.ListingActivity
	for i := 0; i < 30; i++ {
		acts = append(acts, activity(fmt.Sprintf("l-%02d", i), i%7, 3*i, i%10))
	}

	records := Compute(acts, fixedNow, 7, DefaultConfig())
	counts := map[models.Badge]int{}
	for _, r := range records {
		counts[r.Badge]++
	}
	assert.LessOrEqual(t, counts[models.BadgeMostSaved], 1)
	assert.LessOrEqual(t, counts[models.BadgeMostViewed], 1)
}

func TestCompute_IsDeterministic(t *testing.T) {
	acts := []models.ListingActivity{
		activity("c", 3, 40, 1), activity("a", 8, 70, 3), activity("b", 0, 90, 5),
	}
	first := Compute(acts, fixedNow, 7, DefaultConfig())
	reversed := []models.ListingActivity{acts[2], acts[1], acts[0]}
	second := Compute(reversed, fixedNow, 7, DefaultConfig())

	require.Equal(t, first, second)
	assert.Equal(t, "a", first[0].ListingID)
	assert.Equal(t, "c", first[2].ListingID)
}

func TestRules_PriorityOrder(t *testing.T) {
	rules := Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, models.BadgeMostSaved, rules[0].Badge)
	assert.Equal(t, models.BadgeMostViewed, rules[1].Badge)
	assert.Equal(t, models.BadgeTrending, rules[2].Badge)

	seg := SegmentContext{Config: DefaultConfig(), TopSaverID: "x", TopViewerID: "x", CutoffScore: 10}
	rec := models.PopularityRecord{ListingID: "x", Saves7d: 5, Views7d: 60, Score: 85}
	assert.True(t, isMostSaved(seg, rec))
	assert.True(t, isMostViewed(seg, rec))
	assert.True(t, isTrending(seg, rec))
	assert.Equal(t, models.BadgeMostSaved, assignBadge(rules, seg, rec))
}
