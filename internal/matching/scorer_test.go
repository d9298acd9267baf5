package matching

import (
	"fmt"
	"testing"
	"time"

	apperrors "marketplace-engine/internal/common/errors"
	"marketplace-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newTestScorer(dim int) *Scorer {
	return NewScorer(ScorerConfig{Dimension: dim}).WithClock(func() time.Time { return fixedNow })
}

func daysAgo(d int) *time.Time {
	t := fixedNow.AddDate(0, 0, -d)
	return &t
}

func activeCandidate(id string, price float64) models.Candidate {
	return models.Candidate{
		ID:           id,
		Kind:         models.KindSale,
		PropertyType: models.PropertyApartment,
		Price:        ptr(price),
		Location:     "Kirchberg",
		Published:    true,
		Status:       models.StatusActive,
		Embedding:    []float32{1, 0, 0},
		CreatedAt:    fixedNow.AddDate(0, -1, 0),
		UpdatedAt:    daysAgo(3),
	}
}

func budgetProfile() *models.BuyerProfile {
	return &models.BuyerProfile{
		SubjectID: "subject-1",
		Filters: models.StructuredFilters{
			Kind:      ptr(models.KindSale),
			Budget:    &models.Range{Min: ptr(300000.0), Max: ptr(400000.0)},
			Locations: []string{"kirchberg"},
		},
		Embedding:  []float32{1, 0, 0},
		Provenance: models.ProvenanceExtracted,
	}
}

func reasonCodes(r models.MatchResult) []string {
	codes := make([]string, 0, len(r.Reasons))
	for _, reason := range r.Reasons {
		codes = append(codes, reason.Code)
	}
	return codes
}

// ==========================
// Test Cases
// ==========================

func TestMatch_BudgetWithinScoresHigherThanOver(t *testing.T) {
	s := newTestScorer(3)
	pool := []models.Candidate{activeCandidate("inside", 350000), activeCandidate("outside", 500000)}

	results, err := s.Match(budgetProfile(), pool, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]models.MatchResult{}
	for _, r := range results {
		byID[r.CandidateID] = r
	}
	assert.Greater(t, byID["inside"].StructuredScore, byID["outside"].StructuredScore)
	assert.Equal(t, "inside", results[0].CandidateID)
	assert.Contains(t, reasonCodes(byID["inside"]), "within_budget")
	assert.Equal(t, "over_budget", byID["outside"].Reasons[0].Code, "mismatches lead the chips")
}

func TestMatch_OrderingIsTotalAndReproducible(t *testing.T) {
	s := newTestScorer(3)

	// identical attributes: ties resolved by freshness then id
	a := activeCandidate("b-listing", 350000)
	b := activeCandidate("a-listing", 350000)
	c := activeCandidate("c-listing", 350000)
	c.UpdatedAt = daysAgo(0)
	d := activeCandidate("d-listing", 350000)
	d.UpdatedAt = nil
	pool := []models.Candidate{a, b, c, d}

	first, err := s.Match(budgetProfile(), pool, 10)
	require.NoError(t, err)
	second, err := s.Match(budgetProfile(), []models.Candidate{d, c, b, a}, 10)
	require.NoError(t, err)

	ids := func(rs []models.MatchResult) []string {
		out := make([]string, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.CandidateID)
		}
		return out
	}
	// d has no freshness, so its renormalized overall ties c at 1.0 and loses on freshness
	assert.Equal(t, []string{"c-listing", "d-listing", "a-listing", "b-listing"}, ids(first))
	assert.Equal(t, ids(first), ids(second))

	for i, r := range first {
		assert.Equal(t, i+1, r.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, first[i-1].OverallScore, r.OverallScore)
		}
	}
}

func TestMatch_ScoresStayInUnitInterval(t *testing.T) {
	s := newTestScorer(3)
	pool := []models.Candidate{}
	vectors := [][]float32{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0.5, -0.5, 0.1}}
	for i, v := range vectors {
		c := activeCandidate(fmt.Sprintf("l-%d", i), float64(250000+i*100000))
		c.Embedding = v
		c.UpdatedAt = daysAgo(i * 40)
		pool = append(pool, c)
	}

	results, err := s.Match(budgetProfile(), pool, 50)
	require.NoError(t, err)
	for _, r := range results {
		for _, v := range []float64{r.OverallScore, r.StructuredScore, r.SemanticScore} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestMatch_MissingProfileEmbeddingIsDegraded(t *testing.T) {
	s := newTestScorer(3)
	profile := budgetProfile()
	profile.Embedding = nil

	results, err := s.Match(profile, []models.Candidate{activeCandidate("l-1", 350000), activeCandidate("l-2", 380000)}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, 0.0, r.SemanticScore)
		assert.True(t, r.Degraded)
		assert.Contains(t, r.DegradedReasons, models.DegradedProfileEmbedding)
	}
	// structured 1.0 and freshness carry the whole weight
	assert.Greater(t, results[0].OverallScore, 0.9)
}

func TestMatch_MissingCandidateEmbeddingIsDegradedNotFatal(t *testing.T) {
	s := newTestScorer(3)
	c := activeCandidate("l-1", 350000)
	c.Embedding = nil

	results, err := s.Match(budgetProfile(), []models.Candidate{c}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{models.DegradedCandidateEmbedding}, results[0].DegradedReasons)
}

func TestMatch_WrongProfileDimensionIsValidationError(t *testing.T) {
	s := newTestScorer(1536)
	profile := budgetProfile()
	profile.Embedding = make([]float32, 512)

	_, err := s.Match(profile, []models.Candidate{activeCandidate("l-1", 350000)}, 5)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestMatch_TopKBounds(t *testing.T) {
	s := newTestScorer(3)
	for _, k := range []int{0, -1, 51} {
		_, err := s.Match(budgetProfile(), nil, k)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation), "topK=%d", k)
	}

	pool := []models.Candidate{activeCandidate("a", 1), activeCandidate("b", 2), activeCandidate("c", 3)}
	results, err := s.Match(budgetProfile(), pool, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMatch_EmptyInputsReturnEmpty(t *testing.T) {
	s := newTestScorer(3)

	results, err := s.Match(nil, []models.Candidate{activeCandidate("a", 1)}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Match(budgetProfile(), nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMatch_SkipsIneligibleCandidates(t *testing.T) {
	s := newTestScorer(3)
	profile := budgetProfile()
	profile.TenantID = "acme"

	unpublished := activeCandidate("unpublished", 350000)
	unpublished.Published = false
	unpublished.TenantID = "acme"
	own := activeCandidate("own", 350000)
	own.TenantID = "acme"

	results, err := s.Match(profile, []models.Candidate{unpublished, own}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "own", results[0].CandidateID)
	assert.Equal(t, "tenant:acme", results[0].Scope)
}

func TestMatch_ForeignTenantCandidateIsForbidden(t *testing.T) {
	s := newTestScorer(3)
	profile := budgetProfile()
	profile.TenantID = "acme"

	own := activeCandidate("own", 350000)
	own.TenantID = "acme"
	foreign := activeCandidate("foreign", 350000)
	foreign.TenantID = "other"

	results, err := s.Match(profile, []models.Candidate{own, foreign}, 5)
	require.Error(t, err)
	assert.Nil(t, results)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))
	assert.Contains(t, err.Error(), "foreign")
}

func TestMatch_UndisclosedAttributeIsNeutralAndExcluded(t *testing.T) {
	s := newTestScorer(3)
	profile := budgetProfile()
	profile.Filters.MinBedrooms = ptr(2)

	c := activeCandidate("l-1", 350000)
	c.Bedrooms = nil

	results, err := s.Match(profile, []models.Candidate{c}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1.0, results[0].StructuredScore, "undisclosed bedrooms must not penalize")

	var found bool
	for _, r := range results[0].Reasons {
		if r.Code == "bedrooms_undisclosed" {
			found = true
			assert.Equal(t, models.ToneNeutral, r.Tone)
		}
	}
	assert.True(t, found)
}

func TestMatch_NoConstraintsOmitsStructuredComponent(t *testing.T) {
	s := newTestScorer(3)
	profile := &models.BuyerProfile{SubjectID: "s", Embedding: []float32{1, 0, 0}}
	c := activeCandidate("l-1", 350000)
	c.UpdatedAt = nil

	results, err := s.Match(profile, []models.Candidate{c}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].StructuredScore)
	assert.Equal(t, 1.0, results[0].OverallScore, "semantic alone carries the renormalized weight")
	assert.Contains(t, reasonCodes(results[0]), "strong_overall_match")
}

func TestMatch_ReasonsAreCapped(t *testing.T) {
	s := NewScorer(ScorerConfig{Dimension: 3, MaxReasons: 4}).WithClock(func() time.Time { return fixedNow })
	profile := budgetProfile()
	profile.Filters.MinBedrooms = ptr(3)
	profile.Filters.MinBathrooms = ptr(2)
	profile.Filters.PropertyType = ptr(models.PropertyHouse)
	profile.Filters.Amenities = []models.Amenity{models.AmenityPool, models.AmenityGym}

	c := activeCandidate("l-1", 450000)
	c.Bedrooms = ptr(1)
	c.Bathrooms = ptr(1)
	c.Amenities = []models.Amenity{}

	results, err := s.Match(profile, []models.Candidate{c}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Reasons, 4)
	assert.Equal(t, []string{"over_budget", "type_mismatch", "bedrooms_short", "bathrooms_short"}, reasonCodes(results[0]))
}
