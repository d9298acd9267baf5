// internal/matching/scorer.go
package matching

import (
	"sort"
	"strings"
	"time"

	apperrors "marketplace-engine/internal/common/errors"
	"marketplace-engine/internal/models"
	"marketplace-engine/internal/scoring"
)

// Semantic buckets on the rescaled cosine similarity.
const (
	strongMatchThreshold  = 0.85
	partialMatchThreshold = 0.70
	recentThreshold       = 0.8
	semanticReasonWeight  = 2.5
	freshnessReasonWeight = 0.25
)

// Weights blends the three score components.
type Weights struct {
	Structured float64
	Semantic   float64
	Freshness  float64
}

// ScorerConfig tunes the Scorer. Zero values fall back to the defaults.
type ScorerConfig struct {
	Weights      Weights
	HalfLifeDays float64
	MaxTopK      int
	MaxReasons   int
	Dimension    int
}

func (c ScorerConfig) withDefaults() ScorerConfig {
	if c.Weights == (Weights{}) {
		c.Weights = Weights{Structured: 0.5, Semantic: 0.4, Freshness: 0.1}
	}
	if c.HalfLifeDays <= 0 {
		c.HalfLifeDays = 30
	}
	if c.MaxTopK <= 0 || c.MaxTopK > 50 {
		c.MaxTopK = 50
	}
	if c.MaxReasons <= 0 {
		c.MaxReasons = 10
	}
	return c
}

// Scorer ranks a candidate pool against one buyer profile. It is pure: no
// I/O, and the same inputs at the same clock give the same output.
type Scorer struct {
	cfg ScorerConfig
	now func() time.Time
}

func NewScorer(cfg ScorerConfig) *Scorer {
	return &Scorer{cfg: cfg.withDefaults(), now: time.Now}
}

// WithClock returns a copy of the scorer that reads time from now.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	cp := *s
	cp.now = now
	return &cp
}

// ValidateTopK rejects values outside 1..MaxTopK.
func (s *Scorer) ValidateTopK(topK int) error {
	if topK < 1 || topK > s.cfg.MaxTopK {
		return apperrors.NewValidationErrorf("topK must be within 1..%d, got %d", s.cfg.MaxTopK, topK)
	}
	return nil
}

// ValidateProfile checks the profile embedding dimension.
func (s *Scorer) ValidateProfile(profile *models.BuyerProfile) error {
	if profile == nil {
		return nil
	}
	return scoring.CheckDimension("profile embedding", profile.Embedding, s.cfg.Dimension)
}

// Match scores every eligible candidate and returns the top K ordered by
// overall score desc, freshness desc, candidate id asc. A nil profile or an
// empty pool yields an empty result. A tenant profile given a candidate of
// another tenant is FORBIDDEN.
func (s *Scorer) Match(profile *models.BuyerProfile, pool []models.Candidate, topK int) ([]models.MatchResult, error) {
	if err := s.ValidateTopK(topK); err != nil {
		return nil, err
	}
	if err := s.ValidateProfile(profile); err != nil {
		return nil, err
	}
	if profile == nil || len(pool) == 0 {
		return []models.MatchResult{}, nil
	}

	now := s.now().UTC()
	scope := models.ScopeFor(profile.TenantID)

	results := make([]models.MatchResult, 0, len(pool))
	for _, c := range pool {
		if !c.Eligible() {
			continue
		}
		if profile.TenantID != "" && c.TenantID != "" && c.TenantID != profile.TenantID {
			return nil, apperrors.NewForbiddenError("candidate " + c.ID + " belongs to another tenant than subject " + profile.SubjectID)
		}
		r := s.scoreCandidate(profile, c, now)
		r.Scope = scope
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return less(results[i], results[j])
	})

	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

func (s *Scorer) scoreCandidate(profile *models.BuyerProfile, c models.Candidate, now time.Time) models.MatchResult {
	result := models.MatchResult{
		SubjectID:   profile.SubjectID,
		CandidateID: c.ID,
		CreatedAt:   now,
	}

	evals := evaluateConstraints(profile.Filters, c)
	structured, hasStructured := structuredScore(evals)
	result.StructuredScore = scoring.Round6(scoring.Clamp01(structured))

	reasons := make([]models.Reason, 0, len(evals)+2)
	for _, e := range evals {
		reasons = append(reasons, e.reason)
	}

	var semantic float64
	hasSemantic := false
	switch {
	case len(profile.Embedding) == 0:
		result.DegradedReasons = append(result.DegradedReasons, models.DegradedProfileEmbedding)
	case len(c.Embedding) == 0:
		result.DegradedReasons = append(result.DegradedReasons, models.DegradedCandidateEmbedding)
	default:
		if sim, ok := scoring.Cosine(profile.Embedding, c.Embedding); ok {
			semantic = scoring.RescaleCosine(sim)
			hasSemantic = true
		} else {
			result.DegradedReasons = append(result.DegradedReasons, models.DegradedCandidateEmbedding)
		}
	}
	result.SemanticScore = scoring.Round6(semantic)
	if hasSemantic {
		switch {
		case semantic >= strongMatchThreshold:
			reasons = append(reasons, models.Reason{Code: "strong_overall_match", Label: "Strong overall match", Tone: models.TonePositive, Weight: semanticReasonWeight})
		case semantic >= partialMatchThreshold:
			reasons = append(reasons, models.Reason{Code: "partial_match", Label: "Partial match", Tone: models.ToneNeutral, Weight: semanticReasonWeight})
		}
	}

	var freshness float64
	if c.UpdatedAt != nil && !c.UpdatedAt.IsZero() {
		freshness = scoring.Freshness(*c.UpdatedAt, now, s.cfg.HalfLifeDays)
		result.FreshnessScore = &freshness
		if freshness >= recentThreshold {
			reasons = append(reasons, models.Reason{Code: "recently_updated", Label: "Recently updated", Tone: models.ToneNeutral, Weight: freshnessReasonWeight})
		}
	}

	if profile.Provenance == models.ProvenanceFallback {
		result.DegradedReasons = append(result.DegradedReasons, models.DegradedFallbackProfile)
	}
	result.Degraded = len(result.DegradedReasons) > 0

	w := s.cfg.Weights
	result.OverallScore = scoring.Blend(
		scoring.Component{Score: structured, Weight: w.Structured, Present: hasStructured},
		scoring.Component{Score: semantic, Weight: w.Semantic, Present: hasSemantic},
		scoring.Component{Score: freshness, Weight: w.Freshness, Present: result.FreshnessScore != nil},
	)
	result.Reasons = scoring.FinalizeReasons(reasons, s.cfg.MaxReasons)

	return result
}

// less is the total result order. Absent freshness sorts below any present value.
func less(a, b models.MatchResult) bool {
	if a.OverallScore != b.OverallScore {
		return a.OverallScore > b.OverallScore
	}
	fa, fb := freshnessOrNegative(a), freshnessOrNegative(b)
	if fa != fb {
		return fa > fb
	}
	return strings.Compare(a.CandidateID, b.CandidateID) < 0
}

func freshnessOrNegative(r models.MatchResult) float64 {
	if r.FreshnessScore == nil {
		return -1
	}
	return *r.FreshnessScore
}
