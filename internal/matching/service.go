// internal/matching/service.go
package matching

import (
	"context"
	"strings"
	"time"

	apperrors "marketplace-engine/internal/common/errors"
	"marketplace-engine/internal/common/logger"
	"marketplace-engine/internal/common/metrics"
	"marketplace-engine/internal/common/observability"
	"marketplace-engine/internal/models"
)

// Request asks for a fresh ranking of the pool for one subject. When Profile
// is nil the stored profile is used. TenantID selects the candidate pool; an
// empty one means the global pool.
type Request struct {
	SubjectID string               `json:"subjectId"`
	TenantID  string               `json:"tenantId,omitempty"`
	TopK      int                  `json:"topK,omitempty"`
	Profile   *models.BuyerProfile `json:"profile,omitempty"`
}

type Response struct {
	SubjectID       string               `json:"subjectId"`
	Scope           string               `json:"scope"`
	Degraded        bool                 `json:"degraded"`
	DegradedReasons []string             `json:"degradedReasons,omitempty"`
	Results         []models.MatchResult `json:"results"`
}

// ReasonPoolTruncated marks a ranking computed over the first CandidateLimit
// eligible listings only.
const ReasonPoolTruncated = "candidate_pool_truncated"

// Service runs the scorer against the stores and persists the snapshot.
type Service struct {
	scorer         *Scorer
	profiles       ProfileStore
	candidates     CandidateSource
	snapshots      SnapshotStore
	defaultTopK    int
	candidateLimit int
	obs            *observability.Observability
	logger         logger.Logger
}

type ServiceOptions struct {
	DefaultTopK    int
	CandidateLimit int
	Observability  *observability.Observability
}

func NewService(scorer *Scorer, profiles ProfileStore, candidates CandidateSource, snapshots SnapshotStore, opts ServiceOptions, log logger.Logger) *Service {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 20
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = 500
	}
	return &Service{
		scorer:         scorer,
		profiles:       profiles,
		candidates:     candidates,
		snapshots:      snapshots,
		defaultTopK:    opts.DefaultTopK,
		candidateLimit: opts.CandidateLimit,
		obs:            opts.Observability,
		logger:         log.WithFields(map[string]interface{}{"component": "matching"}),
	}
}

// MatchSubject ranks the pool for the subject and overwrites its snapshot for
// the request scope. Validation happens before any read or write.
func (s *Service) MatchSubject(ctx context.Context, req Request) (resp *Response, err error) {
	ctx, span := observability.StartSpan(ctx, "matching.MatchSubject", map[string]string{"subjectId": req.SubjectID})
	start := time.Now()
	scope := models.ScopeFor(req.TenantID)
	defer func() {
		observability.EndSpan(span, err)
		metrics.MatchDuration.Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = strings.ToLower(string(apperrors.CodeOf(err)))
		}
		metrics.MatchRuns.WithLabelValues(scopeKind(req.TenantID), outcome).Inc()
	}()

	if err := s.ValidateRequest(req); err != nil {
		return nil, err
	}
	topK := s.topK(req)

	profile := req.Profile
	if profile != nil {
		if err := s.scorer.ValidateProfile(profile); err != nil {
			return nil, err
		}
		profile.SubjectID = req.SubjectID
		profile.Filters.Normalize()
		if err := profile.Filters.Validate(); err != nil {
			return nil, err
		}
	} else {
		profile, err = s.profiles.GetProfile(ctx, req.SubjectID)
		if err != nil {
			return nil, apperrors.NewPersistenceError("load_profile", req.SubjectID, err)
		}
		if err := s.scorer.ValidateProfile(profile); err != nil {
			return nil, err
		}
	}

	if profile != nil && profile.TenantID != "" && profile.TenantID != req.TenantID {
		return nil, apperrors.NewForbiddenError("subject " + req.SubjectID + " belongs to another tenant than the requested pool")
	}

	resp = &Response{SubjectID: req.SubjectID, Scope: scope, Results: []models.MatchResult{}}
	if profile == nil {
		s.logger.Info("No profile for subject; returning empty result", map[string]interface{}{"subjectId": req.SubjectID})
		return resp, nil
	}

	// one extra row tells a full pool apart from a cut one
	pool, err := s.candidates.EligibleCandidates(ctx, req.TenantID, s.candidateLimit+1)
	if err != nil {
		return nil, apperrors.NewPersistenceError("load_candidates", req.SubjectID, err)
	}
	if len(pool) > s.candidateLimit {
		pool = pool[:s.candidateLimit]
		resp.Degraded = true
		resp.DegradedReasons = append(resp.DegradedReasons, ReasonPoolTruncated)
		metrics.MatchResultsDegraded.WithLabelValues(ReasonPoolTruncated).Inc()
		s.logger.Warn("Eligible pool exceeds candidate limit; ranking the most recent listings only", map[string]interface{}{
			"subjectId": req.SubjectID,
			"scope":     scope,
			"limit":     s.candidateLimit,
		})
	}

	results, err := s.scorer.Match(profile, pool, topK)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Scope = scope
		if results[i].Degraded {
			resp.Degraded = true
			for _, reason := range results[i].DegradedReasons {
				metrics.MatchResultsDegraded.WithLabelValues(reason).Inc()
			}
		}
	}

	if err := s.snapshots.ReplaceSnapshot(ctx, req.SubjectID, scope, results); err != nil {
		return nil, apperrors.NewPersistenceError("replace_snapshot", req.SubjectID, err)
	}

	resp.Results = results
	if len(results) > 0 {
		s.obs.RecordTopScore(ctx, scope, results[0].OverallScore)
	}

	s.logger.Info("Matched subject", map[string]interface{}{
		"subjectId":  req.SubjectID,
		"scope":      scope,
		"poolSize":   len(pool),
		"results":    len(results),
		"degraded":   resp.Degraded,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return resp, nil
}

// ValidateRequest checks the parts of a request that need no store access.
// A zero TopK means the configured default.
func (s *Service) ValidateRequest(req Request) error {
	if strings.TrimSpace(req.SubjectID) == "" {
		return apperrors.NewValidationError("subjectId is required")
	}
	return s.scorer.ValidateTopK(s.topK(req))
}

func (s *Service) topK(req Request) int {
	if req.TopK == 0 {
		return s.defaultTopK
	}
	return req.TopK
}

// Snapshot returns the stored results for (subject, scope). A subject with
// neither a snapshot nor a profile is NOT_FOUND.
func (s *Service) Snapshot(ctx context.Context, subjectID, tenantID string) (*Response, error) {
	if strings.TrimSpace(subjectID) == "" {
		return nil, apperrors.NewValidationError("subjectId is required")
	}
	scope := models.ScopeFor(tenantID)

	profile, err := s.profiles.GetProfile(ctx, subjectID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("load_profile", subjectID, err)
	}
	if profile != nil && profile.TenantID != "" && profile.TenantID != tenantID {
		return nil, apperrors.NewForbiddenError("subject " + subjectID + " belongs to another tenant than the requested scope")
	}

	results, err := s.snapshots.GetSnapshot(ctx, subjectID, scope)
	if err != nil {
		return nil, apperrors.NewPersistenceError("load_snapshot", subjectID, err)
	}
	if len(results) == 0 && profile == nil {
		return nil, apperrors.NewNotFoundError("subject", subjectID)
	}

	resp := &Response{SubjectID: subjectID, Scope: scope, Results: results}
	for _, r := range results {
		if r.Degraded {
			resp.Degraded = true
			break
		}
	}
	return resp, nil
}

func scopeKind(tenantID string) string {
	if tenantID == "" {
		return "global"
	}
	return "tenant"
}
