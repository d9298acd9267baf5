// internal/intake/pipeline.go
package intake

import (
	"context"
	"strings"
	"time"

	apperrors "marketplace-engine/internal/common/errors"
	"marketplace-engine/internal/common/logger"
	"marketplace-engine/internal/common/metrics"
	"marketplace-engine/internal/common/observability"
	"marketplace-engine/internal/matching"
	"marketplace-engine/internal/models"
	"marketplace-engine/internal/scoring"
)

type StageStatus string

const (
	StageSuccess  StageStatus = "SUCCESS"
	StageDegraded StageStatus = "DEGRADED"
	StageFailed   StageStatus = "FAILED"
	StageSkipped  StageStatus = "SKIPPED"
)

const (
	StageExtract = "extract"
	StageEmbed   = "embed"
	StagePersist = "persist"
	StageMatch   = "match"
)

type StageResult struct {
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	DurationMs int64       `json:"durationMs"`
}

// Inquiry is a free-text request from a buyer plus whatever structured
// filters the caller already knows.
type Inquiry struct {
	SubjectID string                   `json:"subjectId"`
	TenantID  string                   `json:"tenantId,omitempty"`
	Text      string                   `json:"text"`
	Context   models.StructuredFilters `json:"context"`
	TopK      int                      `json:"topK,omitempty"`
	SkipMatch bool                     `json:"skipMatch,omitempty"`
}

type Result struct {
	Profile  *models.BuyerProfile `json:"profile"`
	Stages   []StageResult        `json:"stages"`
	Degraded bool                 `json:"degraded"`
	Matches  *matching.Response   `json:"matches,omitempty"`
}

func (r *Result) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

type ProfileWriter interface {
	UpsertProfile(ctx context.Context, p models.BuyerProfile) error
}

type Matcher interface {
	ValidateRequest(req matching.Request) error
	MatchSubject(ctx context.Context, req matching.Request) (*matching.Response, error)
}

// Pipeline builds a buyer profile from an inquiry. Extract and embed degrade
// to a fallback; persist is fatal; match is advisory.
type Pipeline struct {
	extractor Extractor
	embedder  Embedder
	profiles  ProfileWriter
	matcher   Matcher
	dimension int
	now       func() time.Time
	logger    logger.Logger
}

func NewPipeline(extractor Extractor, embedder Embedder, profiles ProfileWriter, matcher Matcher, dimension int, log logger.Logger) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		embedder:  embedder,
		profiles:  profiles,
		matcher:   matcher,
		dimension: dimension,
		now:       time.Now,
		logger:    log.WithFields(map[string]interface{}{"component": "intake"}),
	}
}

func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

func (p *Pipeline) Run(ctx context.Context, in Inquiry) (*Result, error) {
	if strings.TrimSpace(in.SubjectID) == "" {
		return nil, apperrors.NewValidationError("subjectId is required")
	}
	in.Text = strings.TrimSpace(in.Text)
	in.Context.Normalize()
	if err := in.Context.Validate(); err != nil {
		return nil, err
	}
	matchReq := matching.Request{SubjectID: in.SubjectID, TenantID: in.TenantID, TopK: in.TopK}
	if p.matcher != nil {
		if err := p.matcher.ValidateRequest(matchReq); err != nil {
			return nil, err
		}
	}

	log := p.logger.WithFields(map[string]interface{}{"subjectId": in.SubjectID})
	res := &Result{}
	profile := &models.BuyerProfile{
		SubjectID:  in.SubjectID,
		TenantID:   in.TenantID,
		Filters:    in.Context,
		Query:      in.Text,
		Provenance: models.ProvenanceFallback,
		UpdatedAt:  p.now().UTC(),
	}
	res.Profile = profile

	p.runStage(ctx, res, StageExtract, func(ctx context.Context) (StageStatus, error) {
		if in.Text == "" || p.extractor == nil {
			return StageSkipped, nil
		}
		ext, err := p.extractor.Extract(ctx, in.Text, in.Context)
		if err != nil {
			return StageDegraded, apperrors.NewUpstreamDegradedError("intent-extractor", err)
		}
		// explicit context wins over what was inferred
		profile.Filters = ext.Filters.Overlay(in.Context)
		if ext.NormalizedQuery != "" {
			profile.Query = ext.NormalizedQuery
		}
		profile.Provenance = models.ProvenanceExtracted
		return StageSuccess, nil
	})

	var fatal error
	p.runStage(ctx, res, StageEmbed, func(ctx context.Context) (StageStatus, error) {
		if profile.Query == "" || p.embedder == nil {
			return StageSkipped, nil
		}
		vec, err := p.embedder.EmbedQuery(ctx, profile.Query)
		if err != nil {
			return StageDegraded, apperrors.NewUpstreamDegradedError("embedding-service", err)
		}
		if err := scoring.CheckDimension("embedding", vec, p.dimension); err != nil {
			fatal = err
			return StageFailed, err
		}
		profile.Embedding = vec
		return StageSuccess, nil
	})
	if fatal != nil {
		return nil, fatal
	}

	p.runStage(ctx, res, StagePersist, func(ctx context.Context) (StageStatus, error) {
		if err := p.profiles.UpsertProfile(ctx, *profile); err != nil {
			fatal = apperrors.NewPersistenceError(StagePersist, in.SubjectID, err)
			return StageFailed, fatal
		}
		return StageSuccess, nil
	})
	if fatal != nil {
		return nil, fatal
	}

	p.runStage(ctx, res, StageMatch, func(ctx context.Context) (StageStatus, error) {
		if in.SkipMatch || p.matcher == nil {
			return StageSkipped, nil
		}
		resp, err := p.matcher.MatchSubject(ctx, matchReq)
		if err != nil {
			return StageFailed, err
		}
		res.Matches = resp
		if resp.Degraded {
			return StageDegraded, nil
		}
		return StageSuccess, nil
	})

	for _, s := range res.Stages {
		if s.Status == StageDegraded {
			res.Degraded = true
		}
	}
	if profile.Provenance == models.ProvenanceFallback && in.Text != "" {
		res.Degraded = true
	}

	log.Info("Inquiry processed", map[string]interface{}{
		"provenance": profile.Provenance,
		"degraded":   res.Degraded,
		"hasVector":  len(profile.Embedding) > 0,
	})
	return res, nil
}

func (p *Pipeline) runStage(ctx context.Context, res *Result, name string, fn func(context.Context) (StageStatus, error)) {
	ctx, span := observability.StartSpan(ctx, "intake."+name, nil)
	start := time.Now()
	status, err := fn(ctx)
	observability.EndSpan(span, err)

	sr := StageResult{Name: name, Status: status, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		sr.Error = err.Error()
		p.logger.Warn("Intake stage did not succeed", map[string]interface{}{
			"stage":  name,
			"status": status,
			"error":  err.Error(),
		})
	}
	metrics.ProfileStages.WithLabelValues(name, strings.ToLower(string(status))).Inc()
	res.Stages = append(res.Stages, sr)
}
