package intake

import (
	"context"
	"fmt"
	"testing"
	"time"

	apperrors "marketplace-engine/internal/common/errors"
	"marketplace-engine/internal/common/logger"
	"marketplace-engine/internal/matching"
	"marketplace-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type fakeExtractor struct {
	out *Extraction
	err error
}

func (f *fakeExtractor) Extract(context.Context, string, models.StructuredFilters) (*Extraction, error) {
	return f.out, f.err
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	input string
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.input = text
	return f.vec, f.err
}

type fakeProfiles struct {
	saved []models.BuyerProfile
	err   error
}

func (f *fakeProfiles) UpsertProfile(_ context.Context, p models.BuyerProfile) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, p)
	return nil
}

type fakeMatcher struct {
	resp        *matching.Response
	err         error
	validateErr error
	req         matching.Request
}

func (f *fakeMatcher) ValidateRequest(matching.Request) error {
	return f.validateErr
}

func (f *fakeMatcher) MatchSubject(_ context.Context, req matching.Request) (*matching.Response, error) {
	f.req = req
	return f.resp, f.err
}

type noopMatchStore struct{}

func (noopMatchStore) GetProfile(context.Context, string) (*models.BuyerProfile, error) {
	return nil, nil
}

func (noopMatchStore) UpsertProfile(context.Context, models.BuyerProfile) error { return nil }

func (noopMatchStore) EligibleCandidates(context.Context, string, int) ([]models.Candidate, error) {
	return nil, nil
}

func (noopMatchStore) ReplaceSnapshot(context.Context, string, string, []models.MatchResult) error {
	return nil
}

func (noopMatchStore) GetSnapshot(context.Context, string, string) ([]models.MatchResult, error) {
	return nil, nil
}

func newTestPipeline(t *testing.T, ex Extractor, em Embedder, pr ProfileWriter, m Matcher) *Pipeline {
	return NewPipeline(ex, em, pr, m, 3, logger.NewTestLogger(t)).WithClock(func() time.Time { return fixedNow })
}

func statuses(r *Result) map[string]StageStatus {
	out := map[string]StageStatus{}
	for _, s := range r.Stages {
		out[s.Name] = s.Status
	}
	return out
}

// ==========================
// Test Cases
// ==========================

func TestPipeline_HappyPath(t *testing.T) {
	ex := &fakeExtractor{out: &Extraction{
		Filters:         models.StructuredFilters{Kind: ptr(models.KindRent), MinBedrooms: ptr(2)},
		NormalizedQuery: "two bedroom rental",
	}}
	em := &fakeEmbedder{vec: []float32{0, 1, 0}}
	pr := &fakeProfiles{}
	m := &fakeMatcher{resp: &matching.Response{SubjectID: "s-1", Scope: "tenant:acme"}}

	res, err := newTestPipeline(t, ex, em, pr, m).Run(context.Background(), Inquiry{
		SubjectID: "s-1",
		TenantID:  "acme",
		Text:      "2br to rent",
		Context:   models.StructuredFilters{Kind: ptr(models.KindSale), Locations: []string{"Kirchberg"}},
		TopK:      5,
	})
	require.NoError(t, err)

	assert.False(t, res.Degraded)
	assert.Equal(t, map[string]StageStatus{
		StageExtract: StageSuccess, StageEmbed: StageSuccess, StagePersist: StageSuccess, StageMatch: StageSuccess,
	}, statuses(res))

	require.Len(t, pr.saved, 1)
	saved := pr.saved[0]
	assert.Equal(t, models.ProvenanceExtracted, saved.Provenance)
	assert.Equal(t, models.KindSale, *saved.Filters.Kind, "caller context wins over extraction")
	assert.Equal(t, 2, *saved.Filters.MinBedrooms)
	assert.Equal(t, []string{"kirchberg"}, saved.Filters.Locations)
	assert.Equal(t, "two bedroom rental", saved.Query)
	assert.Equal(t, "two bedroom rental", em.input)
	assert.Equal(t, []float32{0, 1, 0}, saved.Embedding)
	assert.Equal(t, fixedNow, saved.UpdatedAt)

	assert.Equal(t, matching.Request{SubjectID: "s-1", TenantID: "acme", TopK: 5}, m.req)
	assert.Equal(t, "tenant:acme", res.Matches.Scope)
}

func TestPipeline_ExtractorDownFallsBack(t *testing.T) {
	ex := &fakeExtractor{err: fmt.Errorf("connection refused")}
	pr := &fakeProfiles{}

	res, err := newTestPipeline(t, ex, &fakeEmbedder{vec: []float32{1, 0, 0}}, pr, nil).Run(context.Background(), Inquiry{
		SubjectID: "s-1",
		Text:      "garden house",
		Context:   models.StructuredFilters{PropertyType: ptr(models.PropertyHouse)},
	})
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Equal(t, StageDegraded, statuses(res)[StageExtract])
	assert.Equal(t, StageSkipped, statuses(res)[StageMatch])
	stage, _ := res.Stage(StageExtract)
	assert.Contains(t, stage.Error, "connection refused")

	require.Len(t, pr.saved, 1)
	assert.Equal(t, models.ProvenanceFallback, pr.saved[0].Provenance)
	assert.Equal(t, models.PropertyHouse, *pr.saved[0].Filters.PropertyType)
	assert.Equal(t, "garden house", pr.saved[0].Query)
}

func TestPipeline_EmbeddingFailureIsDegraded(t *testing.T) {
	pr := &fakeProfiles{}
	res, err := newTestPipeline(t, nil, &fakeEmbedder{err: fmt.Errorf("timeout")}, pr, nil).Run(context.Background(), Inquiry{
		SubjectID: "s-1",
		Text:      "studio",
	})
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Equal(t, StageSkipped, statuses(res)[StageExtract])
	assert.Equal(t, StageDegraded, statuses(res)[StageEmbed])
	assert.Nil(t, pr.saved[0].Embedding)
}

func TestPipeline_WrongDimensionWritesNothing(t *testing.T) {
	pr := &fakeProfiles{}
	_, err := newTestPipeline(t, nil, &fakeEmbedder{vec: make([]float32, 1536)}, pr, nil).Run(context.Background(), Inquiry{
		SubjectID: "s-1",
		Text:      "studio",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
	assert.Empty(t, pr.saved)
}

func TestPipeline_PersistFailureIsFatal(t *testing.T) {
	m := &fakeMatcher{}
	_, err := newTestPipeline(t, nil, nil, &fakeProfiles{err: fmt.Errorf("read-only transaction")}, m).Run(context.Background(), Inquiry{
		SubjectID: "s-1",
		Context:   models.StructuredFilters{Kind: ptr(models.KindSale)},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePersistenceFailure))
	assert.Empty(t, m.req.SubjectID, "match never runs after a failed persist")
}

func TestPipeline_MatchFailureIsAdvisory(t *testing.T) {
	pr := &fakeProfiles{}
	m := &fakeMatcher{err: apperrors.NewPersistenceError("replace_snapshot", "s-1", fmt.Errorf("boom"))}

	res, err := newTestPipeline(t, nil, nil, pr, m).Run(context.Background(), Inquiry{SubjectID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, StageFailed, statuses(res)[StageMatch])
	assert.Nil(t, res.Matches)
	assert.Len(t, pr.saved, 1)
}

func TestPipeline_ValidatesBeforeAnyStage(t *testing.T) {
	pr := &fakeProfiles{}
	p := newTestPipeline(t, nil, nil, pr, nil)

	_, err := p.Run(context.Background(), Inquiry{SubjectID: ""})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))

	_, err = p.Run(context.Background(), Inquiry{SubjectID: "s-1", Context: models.StructuredFilters{Amenities: []models.Amenity{"HELIPAD"}}})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
	assert.Empty(t, pr.saved)
}

func TestPipeline_InvalidTopKPersistsNothing(t *testing.T) {
	pr := &fakeProfiles{}
	store := &noopMatchStore{}
	svc := matching.NewService(matching.NewScorer(matching.ScorerConfig{Dimension: 3}), store, store, store, matching.ServiceOptions{}, logger.NewTestLogger(t))

	res, err := newTestPipeline(t, nil, nil, pr, svc).Run(context.Background(), Inquiry{SubjectID: "s-1", Text: "loft", TopK: 500})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
	assert.Contains(t, err.Error(), "topK")
	assert.Empty(t, pr.saved)
}

func TestPipeline_MatcherValidationRunsFirst(t *testing.T) {
	pr := &fakeProfiles{}
	em := &fakeEmbedder{vec: []float32{1, 0, 0}}
	m := &fakeMatcher{validateErr: apperrors.NewValidationError("topK must be within 1..50, got 0")}

	_, err := newTestPipeline(t, nil, em, pr, m).Run(context.Background(), Inquiry{SubjectID: "s-1", Text: "loft", TopK: -3})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
	assert.Empty(t, em.input, "no stage runs after a rejected request")
	assert.Empty(t, pr.saved)
	assert.Empty(t, m.req.SubjectID)
}
