package matching

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"marketplace-engine/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

var profileColumns = []string{"subject_id", "tenant_id", "filters", "query", "embedding", "provenance", "updated_at"}

func TestPostgresStore_GetProfile(t *testing.T) {
	store, mock := newMockStore(t)
	updated := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM buyer_profiles")).
		WithArgs("subject-1").
		WillReturnRows(sqlmock.NewRows(profileColumns).AddRow(
			"subject-1", "acme", []byte(`{"kind":"SALE","budget":{"max":400000}}`),
			"two bedroom flat", "{0.5,0.25,1}", "EXTRACTED", updated,
		))

	p, err := store.GetProfile(context.Background(), "subject-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "acme", p.TenantID)
	assert.Equal(t, models.KindSale, *p.Filters.Kind)
	assert.Equal(t, 400000.0, *p.Filters.Budget.Max)
	assert.Equal(t, []float32{0.5, 0.25, 1}, p.Embedding)
	assert.Equal(t, models.ProvenanceExtracted, p.Provenance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProfileMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM buyer_profiles")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(profileColumns))

	p, err := store.GetProfile(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPostgresStore_UpsertProfile(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO buyer_profiles")).
		WithArgs("subject-1", "", sqlmock.AnyArg(), "flat", nil, "FALLBACK", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpsertProfile(context.Background(), models.BuyerProfile{
		SubjectID: "subject-1", Query: "flat", Provenance: models.ProvenanceFallback, UpdatedAt: fixedNow,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EligibleCandidates(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	columns := []string{"id", "tenant_id", "kind", "property_type", "price", "size_sqm", "bedrooms", "bathrooms",
		"parking", "location", "amenities", "published", "status", "embedding", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM listings")).
		WithArgs("acme", 500).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("l-1", "acme", "SALE", "APARTMENT", 350000.0, 72.5, int64(2), int64(1), nil, "Kirchberg",
				"{POOL,BALCONY}", true, "ACTIVE", "{1,0,0}", created, updated).
			AddRow("l-2", "acme", "", "", nil, nil, nil, nil, nil, "", nil, true, "ACTIVE", nil, created, nil))

	out, err := store.EligibleCandidates(context.Background(), "acme", 500)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, 350000.0, *out[0].Price)
	assert.Equal(t, 2, *out[0].Bedrooms)
	assert.Nil(t, out[0].Parking)
	assert.Equal(t, []models.Amenity{models.AmenityPool, models.AmenityBalcony}, out[0].Amenities)
	assert.Equal(t, []float32{1, 0, 0}, out[0].Embedding)
	assert.Equal(t, updated, *out[0].UpdatedAt)

	assert.Nil(t, out[1].Price)
	assert.Nil(t, out[1].Amenities, "NULL amenities stay undisclosed")
	assert.Nil(t, out[1].Embedding)
	assert.Nil(t, out[1].UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceSnapshot(t *testing.T) {
	store, mock := newMockStore(t)
	fresh := 0.9

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
		WithArgs("subject-1|global").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM match_results")).
		WithArgs("subject-1", "global").
		WillReturnResult(sqlmock.NewResult(0, 3))
	for i := 0; i < 2; i++ {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO match_results")).
			WithArgs(sqlmock.AnyArg(), "subject-1", "global", sqlmock.AnyArg(), i+1, sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	err := store.ReplaceSnapshot(context.Background(), "subject-1", "global", []models.MatchResult{
		{CandidateID: "l-1", Rank: 1, OverallScore: 0.9, FreshnessScore: &fresh, CreatedAt: fixedNow},
		{CandidateID: "l-2", Rank: 2, OverallScore: 0.5, Degraded: true, DegradedReasons: []string{"candidate_embedding_missing"}, CreatedAt: fixedNow},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceSnapshotRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM match_results")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO match_results")).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	err := store.ReplaceSnapshot(context.Background(), "subject-1", "global", []models.MatchResult{{CandidateID: "l-1", Rank: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSnapshot(t *testing.T) {
	store, mock := newMockStore(t)
	columns := []string{"id", "subject_id", "scope", "candidate_id", "rank", "overall_score", "structured_score",
		"semantic_score", "freshness_score", "reasons", "degraded", "degraded_reasons", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM match_results")).
		WithArgs("subject-1", "tenant:acme").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"r-1", "subject-1", "tenant:acme", "l-1", 1, 0.8, 1.0, 0.6, nil,
			[]byte(`[{"code":"within_budget","label":"Price within budget","tone":"positive","weight":3}]`),
			true, "{profile_embedding_missing}", fixedNow,
		))

	out, err := store.GetSnapshot(context.Background(), "subject-1", "tenant:acme")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].FreshnessScore)
	assert.Equal(t, "within_budget", out[0].Reasons[0].Code)
	assert.Equal(t, []string{"profile_embedding_missing"}, out[0].DegradedReasons)
	assert.NoError(t, mock.ExpectationsWereMet())
}
