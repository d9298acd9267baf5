// internal/matching/store.go
package matching

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-engine/internal/common/database"
	"marketplace-engine/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ProfileStore persists buyer profiles. GetProfile returns nil, nil when the
// subject has none.
type ProfileStore interface {
	GetProfile(ctx context.Context, subjectID string) (*models.BuyerProfile, error)
	UpsertProfile(ctx context.Context, profile models.BuyerProfile) error
}

// CandidateSource reads the eligible listing pool. An empty tenantID means
// the global pool.
type CandidateSource interface {
	EligibleCandidates(ctx context.Context, tenantID string, limit int) ([]models.Candidate, error)
}

// SnapshotStore keeps the latest ranked results per (subject, scope).
type SnapshotStore interface {
	ReplaceSnapshot(ctx context.Context, subjectID, scope string, results []models.MatchResult) error
	GetSnapshot(ctx context.Context, subjectID, scope string) ([]models.MatchResult, error)
}

const (
	queryGetProfile = `
		SELECT subject_id, COALESCE(tenant_id, ''), filters, query, embedding, provenance, updated_at
		FROM buyer_profiles
		WHERE subject_id = $1`

	queryUpsertProfile = `
		INSERT INTO buyer_profiles (subject_id, tenant_id, filters, query, embedding, provenance, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
		ON CONFLICT (subject_id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			filters = EXCLUDED.filters,
			query = EXCLUDED.query,
			embedding = EXCLUDED.embedding,
			provenance = EXCLUDED.provenance,
			updated_at = EXCLUDED.updated_at`

	queryEligibleCandidates = `
		SELECT id, COALESCE(tenant_id, ''), COALESCE(kind, ''), COALESCE(property_type, ''),
			price, size_sqm, bedrooms, bathrooms, parking, COALESCE(location, ''), amenities,
			published, status, embedding, created_at, updated_at
		FROM listings
		WHERE published = TRUE AND status = 'ACTIVE'
			AND ($1 = '' OR tenant_id = $1)
		ORDER BY updated_at DESC NULLS LAST, id ASC
		LIMIT $2`

	queryLockSnapshot = `SELECT pg_advisory_xact_lock(hashtext($1))`

	queryDeleteSnapshot = `DELETE FROM match_results WHERE subject_id = $1 AND scope = $2`

	queryInsertResult = `
		INSERT INTO match_results (id, subject_id, scope, candidate_id, rank, overall_score,
			structured_score, semantic_score, freshness_score, reasons, degraded, degraded_reasons, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	queryGetSnapshot = `
		SELECT id, subject_id, scope, candidate_id, rank, overall_score, structured_score,
			semantic_score, freshness_score, reasons, degraded, degraded_reasons, created_at
		FROM match_results
		WHERE subject_id = $1 AND scope = $2
		ORDER BY rank ASC`
)

// PostgresStore implements ProfileStore, CandidateSource and SnapshotStore on lib/pq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetProfile(ctx context.Context, subjectID string) (*models.BuyerProfile, error) {
	var (
		p         models.BuyerProfile
		filters   []byte
		embedding pq.Float32Array
		prov      string
	)
	err := s.db.QueryRowContext(ctx, queryGetProfile, subjectID).
		Scan(&p.SubjectID, &p.TenantID, &filters, &p.Query, &embedding, &prov, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", subjectID, err)
	}

	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &p.Filters); err != nil {
			return nil, fmt.Errorf("decode filters for %s: %w", subjectID, err)
		}
	}
	if len(embedding) > 0 {
		p.Embedding = []float32(embedding)
	}
	p.Provenance = models.Provenance(prov)
	return &p, nil
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, p models.BuyerProfile) error {
	filters, err := json.Marshal(p.Filters)
	if err != nil {
		return fmt.Errorf("encode filters for %s: %w", p.SubjectID, err)
	}

	var embedding interface{}
	if len(p.Embedding) > 0 {
		embedding = pq.Float32Array(p.Embedding)
	}

	_, err = s.db.ExecContext(ctx, queryUpsertProfile,
		p.SubjectID, p.TenantID, filters, p.Query, embedding, string(p.Provenance), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.SubjectID, err)
	}
	return nil
}

func (s *PostgresStore) EligibleCandidates(ctx context.Context, tenantID string, limit int) ([]models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, queryEligibleCandidates, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var (
			c                        models.Candidate
			kind, ptype, status      string
			price, size              sql.NullFloat64
			bedrooms, baths, parking sql.NullInt64
			amenities                pq.StringArray
			embedding                pq.Float32Array
			updatedAt                sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.TenantID, &kind, &ptype, &price, &size, &bedrooms, &baths, &parking,
			&c.Location, &amenities, &c.Published, &status, &embedding, &c.CreatedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}

		c.Kind = models.ListingKind(kind)
		c.PropertyType = models.PropertyType(ptype)
		c.Status = models.ListingStatus(status)
		c.Price = nullFloat(price)
		c.Size = nullFloat(size)
		c.Bedrooms = nullInt(bedrooms)
		c.Bathrooms = nullInt(baths)
		c.Parking = nullInt(parking)
		if amenities != nil {
			c.Amenities = make([]models.Amenity, 0, len(amenities))
			for _, a := range amenities {
				c.Amenities = append(c.Amenities, models.Amenity(a))
			}
		}
		if len(embedding) > 0 {
			c.Embedding = []float32(embedding)
		}
		if updatedAt.Valid {
			t := updatedAt.Time
			c.UpdatedAt = &t
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

// ReplaceSnapshot swaps the stored results for (subject, scope) in one
// transaction. A transaction-scoped advisory lock serializes writers of the
// same pair so rows from two runs never interleave.
func (s *PostgresStore) ReplaceSnapshot(ctx context.Context, subjectID, scope string, results []models.MatchResult) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, queryLockSnapshot, subjectID+"|"+scope); err != nil {
			return fmt.Errorf("lock snapshot: %w", err)
		}
		if _, err := tx.ExecContext(ctx, queryDeleteSnapshot, subjectID, scope); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}

		for _, r := range results {
			reasons, err := json.Marshal(r.Reasons)
			if err != nil {
				return fmt.Errorf("encode reasons for %s: %w", r.CandidateID, err)
			}
			id := r.ID
			if id == "" {
				id = uuid.NewString()
			}
			var freshness interface{}
			if r.FreshnessScore != nil {
				freshness = *r.FreshnessScore
			}
			if _, err := tx.ExecContext(ctx, queryInsertResult,
				id, subjectID, scope, r.CandidateID, r.Rank, r.OverallScore, r.StructuredScore,
				r.SemanticScore, freshness, reasons, r.Degraded, pq.StringArray(r.DegradedReasons), r.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert result %s: %w", r.CandidateID, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, subjectID, scope string) ([]models.MatchResult, error) {
	rows, err := s.db.QueryContext(ctx, queryGetSnapshot, subjectID, scope)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	out := []models.MatchResult{}
	for rows.Next() {
		var (
			r         models.MatchResult
			freshness sql.NullFloat64
			reasons   []byte
			degraded  pq.StringArray
			createdAt time.Time
		)
		if err := rows.Scan(&r.ID, &r.SubjectID, &r.Scope, &r.CandidateID, &r.Rank, &r.OverallScore,
			&r.StructuredScore, &r.SemanticScore, &freshness, &reasons, &r.Degraded, &degraded, &createdAt); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		r.FreshnessScore = nullFloat(freshness)
		if len(reasons) > 0 {
			if err := json.Unmarshal(reasons, &r.Reasons); err != nil {
				return nil, fmt.Errorf("decode reasons for %s: %w", r.CandidateID, err)
			}
		}
		if len(degraded) > 0 {
			r.DegradedReasons = []string(degraded)
		}
		r.CreatedAt = createdAt
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot: %w", err)
	}
	return out, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
