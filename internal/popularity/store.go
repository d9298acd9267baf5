// internal/popularity/store.go
package popularity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketplace-engine/internal/models"
)

// Store owns the listing_popularity table and reads windowed engagement.
type Store interface {
	ResetIneligible(ctx context.Context) (int64, error)
	LoadActivity(ctx context.Context, since time.Time) ([]models.ListingActivity, error)
	UpsertRecord(ctx context.Context, rec models.PopularityRecord) error
	GetRecord(ctx context.Context, listingID string) (*models.PopularityRecord, error)
}

const (
	queryResetIneligible = `
		UPDATE listing_popularity lp
		SET badge = 'NONE', saves_7d = 0, views_7d = 0, score = 0
		FROM listings l
		WHERE l.id = lp.listing_id
		  AND (l.published = FALSE OR l.status <> 'ACTIVE')
		  AND (lp.badge <> 'NONE' OR lp.saves_7d <> 0 OR lp.views_7d <> 0 OR lp.score <> 0)`

	queryLoadActivity = `
		SELECT l.id, COALESCE(l.kind, ''), COALESCE(l.property_type, ''), COALESCE(l.location, ''), l.created_at,
		       COUNT(e.id) FILTER (WHERE e.kind = 'SAVE') AS saves,
		       COUNT(e.id) FILTER (WHERE e.kind = 'VIEW') AS views
		FROM listings l
		LEFT JOIN engagement_events e ON e.listing_id = l.id AND e.occurred_at >= $1
		WHERE l.published = TRUE AND l.status = 'ACTIVE'
		GROUP BY l.id, l.kind, l.property_type, l.location, l.created_at
		ORDER BY l.id`

	queryUpsertRecord = `
		INSERT INTO listing_popularity (listing_id, saves_7d, views_7d, score, segment_key, badge)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (listing_id) DO UPDATE SET
			saves_7d = EXCLUDED.saves_7d,
			views_7d = EXCLUDED.views_7d,
			score = EXCLUDED.score,
			segment_key = EXCLUDED.segment_key,
			badge = EXCLUDED.badge`

	queryGetRecord = `
		SELECT listing_id, saves_7d, views_7d, score, segment_key, badge
		FROM listing_popularity
		WHERE listing_id = $1`
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ResetIneligible clears badges and counters on listings that are no longer
// published and active. It returns how many rows changed.
func (s *PostgresStore) ResetIneligible(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, queryResetIneligible)
	if err != nil {
		return 0, fmt.Errorf("reset ineligible listings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset ineligible listings: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) LoadActivity(ctx context.Context, since time.Time) ([]models.ListingActivity, error) {
	rows, err := s.db.QueryContext(ctx, queryLoadActivity, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate engagement: %w", err)
	}
	defer rows.Close()

	var out []models.ListingActivity
	for rows.Next() {
		var a models.ListingActivity
		if err := rows.Scan(&a.ListingID, &a.Kind, &a.PropertyType, &a.Location, &a.CreatedAt, &a.Saves, &a.Views); err != nil {
			return nil, fmt.Errorf("scan engagement row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engagement: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpsertRecord(ctx context.Context, rec models.PopularityRecord) error {
	_, err := s.db.ExecContext(ctx, queryUpsertRecord,
		rec.ListingID, rec.Saves7d, rec.Views7d, rec.Score, rec.SegmentKey, string(rec.Badge))
	if err != nil {
		return fmt.Errorf("upsert popularity %s: %w", rec.ListingID, err)
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, listingID string) (*models.PopularityRecord, error) {
	var (
		rec   models.PopularityRecord
		badge string
	)
	err := s.db.QueryRowContext(ctx, queryGetRecord, listingID).
		Scan(&rec.ListingID, &rec.Saves7d, &rec.Views7d, &rec.Score, &rec.SegmentKey, &badge)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get popularity %s: %w", listingID, err)
	}
	rec.Badge = models.Badge(badge)
	return &rec, nil
}
