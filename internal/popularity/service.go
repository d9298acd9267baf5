// internal/popularity/service.go
package popularity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "marketplace-engine/internal/common/errors"
	"marketplace-engine/internal/common/logger"
	"marketplace-engine/internal/common/metrics"
	"marketplace-engine/internal/common/observability"
	"marketplace-engine/internal/models"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

const (
	DefaultWindowDays = 7
	maxWindowDays     = 365
)

// Failure is one listing whose upsert did not commit.
type Failure struct {
	ListingID string `json:"listingId"`
	Stage     string `json:"stage"`
	Error     string `json:"error"`
}

// Report summarizes a recompute run.
type Report struct {
	RunID      string               `json:"runId"`
	WindowDays int                  `json:"windowDays"`
	StartedAt  time.Time            `json:"startedAt"`
	FinishedAt time.Time            `json:"finishedAt"`
	Reset      int64                `json:"reset"`
	Processed  int                  `json:"processed"`
	Updated    int                  `json:"updated"`
	Failed     int                  `json:"failed"`
	Skipped    int                  `json:"skipped"`
	Badges     map[models.Badge]int `json:"badges"`
	Failures   []Failure            `json:"failures,omitempty"`

	Records []models.PopularityRecord `json:"-"`
}

type ServiceOptions struct {
	Config            Config
	DefaultWindowDays int
	Concurrency       int
	Locker            Locker
	Publisher         Publisher
	Observability     *observability.Observability
}

type Service struct {
	store         Store
	cfg           Config
	defaultWindow int
	concurrency   int
	locker        Locker
	publisher     Publisher
	obs           *observability.Observability
	now           func() time.Time
	logger        logger.Logger
}

func NewService(store Store, opts ServiceOptions, log logger.Logger) *Service {
	if opts.DefaultWindowDays <= 0 {
		opts.DefaultWindowDays = DefaultWindowDays
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Service{
		store:         store,
		cfg:           opts.Config.withDefaults(),
		defaultWindow: opts.DefaultWindowDays,
		concurrency:   opts.Concurrency,
		locker:        opts.Locker,
		publisher:     opts.Publisher,
		obs:           opts.Observability,
		now:           time.Now,
		logger:        log.WithFields(map[string]interface{}{"component": "popularity"}),
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns the stored record for a listing.
func (s *Service) Get(ctx context.Context, listingID string) (*models.PopularityRecord, error) {
	if strings.TrimSpace(listingID) == "" {
		return nil, apperrors.NewValidationError("listingId is required")
	}
	rec, err := s.store.GetRecord(ctx, listingID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("load_popularity", listingID, err)
	}
	if rec == nil {
		return nil, apperrors.NewNotFoundError("popularity", listingID)
	}
	return rec, nil
}

// Recompute rebuilds every eligible listing's record from the trailing
// window. Per-listing upsert failures land in the report; a failure to reset
// or aggregate aborts the run. When ctx is cancelled no new upserts are
// submitted and the partial report is returned with the context error.
func (s *Service) Recompute(ctx context.Context, windowDays int) (report *Report, err error) {
	if windowDays == 0 {
		windowDays = s.defaultWindow
	}
	if windowDays < 0 || windowDays > maxWindowDays {
		return nil, apperrors.NewValidationErrorf("windowDays must be between 1 and %d", maxWindowDays)
	}

	ctx, span := observability.StartSpan(ctx, "popularity.Recompute", map[string]string{"windowDays": fmt.Sprint(windowDays)})
	start := time.Now()
	defer func() {
		observability.EndSpan(span, err)
		metrics.PopularityDuration.Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = strings.ToLower(string(apperrors.CodeOf(err)))
		}
		metrics.PopularityRuns.WithLabelValues(outcome).Inc()
	}()

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer func() {
			if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
				s.logger.Warn("Failed to release recompute lock", map[string]interface{}{"error": relErr.Error()})
			}
		}()
	}

	now := s.now().UTC()
	report = &Report{
		RunID:      uuid.NewString(),
		WindowDays: windowDays,
		StartedAt:  now,
		Badges:     map[models.Badge]int{},
	}
	log := s.logger.WithFields(map[string]interface{}{"runId": report.RunID})

	report.Reset, err = s.store.ResetIneligible(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError("invalidate", "", err)
	}

	activity, err := s.store.LoadActivity(ctx, now.AddDate(0, 0, -windowDays))
	if err != nil {
		return nil, apperrors.NewPersistenceError("aggregate", "", err)
	}

	records := Compute(activity, now, windowDays, s.cfg)
	report.Records = records

	if err := s.persist(ctx, records, report); err != nil {
		return nil, err
	}
	report.FinishedAt = s.now().UTC()

	for _, badge := range []models.Badge{models.BadgeMostSaved, models.BadgeMostViewed, models.BadgeTrending} {
		metrics.PopularityBadges.WithLabelValues(string(badge)).Set(float64(report.Badges[badge]))
	}

	log.Info("Popularity recompute finished", map[string]interface{}{
		"windowDays": windowDays,
		"reset":      report.Reset,
		"processed":  report.Processed,
		"updated":    report.Updated,
		"failed":     report.Failed,
		"skipped":    report.Skipped,
		"durationMs": time.Since(start).Milliseconds(),
	})

	if ctxErr := ctx.Err(); ctxErr != nil {
		return report, ctxErr
	}

	if s.publisher != nil {
		if pubErr := s.publisher.PublishReport(ctx, report); pubErr != nil {
			log.Warn("Failed to publish recompute report", map[string]interface{}{"error": pubErr.Error()})
		}
	}
	return report, nil
}

// persist upserts records on a bounded pool. Each listing is its own unit.
func (s *Service) persist(ctx context.Context, records []models.PopularityRecord, report *Report) error {
	pool, err := ants.NewPool(s.concurrency)
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("create upsert pool: %w", err))
	}
	defer pool.Release()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	fail := func(id, stage string, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Failed++
		report.Failures = append(report.Failures, Failure{ListingID: id, Stage: stage, Error: err.Error()})
		metrics.PopularityUpsertFailures.Inc()
	}

	for i, rec := range records {
		if ctx.Err() != nil {
			report.Skipped = len(records) - i
			break
		}
		report.Processed++
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := s.store.UpsertRecord(ctx, rec); err != nil {
				fail(rec.ListingID, "upsert", err)
				return
			}
			mu.Lock()
			report.Updated++
			if rec.Badge != models.BadgeNone {
				report.Badges[rec.Badge]++
			}
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			fail(rec.ListingID, "submit", submitErr)
		}
	}
	wg.Wait()

	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].ListingID < report.Failures[j].ListingID })
	return nil
}
