// cmd/engine-manager/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"marketplace-engine/internal/api"
	"marketplace-engine/internal/common/aws"
	"marketplace-engine/internal/common/camunda"
	"marketplace-engine/internal/common/config"
	"marketplace-engine/internal/common/database"
	apphttp "marketplace-engine/internal/common/http"
	"marketplace-engine/internal/common/logger"
	"marketplace-engine/internal/common/observability"
	"marketplace-engine/internal/intake"
	"marketplace-engine/internal/matching"
	"marketplace-engine/internal/popularity"
	"marketplace-engine/internal/scheduler"

	bbp "marketplace-engine/internal/workers/inquiry/build-buyer-profile"
	ml "marketplace-engine/internal/workers/matching/match-listings"
	rp "marketplace-engine/internal/workers/popularity/recompute-popularity"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting engine manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	var shutdownTracing func(context.Context) error
	if cfg.Tracing.Enabled {
		shutdownTracing, err = observability.InitTracing(cfg.App.Name, cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRatio)
		if err != nil {
			zapLog.Fatal("tracing init failed", zap.Error(err))
		}
	}

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return closeOnError(pg, pg.Ping(ctx))
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return closeOnError(rdb, rdb.Ping(ctx))
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	checks := map[string]api.HealthCheck{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}

	// --- Matching ---
	matchStore := matching.NewPostgresStore(pg.DB)
	profiles := matching.NewCachedProfileStore(matchStore, rdb.Client, config.GetDuration(cfg.Matching.ProfileCacheTTL), log)

	var candidates matching.CandidateSource = matchStore
	if cfg.Matching.CandidateSource == "elasticsearch" {
		// the client holds its own transport, so it is built once and only
		// the checks are retried
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("elasticsearch client init failed", zap.Error(err))
		}
		err = retryWithBackoff(func() error {
			if err := es.Ping(ctx); err != nil {
				return err
			}
			return es.RequireIndex(ctx, cfg.Database.Elasticsearch.ListingIndex)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
		candidates = matching.NewESCandidateSource(es.Client, cfg.Database.Elasticsearch.ListingIndex)
		checks["elasticsearch"] = es.Ping
	}

	w := cfg.Matching.Weights
	scorer := matching.NewScorer(matching.ScorerConfig{
		Weights:      matching.Weights{Structured: w.Structured, Semantic: w.Semantic, Freshness: w.Freshness},
		HalfLifeDays: cfg.Matching.FreshnessHalfLifeDays,
		MaxTopK:      cfg.Matching.MaxTopK,
		MaxReasons:   cfg.Matching.MaxReasons,
		Dimension:    cfg.APIs.Embedding.Dimension,
	})
	matcher := matching.NewService(scorer, profiles, candidates, matchStore, matching.ServiceOptions{
		DefaultTopK:    cfg.Matching.DefaultTopK,
		CandidateLimit: cfg.Matching.CandidateLimit,
		Observability:  obs,
	}, log)

	// --- Intake ---
	var extractor intake.Extractor
	if cfg.APIs.GenAI.BaseURL != "" {
		extractor = intake.NewHTTPExtractor(
			apphttp.NewClient(config.GetDuration(cfg.APIs.GenAI.Timeout)),
			cfg.APIs.GenAI.BaseURL,
			cfg.APIs.GenAI.APIKey,
		)
	} else {
		zapLog.Warn("GenAI base URL not set; inquiries fall back to caller filters")
	}

	var embedder intake.Embedder
	if cfg.APIs.Embedding.BaseURL != "" {
		emb, err := intake.NewLangchainEmbedder(intake.EmbedderConfig{
			BaseURL: cfg.APIs.Embedding.BaseURL,
			Token:   cfg.APIs.Embedding.Token,
			Model:   cfg.APIs.Embedding.Model,
		}, apphttp.NewClient(config.GetDuration(cfg.APIs.Embedding.Timeout)))
		if err != nil {
			zapLog.Fatal("embedder init failed", zap.Error(err))
		}
		embedder = emb
	} else {
		zapLog.Warn("Embedding base URL not set; profiles are stored without vectors")
	}

	pipeline := intake.NewPipeline(extractor, embedder, profiles, matcher, cfg.APIs.Embedding.Dimension, log)

	// --- Popularity ---
	popOpts := popularity.ServiceOptions{
		Config: popularity.Config{
			SaveWeight:         cfg.Popularity.SaveWeight,
			ViewWeight:         cfg.Popularity.ViewWeight,
			RecencyBonusPerDay: cfg.Popularity.RecencyBonusPerDay,
			MostSavedMin:       cfg.Popularity.MostSavedMin,
			MostViewedMin:      cfg.Popularity.MostViewedMin,
			TrendingSavesFloor: cfg.Popularity.TrendingSavesFloor,
			TrendingViewsFloor: cfg.Popularity.TrendingViewsFloor,
			TrendingPercentile: cfg.Popularity.TrendingPercentile,
		},
		DefaultWindowDays: cfg.Popularity.WindowDays,
		Concurrency:       cfg.Popularity.Concurrency,
		Locker:            popularity.NewRedisLock(rdb.Client, config.GetDuration(cfg.Popularity.LockTTL)),
		Observability:     obs,
	}
	if sns := cfg.Integrations.AWS.SNS; sns.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		popOpts.Publisher = popularity.NewSNSPublisher(snsClient, sns.TopicARN)
		zapLog.Info("Popularity reports will be published to SNS", zap.String("topic", sns.TopicARN))
	}
	popService := popularity.NewService(popularity.NewPostgresStore(pg.DB), popOpts, log)

	// --- Scheduler ---
	sched := scheduler.New(log)
	err = sched.Register("popularity-recompute", cfg.Popularity.Schedule, config.GetDuration(cfg.Popularity.LockTTL), func(ctx context.Context) error {
		_, err := popService.Recompute(ctx, 0)
		return err
	})
	if err != nil {
		zapLog.Fatal("scheduler registration failed", zap.Error(err))
	}
	sched.Start()

	// --- Zeebe workers ---
	var zeebe *camunda.Client
	var workers *camunda.Registry
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
		checks["zeebe"] = zeebe.HealthCheck

		workers = camunda.NewRegistry(zeebe.GetClient(), log)

		if wcfg := config.GetWorkerConfig(cfg, bbp.TaskType); wcfg.Enabled {
			handler := bbp.NewHandler(&bbp.Config{Timeout: config.GetDuration(wcfg.Timeout)}, pipeline, log)
			workers.Register(bbp.TaskType, wcfg, handler.Handle)
		}
		if wcfg := config.GetWorkerConfig(cfg, ml.TaskType); wcfg.Enabled {
			handler := ml.NewHandler(&ml.Config{Timeout: config.GetDuration(wcfg.Timeout)}, matcher, obs, log)
			workers.Register(ml.TaskType, wcfg, handler.Handle)
		}
		if wcfg := config.GetWorkerConfig(cfg, rp.TaskType); wcfg.Enabled {
			handler := rp.NewHandler(&rp.Config{Timeout: config.GetDuration(wcfg.Timeout)}, popService, log)
			workers.Register(rp.TaskType, wcfg, handler.Handle)
		}
		zapLog.Info("Zeebe workers registered", zap.Int("count", workers.Len()))
	}

	// --- HTTP API ---
	server := api.NewServer(matcher, pipeline, popService, api.Options{
		Addr:           cfg.Server.Addr,
		InternalSecret: cfg.Server.InternalSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Checks:         checks,
	}, log)

	go func() {
		if err := server.Start(); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zapLog.Info("Shutting down engine manager...", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	sched.Stop(shutdownCtx)
	if workers != nil {
		workers.Close()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("zeebe client close failed", zap.Error(err))
		}
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("metrics shutdown failed", zap.Error(err))
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			zapLog.Error("tracing shutdown failed", zap.Error(err))
		}
	}

	zapLog.Info("Engine manager stopped")
}

// closeOnError closes c when err is set so a failed attempt does not keep its
// pool open while the next one dials.
func closeOnError(c io.Closer, err error) error {
	if err != nil {
		_ = c.Close()
	}
	return err
}

// retryWithBackoff retries operation with doubling delay between attempts.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
