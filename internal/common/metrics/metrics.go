package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	MatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_match_runs_total",
			Help: "Matching runs by outcome",
		},
		[]string{"scope_kind", "outcome"},
	)

	MatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_match_duration_seconds",
			Help:    "Duration of a subject matching run",
			Buckets: prometheus.DefBuckets,
		},
	)

	MatchResultsDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_match_results_degraded_total",
			Help: "Match results computed with a missing signal",
		},
		[]string{"reason"},
	)

	ProfileStages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_profile_stage_total",
			Help: "Profile pipeline stage outcomes",
		},
		[]string{"stage", "status"},
	)

	PopularityRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_popularity_runs_total",
			Help: "Popularity recompute runs by outcome",
		},
		[]string{"outcome"},
	)

	PopularityBadges = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_popularity_badges",
			Help: "Badges held after the last recompute",
		},
		[]string{"badge"},
	)

	PopularityUpsertFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_popularity_upsert_failures_total",
			Help: "Per-listing popularity upserts that failed",
		},
	)

	PopularityDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_popularity_duration_seconds",
			Help:    "Duration of a popularity recompute",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
)
