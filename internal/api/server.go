// internal/api/server.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"marketplace-engine/internal/common/logger"
	"marketplace-engine/internal/intake"
	"marketplace-engine/internal/matching"
	"marketplace-engine/internal/models"
	"marketplace-engine/internal/popularity"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Matcher interface {
	MatchSubject(ctx context.Context, req matching.Request) (*matching.Response, error)
	Snapshot(ctx context.Context, subjectID, tenantID string) (*matching.Response, error)
}

type InquiryRunner interface {
	Run(ctx context.Context, in intake.Inquiry) (*intake.Result, error)
}

type PopularityService interface {
	Recompute(ctx context.Context, windowDays int) (*popularity.Report, error)
	Get(ctx context.Context, listingID string) (*models.PopularityRecord, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Options struct {
	Addr           string
	InternalSecret string
	AllowedOrigins []string
	Checks         map[string]HealthCheck
}

type Server struct {
	matcher        Matcher
	inquiries      InquiryRunner
	popularity     PopularityService
	internalSecret string
	allowedOrigins []string
	checks         map[string]HealthCheck
	logger         logger.Logger
	httpServer     *http.Server
}

func NewServer(matcher Matcher, inquiries InquiryRunner, pop PopularityService, opts Options, log logger.Logger) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		matcher:        matcher,
		inquiries:      inquiries,
		popularity:     pop,
		internalSecret: opts.InternalSecret,
		allowedOrigins: opts.AllowedOrigins,
		checks:         opts.Checks,
		logger:         log.WithFields(map[string]interface{}{"component": "api"}),
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", internalSecretHeader},
	}))

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/inquiries", s.createInquiry)
		r.Post("/subjects/{subjectID}/matches", s.matchSubject)
		r.Get("/subjects/{subjectID}/matches", s.getMatches)
		r.Get("/listings/{listingID}/popularity", s.getPopularity)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(s.requireInternalSecret)
		r.Post("/popularity/recompute", s.recompute)
	})
	return r
}

// Start blocks until the server stops. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("HTTP API listening", map[string]interface{}{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
