// internal/api/handlers.go
package api

import (
	"context"
	"net/http"
	"time"

	"marketplace-engine/internal/intake"
	"marketplace-engine/internal/matching"
	"marketplace-engine/internal/models"

	"github.com/go-chi/chi/v5"
)

type matchRequest struct {
	TenantID string               `json:"tenantId,omitempty"`
	TopK     int                  `json:"topK,omitempty"`
	Profile  *models.BuyerProfile `json:"profile,omitempty"`
}

type recomputeRequest struct {
	WindowDays int `json:"windowDays,omitempty"`
}

func (s *Server) createInquiry(w http.ResponseWriter, r *http.Request) {
	var in intake.Inquiry
	if err := decodeBody(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.inquiries.Run(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) matchSubject(w http.ResponseWriter, r *http.Request) {
	var body matchRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.matcher.MatchSubject(r.Context(), matching.Request{
		SubjectID: chi.URLParam(r, "subjectID"),
		TenantID:  body.TenantID,
		TopK:      body.TopK,
		Profile:   body.Profile,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getMatches(w http.ResponseWriter, r *http.Request) {
	resp, err := s.matcher.Snapshot(r.Context(), chi.URLParam(r, "subjectID"), r.URL.Query().Get("tenantId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getPopularity(w http.ResponseWriter, r *http.Request) {
	rec, err := s.popularity.Get(r.Context(), chi.URLParam(r, "listingID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) recompute(w http.ResponseWriter, r *http.Request) {
	var body recomputeRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.popularity.Recompute(r.Context(), body.WindowDays)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	writeJSON(w, status, map[string]interface{}{"checks": results})
}
