// internal/api/middleware.go
package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	apperrors "marketplace-engine/internal/common/errors"

	"github.com/go-chi/chi/v5/middleware"
)

const internalSecretHeader = "X-Internal-Secret"

// requireInternalSecret admits only trusted callers. An unset secret locks
// the route entirely.
func (s *Server) requireInternalSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(internalSecretHeader)
		if s.internalSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.internalSecret)) != 1 {
			s.writeError(w, r, apperrors.NewUnauthorizedError("missing or invalid "+internalSecretHeader))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Info("HTTP request", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"requestId":  middleware.GetReqID(r.Context()),
			"durationMs": time.Since(start).Milliseconds(),
		})
	})
}
