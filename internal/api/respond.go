// internal/api/respond.go
package api

import (
	"encoding/json"
	"net/http"

	apperrors "marketplace-engine/internal/common/errors"
)

// ErrorBody is the machine-readable error envelope.
type ErrorBody struct {
	Code    apperrors.ErrorCode    `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Meta    map[string]interface{} `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := apperrors.AsStandard(err)
	status := apperrors.HTTPStatus(stdErr.Code)

	body := ErrorBody{Code: stdErr.Code, Message: stdErr.Message, Details: stdErr.Details}
	if status >= http.StatusInternalServerError {
		// raw causes stay in the logs
		body.Details = ""
		s.logger.Error("Request failed", map[string]interface{}{
			"path":  r.URL.Path,
			"code":  stdErr.Code,
			"error": err.Error(),
		})
		if stage, ok := stdErr.Metadata["stage"]; ok {
			body.Meta = map[string]interface{}{"stage": stage}
		}
	}
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.NewValidationErrorf("invalid request body: %v", err)
	}
	return nil
}
