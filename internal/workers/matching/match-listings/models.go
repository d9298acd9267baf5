// internal/workers/matching/match-listings/models.go
package matchlistings

import "marketplace-engine/internal/models"

type Input struct {
	SubjectID string `json:"subjectId"`
	TenantID  string `json:"tenantId,omitempty"`
	TopK      int    `json:"topK,omitempty"`
}

type Output struct {
	Scope       string               `json:"matchScope"`
	Degraded    bool                 `json:"matchDegraded"`
	ResultCount int                  `json:"matchCount"`
	TopScore    float64              `json:"topMatchScore"`
	Results     []models.MatchResult `json:"matches"`
}
