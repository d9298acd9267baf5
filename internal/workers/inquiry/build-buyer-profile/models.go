// internal/workers/inquiry/build-buyer-profile/models.go
package buildbuyerprofile

import (
	"marketplace-engine/internal/intake"
	"marketplace-engine/internal/models"
)

type Input struct {
	SubjectID string                   `json:"subjectId"`
	TenantID  string                   `json:"tenantId,omitempty"`
	Text      string                   `json:"inquiryText"`
	Context   models.StructuredFilters `json:"context"`
	TopK      int                      `json:"topK,omitempty"`
	SkipMatch bool                     `json:"skipMatch,omitempty"`
}

type Output struct {
	ProfileProvenance models.Provenance    `json:"profileProvenance"`
	ProfileDegraded   bool                 `json:"profileDegraded"`
	HasEmbedding      bool                 `json:"hasEmbedding"`
	Stages            []intake.StageResult `json:"profileStages"`
	MatchCount        int                  `json:"matchCount"`
	TopListingIDs     []string             `json:"topListingIds"`
}
