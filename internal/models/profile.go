// internal/models/profile.go
package models

import "time"

type Provenance string

const (
	ProvenanceExtracted Provenance = "EXTRACTED"
	ProvenanceFallback  Provenance = "FALLBACK"
)

const ScopeGlobal = "global"

// BuyerProfile is the intent of one inquiry subject. It is always replaced
// as a whole.
type BuyerProfile struct {
	SubjectID  string            `json:"subjectId"`
	TenantID   string            `json:"tenantId,omitempty"`
	Filters    StructuredFilters `json:"filters"`
	Query      string            `json:"query"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Provenance Provenance        `json:"provenance"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// ScopeFor returns the snapshot scope tag for a tenant id.
func ScopeFor(tenantID string) string {
	if tenantID == "" {
		return ScopeGlobal
	}
	return "tenant:" + tenantID
}
