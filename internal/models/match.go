// internal/models/match.go
package models

import "time"

type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneNeutral  Tone = "neutral"
)

// Reason is one explanation chip attached to a match.
type Reason struct {
	Code   string  `json:"code"`
	Label  string  `json:"label"`
	Tone   Tone    `json:"tone"`
	Weight float64 `json:"weight"`
}

const (
	DegradedProfileEmbedding   = "profile_embedding_missing"
	DegradedCandidateEmbedding = "candidate_embedding_missing"
	DegradedFallbackProfile    = "fallback_profile"
)

type MatchResult struct {
	ID              string    `json:"id"`
	SubjectID       string    `json:"subjectId"`
	CandidateID     string    `json:"candidateId"`
	Scope           string    `json:"scope"`
	Rank            int       `json:"rank"`
	OverallScore    float64   `json:"overallScore"`
	StructuredScore float64   `json:"structuredScore"`
	SemanticScore   float64   `json:"semanticScore"`
	FreshnessScore  *float64  `json:"freshnessScore,omitempty"`
	Reasons         []Reason  `json:"reasons"`
	Degraded        bool      `json:"degraded"`
	DegradedReasons []string  `json:"degradedReasons,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}
