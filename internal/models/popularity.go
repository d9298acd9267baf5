// internal/models/popularity.go
package models

import "time"

type Badge string

const (
	BadgeNone       Badge = "NONE"
	BadgeTrending   Badge = "TRENDING"
	BadgeMostSaved  Badge = "MOST_SAVED"
	BadgeMostViewed Badge = "MOST_VIEWED"
)

type EngagementKind string

const (
	EngagementSave EngagementKind = "SAVE"
	EngagementView EngagementKind = "VIEW"
)

// ListingActivity is an eligible listing with its windowed engagement counts.
type ListingActivity struct {
	ListingID    string
	Kind         string
	PropertyType string
	Location     string
	CreatedAt    time.Time
	Saves        int
	Views        int
}

type PopularityRecord struct {
	ListingID  string  `json:"listingId"`
	Saves7d    int     `json:"saves7d"`
	Views7d    int     `json:"views7d"`
	Score      float64 `json:"score"`
	SegmentKey string  `json:"segmentKey"`
	Badge      Badge   `json:"badge"`
}
