// internal/models/listing.go
package models

import "time"

type ListingStatus string

const (
	StatusActive   ListingStatus = "ACTIVE"
	StatusPending  ListingStatus = "PENDING"
	StatusSold     ListingStatus = "SOLD"
	StatusArchived ListingStatus = "ARCHIVED"
)

// Candidate is the read-only listing projection the scorer works on.
// Nil attributes are undisclosed by the listing. A nil Amenities slice means
// the listing never declared amenities; an empty one means it has none.
type Candidate struct {
	ID           string        `json:"id"`
	TenantID     string        `json:"tenantId,omitempty"`
	Kind         ListingKind   `json:"kind,omitempty"`
	PropertyType PropertyType  `json:"propertyType,omitempty"`
	Price        *float64      `json:"price,omitempty"`
	Size         *float64      `json:"size,omitempty"`
	Bedrooms     *int          `json:"bedrooms,omitempty"`
	Bathrooms    *int          `json:"bathrooms,omitempty"`
	Parking      *int          `json:"parking,omitempty"`
	Location     string        `json:"location,omitempty"`
	Amenities    []Amenity     `json:"amenities,omitempty"`
	Published    bool          `json:"published"`
	Status       ListingStatus `json:"status"`
	Embedding    []float32     `json:"-"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    *time.Time    `json:"updatedAt,omitempty"`
}

// Eligible reports whether the listing may be matched or badged.
func (c Candidate) Eligible() bool {
	return c.Published && c.Status == StatusActive
}

// HasAmenity reports presence; known is false when amenities are undisclosed.
func (c Candidate) HasAmenity(a Amenity) (has bool, known bool) {
	if c.Amenities == nil {
		return false, false
	}
	for _, got := range c.Amenities {
		if got == a {
			return true, true
		}
	}
	return false, true
}
