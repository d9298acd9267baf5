package models

import (
	"testing"

	apperrors "marketplace-engine/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestStructuredFilters_Normalize(t *testing.T) {
	f := StructuredFilters{
		Kind:         ptr(ListingKind(" sale ")),
		PropertyType: ptr(PropertyType("apartment")),
		Budget:       &Range{},
		Locations:    []string{" Kirchberg ", "kirchberg", "Belair  Nord", ""},
		Amenities:    []Amenity{"balcony", "BALCONY", " gym"},
	}
	f.Normalize()

	assert.Equal(t, KindSale, *f.Kind)
	assert.Equal(t, PropertyApartment, *f.PropertyType)
	assert.Nil(t, f.Budget, "empty range collapses to nil")
	assert.Equal(t, []string{"belair nord", "kirchberg"}, f.Locations)
	assert.Equal(t, []Amenity{AmenityBalcony, AmenityGym}, f.Amenities)
}

func TestStructuredFilters_Validate(t *testing.T) {
	tests := []struct {
		name    string
		filters StructuredFilters
		wantErr bool
	}{
		{name: "empty is valid", filters: StructuredFilters{}},
		{
			name:    "valid full set",
			filters: StructuredFilters{Kind: ptr(KindRent), Budget: &Range{Min: ptr(1000.0), Max: ptr(2000.0)}, MinBedrooms: ptr(2)},
		},
		{name: "unknown kind", filters: StructuredFilters{Kind: ptr(ListingKind("LEASEHOLD"))}, wantErr: true},
		{name: "unknown type", filters: StructuredFilters{PropertyType: ptr(PropertyType("CASTLE"))}, wantErr: true},
		{name: "inverted budget", filters: StructuredFilters{Budget: &Range{Min: ptr(500.0), Max: ptr(400.0)}}, wantErr: true},
		{name: "negative size", filters: StructuredFilters{Size: &Range{Min: ptr(-1.0)}}, wantErr: true},
		{name: "negative bedrooms", filters: StructuredFilters{MinBedrooms: ptr(-2)}, wantErr: true},
		{name: "unknown amenity", filters: StructuredFilters{Amenities: []Amenity{"HELIPAD"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filters.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStructuredFilters_Overlay(t *testing.T) {
	base := StructuredFilters{Kind: ptr(KindSale), Locations: []string{"kirchberg"}, MinBedrooms: ptr(1)}
	override := StructuredFilters{MinBedrooms: ptr(3), Amenities: []Amenity{AmenityPool}}

	got := base.Overlay(override)
	assert.Equal(t, KindSale, *got.Kind)
	assert.Equal(t, 3, *got.MinBedrooms)
	assert.Equal(t, []string{"kirchberg"}, got.Locations)
	assert.Equal(t, []Amenity{AmenityPool}, got.Amenities)
	assert.Equal(t, 1, *base.MinBedrooms, "overlay must not mutate the receiver")
}

func TestRangeContains(t *testing.T) {
	r := Range{Min: ptr(300000.0), Max: ptr(400000.0)}
	assert.True(t, r.Contains(350000))
	assert.False(t, r.Contains(500000))
	assert.True(t, Range{Max: ptr(10.0)}.Contains(-5))
}

func TestCandidate_EligibleAndAmenities(t *testing.T) {
	c := Candidate{Published: true, Status: StatusActive, Amenities: []Amenity{AmenityPool}}
	assert.True(t, c.Eligible())

	has, known := c.HasAmenity(AmenityPool)
	assert.True(t, has)
	assert.True(t, known)

	_, known = Candidate{}.HasAmenity(AmenityPool)
	assert.False(t, known)

	assert.False(t, Candidate{Published: false, Status: StatusActive}.Eligible())
	assert.False(t, Candidate{Published: true, Status: StatusSold}.Eligible())
}

func TestScopeFor(t *testing.T) {
	assert.Equal(t, "global", ScopeFor(""))
	assert.Equal(t, "tenant:acme", ScopeFor("acme"))
}
