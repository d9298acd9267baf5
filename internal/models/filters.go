// internal/models/filters.go
package models

import (
	"sort"
	"strings"

	apperrors "marketplace-engine/internal/common/errors"
)

type ListingKind string

const (
	KindSale ListingKind = "SALE"
	KindRent ListingKind = "RENT"
)

type PropertyType string

const (
	PropertyApartment  PropertyType = "APARTMENT"
	PropertyHouse      PropertyType = "HOUSE"
	PropertyStudio     PropertyType = "STUDIO"
	PropertyTownhouse  PropertyType = "TOWNHOUSE"
	PropertyLand       PropertyType = "LAND"
	PropertyCommercial PropertyType = "COMMERCIAL"
	PropertyOffice     PropertyType = "OFFICE"
)

type Amenity string

const (
	AmenityBalcony     Amenity = "BALCONY"
	AmenityGarden      Amenity = "GARDEN"
	AmenityElevator    Amenity = "ELEVATOR"
	AmenityPool        Amenity = "POOL"
	AmenityGym         Amenity = "GYM"
	AmenityFurnished   Amenity = "FURNISHED"
	AmenityPetFriendly Amenity = "PET_FRIENDLY"
	AmenityTerrace     Amenity = "TERRACE"
	AmenityCellar      Amenity = "CELLAR"
	AmenityAirCon      Amenity = "AIR_CONDITIONING"
)

var (
	validKinds = map[ListingKind]bool{KindSale: true, KindRent: true}

	validPropertyTypes = map[PropertyType]bool{
		PropertyApartment: true, PropertyHouse: true, PropertyStudio: true, PropertyTownhouse: true,
		PropertyLand: true, PropertyCommercial: true, PropertyOffice: true,
	}

	validAmenities = map[Amenity]bool{
		AmenityBalcony: true, AmenityGarden: true, AmenityElevator: true, AmenityPool: true,
		AmenityGym: true, AmenityFurnished: true, AmenityPetFriendly: true, AmenityTerrace: true,
		AmenityCellar: true, AmenityAirCon: true,
	}
)

// Range is a closed numeric interval with optional bounds.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Contains reports whether v lies within the bounds that are set.
func (r Range) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

func (r *Range) isEmpty() bool {
	return r == nil || (r.Min == nil && r.Max == nil)
}

// StructuredFilters is the closed set of constraints a buyer can express.
// A nil field means the buyer did not ask for it.
type StructuredFilters struct {
	Kind         *ListingKind  `json:"kind,omitempty"`
	PropertyType *PropertyType `json:"propertyType,omitempty"`
	Budget       *Range        `json:"budget,omitempty"`
	Size         *Range        `json:"size,omitempty"`
	MinBedrooms  *int          `json:"minBedrooms,omitempty"`
	MinBathrooms *int          `json:"minBathrooms,omitempty"`
	MinParking   *int          `json:"minParking,omitempty"`
	Locations    []string      `json:"locations,omitempty"`
	Amenities    []Amenity     `json:"amenities,omitempty"`
}

// Normalize canonicalizes casing, drops empty ranges and dedupes the set fields.
func (f *StructuredFilters) Normalize() {
	if f.Kind != nil {
		k := ListingKind(strings.ToUpper(strings.TrimSpace(string(*f.Kind))))
		f.Kind = &k
		if k == "" {
			f.Kind = nil
		}
	}
	if f.PropertyType != nil {
		t := PropertyType(strings.ToUpper(strings.TrimSpace(string(*f.PropertyType))))
		f.PropertyType = &t
		if t == "" {
			f.PropertyType = nil
		}
	}
	if f.Budget.isEmpty() {
		f.Budget = nil
	}
	if f.Size.isEmpty() {
		f.Size = nil
	}

	seenLoc := make(map[string]bool, len(f.Locations))
	locations := make([]string, 0, len(f.Locations))
	for _, loc := range f.Locations {
		n := NormalizeLocation(loc)
		if n == "" || seenLoc[n] {
			continue
		}
		seenLoc[n] = true
		locations = append(locations, n)
	}
	sort.Strings(locations)
	f.Locations = nilIfEmpty(locations)

	seenAm := make(map[Amenity]bool, len(f.Amenities))
	amenities := make([]Amenity, 0, len(f.Amenities))
	for _, a := range f.Amenities {
		n := Amenity(strings.ToUpper(strings.TrimSpace(string(a))))
		if n == "" || seenAm[n] {
			continue
		}
		seenAm[n] = true
		amenities = append(amenities, n)
	}
	sort.Slice(amenities, func(i, j int) bool { return amenities[i] < amenities[j] })
	if len(amenities) == 0 {
		amenities = nil
	}
	f.Amenities = amenities
}

// Validate rejects values outside the closed vocabularies and inverted ranges.
func (f StructuredFilters) Validate() error {
	if f.Kind != nil && !validKinds[*f.Kind] {
		return apperrors.NewValidationErrorf("unknown kind %q", *f.Kind)
	}
	if f.PropertyType != nil && !validPropertyTypes[*f.PropertyType] {
		return apperrors.NewValidationErrorf("unknown propertyType %q", *f.PropertyType)
	}
	if err := validateRange("budget", f.Budget); err != nil {
		return err
	}
	if err := validateRange("size", f.Size); err != nil {
		return err
	}
	minimums := []struct {
		name string
		v    *int
	}{{"minBedrooms", f.MinBedrooms}, {"minBathrooms", f.MinBathrooms}, {"minParking", f.MinParking}}
	for _, m := range minimums {
		if m.v != nil && *m.v < 0 {
			return apperrors.NewValidationErrorf("%s must not be negative", m.name)
		}
	}
	for _, a := range f.Amenities {
		if !validAmenities[a] {
			return apperrors.NewValidationErrorf("unknown amenity %q", a)
		}
	}
	return nil
}

func validateRange(name string, r *Range) error {
	if r == nil {
		return nil
	}
	if r.Min != nil && *r.Min < 0 {
		return apperrors.NewValidationErrorf("%s.min must not be negative", name)
	}
	if r.Max != nil && *r.Max < 0 {
		return apperrors.NewValidationErrorf("%s.max must not be negative", name)
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return apperrors.NewValidationErrorf("%s.min %.2f exceeds %s.max %.2f", name, *r.Min, name, *r.Max)
	}
	return nil
}

// IsEmpty reports whether no constraint is set.
func (f StructuredFilters) IsEmpty() bool {
	return f.Kind == nil && f.PropertyType == nil && f.Budget == nil && f.Size == nil &&
		f.MinBedrooms == nil && f.MinBathrooms == nil && f.MinParking == nil &&
		len(f.Locations) == 0 && len(f.Amenities) == 0
}

// Overlay returns f with every field set in override replacing the one in f.
func (f StructuredFilters) Overlay(override StructuredFilters) StructuredFilters {
	out := f
	if override.Kind != nil {
		out.Kind = override.Kind
	}
	if override.PropertyType != nil {
		out.PropertyType = override.PropertyType
	}
	if override.Budget != nil {
		out.Budget = override.Budget
	}
	if override.Size != nil {
		out.Size = override.Size
	}
	if override.MinBedrooms != nil {
		out.MinBedrooms = override.MinBedrooms
	}
	if override.MinBathrooms != nil {
		out.MinBathrooms = override.MinBathrooms
	}
	if override.MinParking != nil {
		out.MinParking = override.MinParking
	}
	if len(override.Locations) > 0 {
		out.Locations = override.Locations
	}
	if len(override.Amenities) > 0 {
		out.Amenities = override.Amenities
	}
	return out
}

// NormalizeLocation lowercases and trims a location for comparison.
func NormalizeLocation(loc string) string {
	return strings.ToLower(strings.Join(strings.Fields(loc), " "))
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
