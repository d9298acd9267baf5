// internal/matching/constraints.go
package matching

import (
	"fmt"
	"strings"

	"marketplace-engine/internal/models"
)

// Constraint weights inside the structured score.
const (
	weightBudget    = 3.0
	weightLocation  = 2.0
	weightKind      = 2.0
	weightType      = 2.0
	weightBedrooms  = 1.5
	weightSize      = 1.0
	weightBathrooms = 1.0
	weightParking   = 0.5
	weightAmenity   = 0.5
)

type outcome int

const (
	satisfied outcome = iota
	violated
	undisclosed
)

// evaluation is the verdict on one profile constraint for one candidate.
type evaluation struct {
	reason  models.Reason
	weight  float64
	outcome outcome
}

func pass(code, label string, weight float64) evaluation {
	return evaluation{reason: models.Reason{Code: code, Label: label, Tone: models.TonePositive, Weight: weight}, weight: weight, outcome: satisfied}
}

func fail(code, label string, weight float64) evaluation {
	return evaluation{reason: models.Reason{Code: code, Label: label, Tone: models.ToneNegative, Weight: weight}, weight: weight, outcome: violated}
}

func unknown(code, label string, weight float64) evaluation {
	return evaluation{reason: models.Reason{Code: code, Label: label, Tone: models.ToneNeutral, Weight: weight}, weight: weight, outcome: undisclosed}
}

// evaluateConstraints checks every constraint the profile sets. Constraints
// the profile leaves unset produce nothing.
func evaluateConstraints(f models.StructuredFilters, c models.Candidate) []evaluation {
	var evals []evaluation

	if f.Budget != nil {
		switch {
		case c.Price == nil:
			evals = append(evals, unknown("price_undisclosed", "Price not disclosed", weightBudget))
		case f.Budget.Max != nil && *c.Price > *f.Budget.Max:
			evals = append(evals, fail("over_budget", "Price above budget", weightBudget))
		case f.Budget.Min != nil && *c.Price < *f.Budget.Min:
			evals = append(evals, fail("below_budget_range", "Price below budget range", weightBudget))
		default:
			evals = append(evals, pass("within_budget", "Price within budget", weightBudget))
		}
	}

	if len(f.Locations) > 0 {
		loc := models.NormalizeLocation(c.Location)
		switch {
		case loc == "":
			evals = append(evals, unknown("location_undisclosed", "Location not disclosed", weightLocation))
		case containsString(f.Locations, loc):
			evals = append(evals, pass("location_match", "Location match", weightLocation))
		default:
			evals = append(evals, fail("location_mismatch", "Outside desired locations", weightLocation))
		}
	}

	if f.Kind != nil {
		switch {
		case c.Kind == "":
			evals = append(evals, unknown("kind_undisclosed", "Sale or rent not stated", weightKind))
		case strings.EqualFold(string(c.Kind), string(*f.Kind)):
			evals = append(evals, pass("kind_match", kindLabel(*f.Kind), weightKind))
		default:
			evals = append(evals, fail("kind_mismatch", kindLabel(c.Kind), weightKind))
		}
	}

	if f.PropertyType != nil {
		switch {
		case c.PropertyType == "":
			evals = append(evals, unknown("type_undisclosed", "Property type not stated", weightType))
		case strings.EqualFold(string(c.PropertyType), string(*f.PropertyType)):
			evals = append(evals, pass("type_match", "Property type match", weightType))
		default:
			evals = append(evals, fail("type_mismatch", "Different property type", weightType))
		}
	}

	if f.MinBedrooms != nil {
		evals = append(evals, minimum(c.Bedrooms, *f.MinBedrooms, "bedrooms", "Bedrooms match", "Fewer bedrooms than wanted", "Bedrooms not disclosed", weightBedrooms))
	}

	if f.Size != nil {
		switch {
		case c.Size == nil:
			evals = append(evals, unknown("size_undisclosed", "Size not disclosed", weightSize))
		case f.Size.Min != nil && *c.Size < *f.Size.Min:
			evals = append(evals, fail("below_minimum_size", "Below minimum size", weightSize))
		case f.Size.Max != nil && *c.Size > *f.Size.Max:
			evals = append(evals, fail("above_maximum_size", "Larger than wanted", weightSize))
		default:
			evals = append(evals, pass("size_match", "Size within range", weightSize))
		}
	}

	if f.MinBathrooms != nil {
		evals = append(evals, minimum(c.Bathrooms, *f.MinBathrooms, "bathrooms", "Bathrooms match", "Fewer bathrooms than wanted", "Bathrooms not disclosed", weightBathrooms))
	}

	if f.MinParking != nil {
		evals = append(evals, minimum(c.Parking, *f.MinParking, "parking", "Parking available", "Not enough parking", "Parking not disclosed", weightParking))
	}

	for _, a := range f.Amenities {
		name := amenityLabel(a)
		has, known := c.HasAmenity(a)
		switch {
		case !known:
			evals = append(evals, unknown("amenities_undisclosed", "Amenities not disclosed", weightAmenity))
		case has:
			evals = append(evals, pass("amenity_"+strings.ToLower(string(a)), "Has "+name, weightAmenity))
		default:
			evals = append(evals, fail("amenity_"+strings.ToLower(string(a))+"_missing", "No "+name, weightAmenity))
		}
	}

	return evals
}

func minimum(got *int, want int, code, passLabel, failLabel, unknownLabel string, weight float64) evaluation {
	switch {
	case got == nil:
		return unknown(code+"_undisclosed", unknownLabel, weight)
	case *got >= want:
		return pass(code+"_match", passLabel, weight)
	default:
		return fail(code+"_short", failLabel, weight)
	}
}

// structuredScore is the weighted share of decidable constraints that hold.
// applicable is false when no constraint could be decided.
func structuredScore(evals []evaluation) (score float64, applicable bool) {
	var got, total float64
	for _, e := range evals {
		if e.outcome == undisclosed {
			continue
		}
		total += e.weight
		if e.outcome == satisfied {
			got += e.weight
		}
	}
	if total == 0 {
		return 0, false
	}
	return got / total, true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func kindLabel(k models.ListingKind) string {
	switch k {
	case models.KindRent:
		return "For rent"
	case models.KindSale:
		return "For sale"
	default:
		return fmt.Sprintf("Listed as %s", strings.ToLower(string(k)))
	}
}

func amenityLabel(a models.Amenity) string {
	return strings.ReplaceAll(strings.ToLower(string(a)), "_", " ")
}
