package scoring

import "strings"

// SegmentKey builds the case-insensitive (kind|type|location) cohort key.
// Missing parts stay as empty strings so they still group together.
func SegmentKey(kind, propertyType, location string) string {
	return strings.Join([]string{norm(kind), norm(propertyType), norm(location)}, "|")
}

func norm(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
