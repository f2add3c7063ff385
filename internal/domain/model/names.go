package model

import (
	"strings"
	"unicode"
)

// AllRegions is the region filter value that matches every point.
const AllRegions = "All"

// UnknownRegion labels records without a region in aggregates.
const UnknownRegion = "Unknown"

// NormalizeName is the identity form of a country name: lowercase ASCII
// letters and digits only, so "U.S.A." and "usa" match.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CacheKey is the coordinate cache key for a country name: lowercased and trimmed.
func CacheKey(s string) string {
	return strings.ToLower(strings.TrimFunc(s, unicode.IsSpace))
}
