// Package normalize maps heterogeneous CSV rows onto canonical records.
//
// Header names are matched against a declared alias table; the resulting
// Schema lists what was mapped and what was not, so callers can report it.
package normalize

import (
	"sort"
	"strings"
)

// Field is a canonical record field.
type Field string

// Canonical fields. Year columns are mapped to their year key instead.
const (
	FieldCountry   Field = "country"
	FieldMajorArea Field = "major_area"
	FieldRegion    Field = "region"
	FieldLat       Field = "lat"
	FieldLon       Field = "lon"
)

// DefaultAliases is the accepted header table, keyed by canonical field.
// Aliases are compared after HeaderKey normalization and tried in order.
var DefaultAliases = map[Field][]string{
	FieldCountry:   {"country", "name", "countryname", "country_name"},
	FieldMajorArea: {"major_area", "majorarea"},
	FieldRegion:    {"region"},
	FieldLat:       {"lat", "latitude"},
	FieldLon:       {"lon", "lng", "longitude"},
}

// HeaderKey normalizes a raw header for alias lookup: trimmed, lowercased,
// runs of spaces, hyphens and underscores collapsed into one underscore.
func HeaderKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	var b strings.Builder
	sep := false
	for _, r := range h {
		if r == ' ' || r == '-' || r == '_' || r == '\t' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

// Schema is the validated mapping of one CSV header row.
type Schema struct {
	// Headers are the raw header cells in file order.
	Headers []string `json:"headers"`
	// Fields maps each canonical field to its candidate columns in alias order.
	Fields map[Field][]int `json:"-"`
	// YearColumns maps a year key to the first column whose header contains it.
	YearColumns map[string]int `json:"-"`
	// Mapped maps raw header to the field or year it feeds.
	Mapped map[string]string `json:"mapped"`
	// Unmapped lists headers no alias or year matched.
	Unmapped []string `json:"unmapped"`
	// MissingYears lists configured years without a column.
	MissingYears []string `json:"missing_years"`
}

// HasCountry reports whether any country alias was found.
func (s Schema) HasCountry() bool { return len(s.Fields[FieldCountry]) > 0 }

// OK reports whether the header row can produce meaningful records.
func (s Schema) OK() bool { return s.HasCountry() }

// BuildSchema matches headers against aliases and years.
func BuildSchema(headers []string, years []string, aliases map[Field][]string) Schema {
	s := Schema{
		Headers:     append([]string(nil), headers...),
		Fields:      make(map[Field][]int),
		YearColumns: make(map[string]int),
		Mapped:      make(map[string]string),
	}

	keys := make([]string, len(headers))
	for i, h := range headers {
		keys[i] = HeaderKey(h)
	}

	used := make([]bool, len(headers))
	for field, names := range aliases {
		for _, alias := range names {
			for i, k := range keys {
				if k == alias && !used[i] {
					s.Fields[field] = append(s.Fields[field], i)
					s.Mapped[headers[i]] = string(field)
					used[i] = true
				}
			}
		}
	}

	for _, y := range years {
		found := false
		for i, k := range keys {
			if used[i] || !containsYear(k, y) {
				continue
			}
			s.YearColumns[y] = i
			s.Mapped[headers[i]] = y
			used[i] = true
			found = true
			break
		}
		if !found {
			s.MissingYears = append(s.MissingYears, y)
		}
	}

	for i, h := range headers {
		if !used[i] {
			s.Unmapped = append(s.Unmapped, h)
		}
	}
	sort.Strings(s.Unmapped)
	return s
}

// containsYear reports whether y occurs in k without adjacent digits,
// so "2024" matches "year_2024" and "2024_mbps" but not "20245".
func containsYear(k, y string) bool {
	if y == "" {
		return false
	}
	for off := 0; off < len(k); {
		i := strings.Index(k[off:], y)
		if i < 0 {
			return false
		}
		start := off + i
		end := start + len(y)
		if (start == 0 || !isDigit(k[start-1])) && (end == len(k) || !isDigit(k[end])) {
			return true
		}
		off = start + 1
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
