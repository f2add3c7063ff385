// Package viewstate owns the process-wide view selection: year, region,
// selected country, play mode and bar race size.
//
// All changes go through Controller.Update. Every applied change is passed
// to the subscribers in registration order before Update returns.
package viewstate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/points"
)

// State is the current view selection.
type State struct {
	Year     string `json:"year"`
	Region   string `json:"region"`
	Selected string `json:"selected"`
	Playing  bool   `json:"playing"`
	TopN     int    `json:"top_n"`
}

// Field names a State field in a Change.
type Field string

// State fields.
const (
	FieldYear     Field = "year"
	FieldRegion   Field = "region"
	FieldSelected Field = "selected"
	FieldPlaying  Field = "playing"
	FieldTopN     Field = "top_n"
)

// Change describes one applied mutation.
type Change struct {
	Before State   `json:"before"`
	After  State   `json:"after"`
	Fields []Field `json:"fields"`
}

// Has reports whether f changed.
func (c Change) Has(f Field) bool { return slices.Contains(c.Fields, f) }

// Empty reports whether nothing changed.
func (c Change) Empty() bool { return len(c.Fields) == 0 }

// Rebuild reports whether the change invalidates the built point set.
func (c Change) Rebuild() bool { return c.Has(FieldYear) || c.Has(FieldRegion) }

func diff(before, after State) []Field {
	var fs []Field
	if before.Year != after.Year {
		fs = append(fs, FieldYear)
	}
	if before.Region != after.Region {
		fs = append(fs, FieldRegion)
	}
	if before.Selected != after.Selected {
		fs = append(fs, FieldSelected)
	}
	if before.Playing != after.Playing {
		fs = append(fs, FieldPlaying)
	}
	if before.TopN != after.TopN {
		fs = append(fs, FieldTopN)
	}
	return fs
}

// Kind names a mutation.
type Kind string

// Mutation kinds.
const (
	KindSetYear        Kind = "set_year"
	KindSetRegion      Kind = "set_region"
	KindSelect         Kind = "select"
	KindClearSelection Kind = "clear_selection"
	KindSetTopN        Kind = "set_top_n"
	KindPlay           Kind = "play"
	KindPause          Kind = "pause"
	KindToggle         Kind = "toggle"
	KindAdvance        Kind = "advance"

	// kindTick is the play timer's advance; it is dropped once paused.
	kindTick Kind = "tick"
)

// Mutation is a requested state change. It doubles as the JSON body of
// state change requests.
type Mutation struct {
	Kind    Kind   `json:"kind"`
	Year    string `json:"year,omitempty"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
	TopN    int    `json:"top_n,omitempty"`
}

// SetYear selects year.
func SetYear(year string) Mutation { return Mutation{Kind: KindSetYear, Year: year} }

// SetRegion selects a region filter, or model.AllRegions.
func SetRegion(region string) Mutation { return Mutation{Kind: KindSetRegion, Region: region} }

// Select selects a country by name or identity.
func Select(country string) Mutation { return Mutation{Kind: KindSelect, Country: country} }

// ClearSelection drops the selected country.
func ClearSelection() Mutation { return Mutation{Kind: KindClearSelection} }

// SetTopN sets the bar race size; it is clamped to the allowed range.
func SetTopN(n int) Mutation { return Mutation{Kind: KindSetTopN, TopN: n} }

// Play starts the year animation.
func Play() Mutation { return Mutation{Kind: KindPlay} }

// Pause stops the year animation.
func Pause() Mutation { return Mutation{Kind: KindPause} }

// Toggle flips play mode.
func Toggle() Mutation { return Mutation{Kind: KindToggle} }

// Advance moves to the next year, wrapping after the last.
func Advance() Mutation { return Mutation{Kind: KindAdvance} }

// Catalog answers which regions and countries the loaded dataset has.
type Catalog interface {
	HasRegion(region string) bool
	HasCountry(key string) bool
}

// apply returns the state after m. It does not touch the controller.
func apply(s State, m Mutation, years model.Years, cat Catalog) (State, error) {
	switch m.Kind {
	case KindSetYear:
		y := strings.TrimSpace(m.Year)
		if !years.Contains(y) {
			return s, fmt.Errorf("%w: %q", ErrUnknownYear, m.Year)
		}
		s.Year = y
	case KindSetRegion:
		r := strings.TrimSpace(m.Region)
		if r == "" {
			r = model.AllRegions
		}
		if r != model.AllRegions && cat != nil && !cat.HasRegion(r) {
			return s, fmt.Errorf("%w: %q", ErrUnknownRegion, m.Region)
		}
		s.Region = r
	case KindSelect:
		key := model.NormalizeName(m.Country)
		if key == "" {
			return s, fmt.Errorf("%w: empty country", ErrInvalidMutation)
		}
		if cat != nil && !cat.HasCountry(key) {
			return s, fmt.Errorf("%w: %q", ErrUnknownCountry, m.Country)
		}
		s.Selected = key
	case KindClearSelection:
		s.Selected = ""
	case KindSetTopN:
		s.TopN = points.ClampTopN(m.TopN)
	case KindPlay:
		s.Playing = true
	case KindPause:
		s.Playing = false
	case KindToggle:
		s.Playing = !s.Playing
	case KindAdvance:
		s.Year = years.Next(s.Year)
	case kindTick:
		if s.Playing {
			s.Year = years.Next(s.Year)
		}
	default:
		return s, fmt.Errorf("%w: kind %q", ErrInvalidMutation, m.Kind)
	}
	return s, nil
}
