// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"strconv"
)

// Value is a nullable number. The zero value is null.
type Value struct {
	Float float64
	Valid bool
}

// Number returns a valid Value holding f.
func Number(f float64) Value { return Value{Float: f, Valid: true} }

// Null is the absent value.
var Null = Value{}

// OrZero returns the number, or 0 when null.
func (v Value) OrZero() float64 {
	if !v.Valid {
		return 0
	}
	return v.Float
}

// MarshalJSON renders null for invalid values.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v.Float, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a number or null.
func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Null
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Number(f)
	return nil
}

// CoordSource names where a record's coordinates came from.
type CoordSource string

// Coordinate origins.
const (
	SourceNone          CoordSource = ""
	SourceCSV           CoordSource = "csv"
	SourceCache         CoordSource = "cache"
	SourceRestCountries CoordSource = "restcountries"
	SourceGeobed        CoordSource = "geobed"
	SourceFallback      CoordSource = "fallback"
)

// Synthetic reports whether the coordinates were fabricated rather than looked up.
func (s CoordSource) Synthetic() bool { return s == SourceFallback }

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Record is the canonical per-country row after normalization.
type Record struct {
	Country   string           `json:"country"`
	MajorArea string           `json:"major_area,omitempty"`
	Region    string           `json:"region"`
	Lat       Value            `json:"lat"`
	Lon       Value            `json:"lon"`
	Values    map[string]Value `json:"values"`
	Source    CoordSource      `json:"source,omitempty"`
	// Line is the 1-based CSV line the record came from.
	Line int `json:"line,omitempty"`
}

// HasCoords reports whether both coordinates are set.
func (r *Record) HasCoords() bool { return r.Lat.Valid && r.Lon.Valid }

// NeedsResolution reports whether the record should go through the resolver.
func (r *Record) NeedsResolution() bool { return r.Country != "" && !r.HasCoords() }

// Value returns the measurement for year, or null.
func (r *Record) Value(year string) Value {
	if r.Values == nil {
		return Null
	}
	return r.Values[year]
}

// Key returns the case-insensitive identity of the record's country.
func (r *Record) Key() string { return NormalizeName(r.Country) }

// SetCoordinate assigns both coordinates and their origin.
func (r *Record) SetCoordinate(c Coordinate, src CoordSource) {
	r.Lat = Number(c.Lat)
	r.Lon = Number(c.Lon)
	r.Source = src
}

// Coordinate returns the record's coordinates; ok is false when any is missing.
func (r *Record) Coordinate() (Coordinate, bool) {
	if !r.HasCoords() {
		return Coordinate{}, false
	}
	return Coordinate{Lat: r.Lat.Float, Lon: r.Lon.Float}, true
}

// Clone returns a deep copy so callers can mutate it freely.
func (r *Record) Clone() Record {
	out := *r
	if r.Values != nil {
		out.Values = make(map[string]Value, len(r.Values))
		for k, v := range r.Values {
			out.Values[k] = v
		}
	}
	return out
}

// ResolveJob asks the resolution pool to fill in coordinates for Records[Index].
type ResolveJob struct {
	Index   int
	Country string
}
