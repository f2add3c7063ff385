package resolver

import "errors"

var (
	// ErrGeocodeMiss is returned by a Geocoder that has no answer for a name.
	ErrGeocodeMiss = errors.New("geocode miss")
)
