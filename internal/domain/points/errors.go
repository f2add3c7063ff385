package points

import "errors"

var (
	// ErrCountryNotFound is returned when a search matches no record.
	ErrCountryNotFound = errors.New("country not found")
	// ErrEmptyQuery is returned for a blank search.
	ErrEmptyQuery = errors.New("empty search query")
)
