package cache

import "errors"

var (
	// ErrUnavailable is returned when a backend cannot be reached at open time.
	ErrUnavailable = errors.New("cache backend unavailable")
	// ErrUnknownBackend is returned for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown cache backend")
)
