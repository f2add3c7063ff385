package viewstate

import "errors"

var (
	ErrUnknownYear     = errors.New("unknown year")
	ErrUnknownRegion   = errors.New("unknown region")
	ErrUnknownCountry  = errors.New("unknown country")
	ErrInvalidMutation = errors.New("invalid mutation")
	ErrClosed          = errors.New("view state closed")
	ErrNoYears         = errors.New("year set is empty")
)
