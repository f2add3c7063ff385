package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrTooLarge          = errors.New("dataset exceeds upload limit")
	ErrNoCountryColumn   = errors.New("dataset has no country column")
	ErrNoSelection       = errors.New("no country selected")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrEmptyDataset      = errors.New("no dataset loaded")
)
