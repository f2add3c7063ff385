package repository

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrNotFound     = errors.New("country not ranked")
	ErrInvalidLimit = errors.New("invalid ranking limit")
	ErrInvalidKey   = errors.New("empty ranking key")
)
