// Package repository keeps the per-year country ranking behind the bar race.
package repository

import "context"

// Entry represents one ranked country.
type Entry struct {
	Rank    int
	Key     string
	Country string
	Region  string
	Value   float64
}

// Item is a country value to rank.
type Item struct {
	Key     string
	Country string
	Region  string
	Value   float64
}

// Store provides read/write access to the ranking state.
type Store interface {
	// Replace discards every entry and ranks items for year.
	Replace(ctx context.Context, year string, items []Item) error

	// Rank returns the current rank and value for a country.
	// Returns ErrNotFound if the country is unknown, ErrInvalidKey if key is empty.
	Rank(ctx context.Context, key string) (Entry, error)

	// TopN returns the top-N entries ordered by value desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of ranked countries.
	Count(ctx context.Context) int

	// Year returns the year the ranking was built for.
	Year() string
}
