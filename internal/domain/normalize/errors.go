package normalize

import "errors"

var (
	// ErrEmptyInput is returned when the CSV has no header row.
	ErrEmptyInput = errors.New("csv input is empty")
	// ErrMalformedCSV wraps tokenizer failures.
	ErrMalformedCSV = errors.New("malformed csv")
)
