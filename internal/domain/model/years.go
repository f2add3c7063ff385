package model

import "slices"

// Years is the ordered, fixed set of year keys a dataset carries.
type Years []string

// Contains reports whether y is one of the years.
func (ys Years) Contains(y string) bool { return slices.Contains(ys, y) }

// Index returns the position of y or -1.
func (ys Years) Index(y string) int { return slices.Index(ys, y) }

// Next returns the year after y, wrapping to the first. Unknown years start over.
func (ys Years) Next(y string) string {
	if len(ys) == 0 {
		return ""
	}
	i := ys.Index(y)
	return ys[(i+1)%len(ys)]
}

// Last returns the final year or "".
func (ys Years) Last() string {
	if len(ys) == 0 {
		return ""
	}
	return ys[len(ys)-1]
}
