// Package types contains the read shapes served to renderers.
package types

import "math"

// minBarWidth keeps the shortest bar visible.
const minBarWidth = 6

// Entry represents one bar of the top-N race.
type Entry struct {
	Rank    int     `json:"rank"`
	Key     string  `json:"key"`
	Country string  `json:"country"`
	Region  string  `json:"region"`
	Value   float64 `json:"value"`
	// Width is the bar length in percent of the leader's value.
	Width int `json:"width"`
}

// RegionShare is one slice of the regional pie for a year.
type RegionShare struct {
	Region string  `json:"region"`
	Value  float64 `json:"value"`
	Color  string  `json:"color"`
}

// Trend is one country's value per year, with nulls read as zero.
type Trend struct {
	Country string    `json:"country"`
	Years   []string  `json:"years"`
	Values  []float64 `json:"values"`
}

// BarWidth returns v as a percentage of leader, never below the minimum width.
func BarWidth(v, leader float64) int {
	if leader == 0 {
		leader = 1
	}
	w := int(math.Round(v / leader * 100))
	if w < minBarWidth {
		return minBarWidth
	}
	return w
}
