package model

// WorldPoint is the renderable projection of a Record for one year.
// Points are never mutated; a year or region change replaces the whole set.
type WorldPoint struct {
	Key       string      `json:"key"`
	Country   string      `json:"country"`
	Region    string      `json:"region"`
	Lat       float64     `json:"lat"`
	Lon       float64     `json:"lon"`
	Value     float64     `json:"value"`
	Year      string      `json:"year"`
	Geohash   string      `json:"geohash"`
	Source    CoordSource `json:"source"`
	Synthetic bool        `json:"synthetic"`
}
