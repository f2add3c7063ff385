// Package style maps point values to renderer hints.
package style

import (
	"fmt"
	"math"
)

// Default style configuration constants.
const (
	defaultCap       = 400
	defaultHueFrom   = 240
	nullColor        = "rgba(120,120,120,0.6)"
	altitudeBase     = 0.01
	altitudeDivisor  = 500
	minRadius        = 0.2
	radiusDivisor    = 3
	regionHueStep    = 40
	regionSaturation = 80
	regionLightness  = 60
	pointSaturation  = 85
	pointLightness   = 55
)

// Style is what a renderer needs to draw one point.
type Style struct {
	Color    string  `json:"color"`
	Altitude float64 `json:"altitude"`
	Radius   float64 `json:"radius"`
}

// Option applies a configuration option to the Styler.
type Option func(*Styler)

// WithCap sets the value at which the colour ramp saturates.
func WithCap(limit float64) Option {
	return func(s *Styler) {
		if limit > 0 {
			s.cap = limit
		}
	}
}

// Styler colours points on a warm-to-cool hue ramp: low values are blue,
// values at or above the cap are red.
type Styler struct {
	cap     float64
	hueFrom float64
}

// New creates a Styler with configuration options.
func New(opts ...Option) *Styler {
	s := &Styler{cap: defaultCap, hueFrom: defaultHueFrom}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Color returns the CSS colour for v; invalid values are grey.
func (s *Styler) Color(v float64, valid bool) string {
	if !valid || math.IsNaN(v) {
		return nullColor
	}
	return fmt.Sprintf("hsl(%s,%d%%,%d%%)", trim(s.Hue(v)), pointSaturation, pointLightness)
}

// Hue returns the ramp hue in degrees for v.
func (s *Styler) Hue(v float64) float64 {
	capped := math.Max(0, math.Min(s.cap, v))
	return s.hueFrom - (capped/s.cap)*s.hueFrom
}

// PointHSL returns the point colour of v as hue degrees and saturation and
// lightness fractions, for renderers that do not take CSS.
func (s *Styler) PointHSL(v float64) (h, sat, light float64) {
	return s.Hue(v), pointSaturation / 100.0, pointLightness / 100.0
}

// Altitude grows linearly with the value.
func (s *Styler) Altitude(v float64) float64 {
	return altitudeBase + v/altitudeDivisor
}

// Radius grows with the order of magnitude of the value.
func (s *Styler) Radius(v float64) float64 {
	return math.Max(minRadius, math.Log10(1+math.Abs(v))/radiusDivisor)
}

// Of returns the full style for a present value.
func (s *Styler) Of(v float64) Style {
	return Style{Color: s.Color(v, true), Altitude: s.Altitude(v), Radius: s.Radius(v)}
}

// RegionColor is the pie slice colour for the i-th region.
func RegionColor(i int) string {
	return fmt.Sprintf("hsl(%d %d%% %d%%)", regionHue(i), regionSaturation, regionLightness)
}

// RegionHSL is RegionColor as hue degrees and saturation and lightness fractions.
func RegionHSL(i int) (h, sat, light float64) {
	return float64(regionHue(i)), regionSaturation / 100.0, regionLightness / 100.0
}

func regionHue(i int) int {
	return ((i*regionHueStep)%360 + 360) % 360
}

func trim(f float64) string {
	return fmt.Sprintf("%g", math.Round(f*100)/100)
}
