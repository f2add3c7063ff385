package export

import (
	"fmt"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/okian/speedglobe/internal/domain/style"
	"github.com/okian/speedglobe/internal/domain/types"
)

const (
	defaultWidth  = 1024
	defaultHeight = 512
	barWidth      = 40
	barSpacing    = 16
	unitName      = "Mbps"
)

// ChartOption configures a chart snapshot.
type ChartOption func(*chartConfig)

type chartConfig struct {
	width  int
	height int
	styler *style.Styler
}

// WithSize sets the image size in pixels.
func WithSize(width, height int) ChartOption {
	return func(c *chartConfig) {
		if width > 0 && height > 0 {
			c.width, c.height = width, height
		}
	}
}

// WithStyler sets the colour ramp used for bars.
func WithStyler(s *style.Styler) ChartOption {
	return func(c *chartConfig) {
		if s != nil {
			c.styler = s
		}
	}
}

func newChartConfig(opts []ChartOption) chartConfig {
	c := chartConfig{width: defaultWidth, height: defaultHeight, styler: style.New()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// TrendPNG draws one country's value per year as a line chart.
func TrendPNG(w io.Writer, t types.Trend, opts ...ChartOption) error {
	if len(t.Years) < 2 || len(t.Years) != len(t.Values) {
		return ErrNoData
	}
	cfg := newChartConfig(opts)

	xs := make([]float64, len(t.Years))
	ticks := make([]chart.Tick, len(t.Years))
	for i, y := range t.Years {
		xs[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: y}
	}

	ch := chart.Chart{
		Title:      t.Country,
		Width:      cfg.width,
		Height:     cfg.height,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "year", Ticks: ticks},
		YAxis:      chart.YAxis{Name: unitName, Range: valueRange(t.Values)},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    t.Country,
				XValues: xs,
				YValues: t.Values,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 2,
					DotColor:    chart.ColorBlue,
					DotWidth:    3,
				},
			},
		},
	}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render trend chart: %w", err)
	}
	return nil
}

// PiePNG draws the regional shares. Regions with nothing to show are left out.
func PiePNG(w io.Writer, title string, shares []types.RegionShare, opts ...ChartOption) error {
	cfg := newChartConfig(opts)

	values := make([]chart.Value, 0, len(shares))
	for i, s := range shares {
		if s.Value <= 0 || math.IsNaN(s.Value) {
			continue
		}
		values = append(values, chart.Value{
			Value: s.Value,
			Label: s.Region,
			Style: chart.Style{FillColor: hslColor(style.RegionHSL(i))},
		})
	}
	if len(values) == 0 {
		return ErrNoData
	}

	pie := chart.PieChart{
		Title:  title,
		Width:  cfg.height,
		Height: cfg.height,
		Values: values,
	}
	if err := pie.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render region chart: %w", err)
	}
	return nil
}

// BarPNG draws the top-N race, each bar coloured like its globe point.
func BarPNG(w io.Writer, title string, entries []types.Entry, opts ...ChartOption) error {
	if len(entries) == 0 {
		return ErrNoData
	}
	cfg := newChartConfig(opts)

	bars := make([]chart.Value, len(entries))
	ys := make([]float64, len(entries))
	for i, e := range entries {
		ys[i] = e.Value
		bars[i] = chart.Value{
			Value: e.Value,
			Label: e.Country,
			Style: chart.Style{
				FillColor:   hslColor(cfg.styler.PointHSL(e.Value)),
				StrokeColor: chart.ColorTransparent,
			},
		}
	}

	width := max(cfg.width, 120+len(entries)*(barWidth+barSpacing))
	bc := chart.BarChart{
		Title:      title,
		Width:      width,
		Height:     cfg.height,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		YAxis:      chart.YAxis{Name: unitName, Range: valueRange(ys)},
		Bars:       bars,
	}
	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render top chart: %w", err)
	}
	return nil
}

// valueRange spans zero to a little above the largest value, so an
// all-zero series still has a drawable axis.
func valueRange(vs []float64) *chart.ContinuousRange {
	hi := 0.0
	for _, v := range vs {
		if !math.IsNaN(v) && v > hi {
			hi = v
		}
	}
	if hi == 0 {
		hi = 1
	}
	return &chart.ContinuousRange{Min: 0, Max: hi * 1.1}
}

// hslColor converts hue degrees and saturation and lightness fractions.
func hslColor(h, s, l float64) drawing.Color {
	c := (1 - math.Abs(2*l-1)) * s
	hp := math.Mod(h, 360) / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	m := l - c/2
	return drawing.Color{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: 255,
	}
}
