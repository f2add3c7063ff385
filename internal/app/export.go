package service

import (
	"context"
	"fmt"
	"io"

	"github.com/okian/speedglobe/internal/adapters/export"
)

// ExportGeoJSON renders the current view's points as a FeatureCollection.
func (s *Service) ExportGeoJSON(ctx context.Context, q PointQuery) ([]byte, error) {
	pts, err := s.points(ctx, q)
	if err != nil {
		return nil, err
	}
	return export.GeoJSON(pts, s.styler)
}

// ExportXLSX writes every record plus the current year's points as a workbook.
func (s *Service) ExportXLSX(ctx context.Context, w io.Writer) error {
	ds, _, _, err := s.snapshot()
	if err != nil {
		return err
	}
	pts, err := s.points(ctx, PointQuery{})
	if err != nil {
		return err
	}
	return export.XLSX(w, ds.records, s.years, pts)
}

// RenderTrendPNG draws a country's yearly values. An empty country means
// the selected one.
func (s *Service) RenderTrendPNG(ctx context.Context, w io.Writer, country string) error {
	t, err := s.Trend(ctx, country)
	if err != nil {
		return err
	}
	return export.TrendPNG(w, t, export.WithStyler(s.styler))
}

// RenderRegionsPNG draws the regional pie for the current year.
func (s *Service) RenderRegionsPNG(ctx context.Context, w io.Writer) error {
	st, err := s.State()
	if err != nil {
		return err
	}
	shares, err := s.Regions(ctx, st.Year)
	if err != nil {
		return err
	}
	return export.PiePNG(w, fmt.Sprintf("Speed by region, %s", st.Year), shares)
}

// RenderTopPNG draws the current bar race.
func (s *Service) RenderTopPNG(ctx context.Context, w io.Writer) error {
	st, err := s.State()
	if err != nil {
		return err
	}
	entries, err := s.TopN(ctx, st.TopN)
	if err != nil {
		return err
	}
	return export.BarPNG(w, fmt.Sprintf("Top %d, %s", len(entries), st.Year), entries, export.WithStyler(s.styler))
}
