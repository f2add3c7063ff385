// Package export renders the current dataset and view into files:
// GeoJSON point layers, XLSX workbooks and PNG chart snapshots.
package export

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/style"
)

// GeoJSON encodes points as a FeatureCollection of Point features. Each
// feature carries the point's identity, value and renderer style.
func GeoJSON(pts []model.WorldPoint, st *style.Styler) ([]byte, error) {
	if st == nil {
		st = style.New()
	}
	fc := geojson.NewFeatureCollection()
	for _, p := range pts {
		f := geojson.NewFeature(orb.Point{p.Lon, p.Lat})
		f.ID = p.Key
		s := st.Of(p.Value)
		f.Properties["country"] = p.Country
		f.Properties["region"] = p.Region
		f.Properties["year"] = p.Year
		f.Properties["value"] = p.Value
		f.Properties["geohash"] = p.Geohash
		f.Properties["source"] = string(p.Source)
		f.Properties["synthetic"] = p.Synthetic
		f.Properties["color"] = s.Color
		f.Properties["altitude"] = s.Altitude
		f.Properties["radius"] = s.Radius
		fc.Append(f)
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode geojson: %w", err)
	}
	return b, nil
}
