// Package points projects normalized records into renderable world points
// for one year, and derives the aggregates the charts read.
package points

import (
	"slices"
	"strings"

	"github.com/TomiHiltunen/geohash-golang"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/style"
	"github.com/okian/speedglobe/internal/domain/types"
)

// Top-N bounds for the bar race.
const (
	DefaultTopN = 12
	MinTopN     = 3
	MaxTopN     = 50
)

const (
	geohashPrecision = 7
	earthRadiusKm    = 6371.0088
)

// Build returns a point for every record that has both coordinates and a
// value for year. Order follows the records.
func Build(records []model.Record, year string) []model.WorldPoint {
	out := make([]model.WorldPoint, 0, len(records))
	for i := range records {
		r := &records[i]
		v := r.Value(year)
		if !r.HasCoords() || !v.Valid {
			continue
		}
		out = append(out, model.WorldPoint{
			Key:       r.Key(),
			Country:   r.Country,
			Region:    r.Region,
			Lat:       r.Lat.Float,
			Lon:       r.Lon.Float,
			Value:     v.Float,
			Year:      year,
			Geohash:   geohash.EncodeWithPrecision(r.Lat.Float, r.Lon.Float, geohashPrecision),
			Source:    r.Source,
			Synthetic: r.Source.Synthetic(),
		})
	}
	return out
}

// FilterRegion keeps points whose region equals region exactly.
// AllRegions keeps everything.
func FilterRegion(pts []model.WorldPoint, region string) []model.WorldPoint {
	if region == model.AllRegions || region == "" {
		return pts
	}
	out := make([]model.WorldPoint, 0, len(pts))
	for _, p := range pts {
		if p.Region == region {
			out = append(out, p)
		}
	}
	return out
}

// Regions sums each region's values for year over all records, reading
// null as zero. Records without a region count as UnknownRegion. Regions
// appear in first-seen order.
func Regions(records []model.Record, year string) []types.RegionShare {
	idx := make(map[string]int)
	var out []types.RegionShare
	for i := range records {
		key := records[i].Region
		if key == "" {
			key = model.UnknownRegion
		}
		j, ok := idx[key]
		if !ok {
			j = len(out)
			idx[key] = j
			out = append(out, types.RegionShare{Region: key, Color: style.RegionColor(j)})
		}
		out[j].Value += records[i].Value(year).OrZero()
	}
	return out
}

// Trend lists rec's value for every year, reading null as zero.
func Trend(rec model.Record, years model.Years) types.Trend {
	t := types.Trend{
		Country: rec.Country,
		Years:   append([]string(nil), years...),
		Values:  make([]float64, len(years)),
	}
	for i, y := range years {
		t.Values[i] = rec.Value(y).OrZero()
	}
	return t
}

// Find returns the record whose identity equals key.
func Find(records []model.Record, key string) (model.Record, bool) {
	key = model.NormalizeName(key)
	if key == "" {
		return model.Record{}, false
	}
	for i := range records {
		if records[i].Key() == key {
			return records[i].Clone(), true
		}
	}
	return model.Record{}, false
}

// Search matches query against country identities: an exact match wins,
// otherwise the first record whose identity contains the query.
func Search(records []model.Record, query string) (model.Record, error) {
	q := model.NormalizeName(query)
	if q == "" {
		return model.Record{}, ErrEmptyQuery
	}
	if r, ok := Find(records, q); ok {
		return r, nil
	}
	for i := range records {
		if strings.Contains(records[i].Key(), q) {
			return records[i].Clone(), nil
		}
	}
	return model.Record{}, ErrCountryNotFound
}

// Nearest returns the named point closest to (lat, lon) on the sphere and
// its great-circle distance in kilometres. Points without a country cannot
// be selected and are skipped.
func Nearest(pts []model.WorldPoint, lat, lon float64) (model.WorldPoint, float64, bool) {
	q := s2.LatLngFromDegrees(lat, lon)
	best, found := -1, false
	var bestDist s1.Angle
	for i := range pts {
		if pts[i].Country == "" {
			continue
		}
		d := q.Distance(s2.LatLngFromDegrees(pts[i].Lat, pts[i].Lon))
		if !found || d < bestDist {
			best, bestDist, found = i, d, true
		}
	}
	if !found {
		return model.WorldPoint{}, 0, false
	}
	return pts[best], bestDist.Radians() * earthRadiusKm, true
}

// ObservedRegions lists the distinct non-empty regions, sorted.
func ObservedRegions(records []model.Record) []string {
	seen := make(map[string]struct{})
	var out []string
	for i := range records {
		r := records[i].Region
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// ClampTopN bounds the bar race size; zero or negative means the default.
func ClampTopN(n int) int {
	if n <= 0 {
		return DefaultTopN
	}
	return max(MinTopN, min(MaxTopN, n))
}
