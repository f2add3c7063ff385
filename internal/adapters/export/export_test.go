package export_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/xuri/excelize/v2"

	"github.com/okian/speedglobe/internal/adapters/export"
	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func samplePoints() []model.WorldPoint {
	return []model.WorldPoint{
		{Key: "alba", Country: "Alba", Region: "North", Lat: 10, Lon: 20, Value: 55.5, Year: "2024", Geohash: "s3y0zh7", Source: model.SourceCSV},
		{Key: "beta", Country: "Beta", Region: "South", Lat: -5, Lon: 30, Value: 120, Year: "2024", Source: model.SourceFallback, Synthetic: true},
	}
}

func TestGeoJSON(t *testing.T) {
	Convey("Given two world points", t, func() {
		b, err := export.GeoJSON(samplePoints(), nil)
		So(err, ShouldBeNil)

		fc, err := geojson.UnmarshalFeatureCollection(b)
		So(err, ShouldBeNil)

		Convey("Then each should become a point feature with lon/lat order", func() {
			So(fc.Features, ShouldHaveLength, 2)
			So(fc.Features[0].Geometry, ShouldResemble, orb.Point{20, 10})
			So(fc.Features[0].ID, ShouldEqual, "alba")
			So(fc.Features[0].Properties["country"], ShouldEqual, "Alba")
			So(fc.Features[0].Properties["value"], ShouldEqual, 55.5)
			So(fc.Features[0].Properties["color"], ShouldNotBeEmpty)
		})

		Convey("Then synthetic placements should be flagged", func() {
			So(fc.Features[1].Properties["synthetic"], ShouldEqual, true)
			So(fc.Features[1].Properties["source"], ShouldEqual, "fallback")
		})
	})

	Convey("Given no points", t, func() {
		b, err := export.GeoJSON(nil, nil)
		So(err, ShouldBeNil)
		So(string(b), ShouldContainSubstring, `"FeatureCollection"`)
	})
}

func TestXLSX(t *testing.T) {
	Convey("Given records and the active year's points", t, func() {
		years := model.Years{"2023", "2024"}
		records := []model.Record{
			{Country: "Alba", Region: "North", Lat: model.Number(10), Lon: model.Number(20), Source: model.SourceCSV,
				Values: map[string]model.Value{"2023": model.Number(50), "2024": model.Number(55.5)}},
			{Country: "Beta", Region: "South", Values: map[string]model.Value{"2024": model.Number(120)}},
		}

		var buf bytes.Buffer
		err := export.XLSX(&buf, records, years, samplePoints())
		So(err, ShouldBeNil)

		f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
		So(err, ShouldBeNil)
		defer func() { _ = f.Close() }()

		Convey("Then the data sheet should hold one row per record with blank nulls", func() {
			rows, err := f.GetRows(export.SheetData)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 3)
			So(rows[0], ShouldResemble, []string{"country", "major_area", "region", "lat", "lon", "source", "2023", "2024"})
			So(rows[1][0], ShouldEqual, "Alba")
			So(rows[1][7], ShouldEqual, "55.5")
			So(rows[2][3], ShouldEqual, "")
			So(rows[2][6], ShouldEqual, "")
			So(rows[2][7], ShouldEqual, "120")
		})

		Convey("Then the points sheet should list the points", func() {
			rows, err := f.GetRows(export.SheetPoints)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 3)
			So(rows[2][0], ShouldEqual, "Beta")
			So(rows[2][8], ShouldEqual, "TRUE")
		})
	})
}

func TestCharts(t *testing.T) {
	Convey("Given a trend", t, func() {
		trend := types.Trend{Country: "Alba", Years: []string{"2022", "2023", "2024"}, Values: []float64{10, 0, 55}}

		Convey("When rendered", func() {
			var buf bytes.Buffer
			err := export.TrendPNG(&buf, trend, export.WithSize(400, 300))

			Convey("Then a PNG should be written", func() {
				So(err, ShouldBeNil)
				So(bytes.HasPrefix(buf.Bytes(), pngMagic), ShouldBeTrue)
			})
		})

		Convey("When every value is zero", func() {
			var buf bytes.Buffer
			zero := types.Trend{Country: "Cora", Years: trend.Years, Values: []float64{0, 0, 0}}
			So(export.TrendPNG(&buf, zero), ShouldBeNil)
		})

		Convey("When there is a single year", func() {
			var buf bytes.Buffer
			err := export.TrendPNG(&buf, types.Trend{Years: []string{"2024"}, Values: []float64{1}})
			So(errors.Is(err, export.ErrNoData), ShouldBeTrue)
		})
	})

	Convey("Given regional shares", t, func() {
		shares := []types.RegionShare{
			{Region: "North", Value: 100},
			{Region: "Unknown", Value: 0},
			{Region: "South", Value: 40},
		}

		var buf bytes.Buffer
		So(export.PiePNG(&buf, "2024", shares), ShouldBeNil)
		So(bytes.HasPrefix(buf.Bytes(), pngMagic), ShouldBeTrue)

		Convey("When every share is empty", func() {
			var empty bytes.Buffer
			err := export.PiePNG(&empty, "2024", []types.RegionShare{{Region: "North"}})
			So(errors.Is(err, export.ErrNoData), ShouldBeTrue)
		})
	})

	Convey("Given a top-N ranking", t, func() {
		entries := []types.Entry{
			{Rank: 1, Country: "Beta", Value: 120},
			{Rank: 2, Country: "Alba", Value: 55.5},
			{Rank: 3, Country: "Cora", Value: 12},
		}

		var buf bytes.Buffer
		So(export.BarPNG(&buf, "Top 3 in 2024", entries), ShouldBeNil)
		So(bytes.HasPrefix(buf.Bytes(), pngMagic), ShouldBeTrue)

		var empty bytes.Buffer
		So(errors.Is(export.BarPNG(&empty, "none", nil), export.ErrNoData), ShouldBeTrue)
	})
}
