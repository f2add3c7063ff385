package model_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestValue(t *testing.T) {
	convey.Convey("Given nullable values", t, func() {
		convey.Convey("When marshalling", func() {
			b, err := json.Marshal(map[string]model.Value{"a": model.Number(55.5), "b": model.Null})

			convey.Convey("Then null values should render as JSON null", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(b), convey.ShouldEqual, `{"a":55.5,"b":null}`)
			})
		})

		convey.Convey("When unmarshalling", func() {
			var got map[string]model.Value
			err := json.Unmarshal([]byte(`{"a":1,"b":null}`), &got)

			convey.Convey("Then validity should follow the input", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(got["a"], convey.ShouldResemble, model.Number(1))
				convey.So(got["b"].Valid, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When reading a null as zero", func() {
			convey.So(model.Null.OrZero(), convey.ShouldEqual, 0)
			convey.So(model.Number(3).OrZero(), convey.ShouldEqual, 3)
		})
	})
}

func TestRecord(t *testing.T) {
	convey.Convey("Given a record without coordinates", t, func() {
		rec := model.Record{
			Country: "Beta",
			Region:  "East",
			Values:  map[string]model.Value{"2024": model.Number(77)},
		}

		convey.Convey("Then it should need resolution", func() {
			convey.So(rec.HasCoords(), convey.ShouldBeFalse)
			convey.So(rec.NeedsResolution(), convey.ShouldBeTrue)
			_, ok := rec.Coordinate()
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("When a coordinate is assigned", func() {
			rec.SetCoordinate(model.Coordinate{Lat: 1, Lon: 2}, model.SourceFallback)

			convey.Convey("Then it should be plottable and flagged synthetic", func() {
				c, ok := rec.Coordinate()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(c, convey.ShouldResemble, model.Coordinate{Lat: 1, Lon: 2})
				convey.So(rec.Source.Synthetic(), convey.ShouldBeTrue)
				convey.So(rec.NeedsResolution(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When cloned and the clone is changed", func() {
			clone := rec.Clone()
			clone.Values["2024"] = model.Number(1)

			convey.Convey("Then the original should be untouched", func() {
				convey.So(rec.Value("2024").Float, convey.ShouldEqual, 77)
				convey.So(rec.Value("1999").Valid, convey.ShouldBeFalse)
			})
		})
	})

	convey.Convey("Given a record without a country", t, func() {
		rec := model.Record{Region: "East"}
		convey.So(rec.NeedsResolution(), convey.ShouldBeFalse)
	})
}

func TestNames(t *testing.T) {
	convey.Convey("Given country names", t, func() {
		convey.So(model.NormalizeName("  U.S.A. "), convey.ShouldEqual, "usa")
		convey.So(model.NormalizeName("Korea (Republic of)"), convey.ShouldEqual, "korearepublicof")
		convey.So(model.CacheKey("  Korea, South "), convey.ShouldEqual, "korea, south")
	})
}

func TestYears(t *testing.T) {
	convey.Convey("Given the year set", t, func() {
		ys := model.Years{"2017", "2018", "2024"}

		convey.So(ys.Contains("2018"), convey.ShouldBeTrue)
		convey.So(ys.Contains("2019"), convey.ShouldBeFalse)
		convey.So(ys.Next("2017"), convey.ShouldEqual, "2018")
		convey.So(ys.Next("2024"), convey.ShouldEqual, "2017")
		convey.So(ys.Next("1999"), convey.ShouldEqual, "2017")
		convey.So(ys.Last(), convey.ShouldEqual, "2024")
		convey.So(model.Years{}.Next("2017"), convey.ShouldEqual, "")
	})
}
