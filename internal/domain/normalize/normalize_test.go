package normalize_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/normalize"
	"github.com/smartystreets/goconvey/convey"
)

var years = model.Years{"2017", "2018", "2019", "2020", "2021", "2022", "2023", "2024"}

func TestHeaderKey(t *testing.T) {
	convey.Convey("Given raw header cells", t, func() {
		convey.So(normalize.HeaderKey("  Country Name "), convey.ShouldEqual, "country_name")
		convey.So(normalize.HeaderKey("Major-Area"), convey.ShouldEqual, "major_area")
		convey.So(normalize.HeaderKey("LATITUDE"), convey.ShouldEqual, "latitude")
		convey.So(normalize.HeaderKey("year  2024"), convey.ShouldEqual, "year_2024")
		convey.So(normalize.HeaderKey("\ufeffcountry"), convey.ShouldEqual, "country")
	})
}

func TestBuildSchema(t *testing.T) {
	convey.Convey("Given a header row with aliases, year columns and extras", t, func() {
		headers := []string{"Name", "Region", "Latitude", "lng", "Speed 2023 (Mbps)", "year 2024", "notes", "20245"}
		s := normalize.BuildSchema(headers, years, normalize.DefaultAliases)

		convey.Convey("Then aliases should map to canonical fields", func() {
			convey.So(s.OK(), convey.ShouldBeTrue)
			convey.So(s.Mapped["Name"], convey.ShouldEqual, "country")
			convey.So(s.Mapped["Latitude"], convey.ShouldEqual, "lat")
			convey.So(s.Mapped["lng"], convey.ShouldEqual, "lon")
		})

		convey.Convey("Then year columns should match whole year tokens only", func() {
			convey.So(s.YearColumns["2023"], convey.ShouldEqual, 4)
			convey.So(s.YearColumns["2024"], convey.ShouldEqual, 5)
			convey.So(s.Unmapped, convey.ShouldResemble, []string{"20245", "notes"})
		})

		convey.Convey("Then absent years should be listed", func() {
			convey.So(s.MissingYears, convey.ShouldResemble, []string{"2017", "2018", "2019", "2020", "2021", "2022"})
		})
	})

	convey.Convey("Given a header row without a country column", t, func() {
		s := normalize.BuildSchema([]string{"region", "2024"}, years, normalize.DefaultAliases)
		convey.So(s.OK(), convey.ShouldBeFalse)
	})
}

func TestCoerce(t *testing.T) {
	convey.Convey("Given raw cells", t, func() {
		cases := []struct {
			raw   string
			value model.Value
			ok    bool
		}{
			{"", model.Null, true},
			{"  ", model.Null, true},
			{"null", model.Null, true},
			{"NULL", model.Null, true},
			{" 42.5 ", model.Number(42.5), true},
			{"-7", model.Number(-7), true},
			{"fast", model.Null, false},
			{"NaN", model.Null, false},
			{"Inf", model.Null, false},
		}
		for _, c := range cases {
			v, ok := normalize.Coerce(c.raw)
			convey.So(v, convey.ShouldResemble, c.value)
			convey.So(ok, convey.ShouldEqual, c.ok)
		}
	})
}

func TestNormalizerRead(t *testing.T) {
	ctx := context.Background()
	n := normalize.New(years)

	convey.Convey("Given a CSV where one row lacks coordinates", t, func() {
		in := "country,region,lat,lon,year 2024\nAlba,West,10,20,55\nBeta,East,,,77\n"
		res, err := n.Read(ctx, strings.NewReader(in))

		convey.So(err, convey.ShouldBeNil)
		convey.So(res.Records, convey.ShouldHaveLength, 2)

		convey.Convey("Then the first record should carry its CSV coordinates", func() {
			a := res.Records[0]
			convey.So(a.Country, convey.ShouldEqual, "Alba")
			convey.So(a.Region, convey.ShouldEqual, "West")
			convey.So(a.Lat, convey.ShouldResemble, model.Number(10))
			convey.So(a.Lon, convey.ShouldResemble, model.Number(20))
			convey.So(a.Source, convey.ShouldEqual, model.SourceCSV)
			convey.So(a.Value("2024"), convey.ShouldResemble, model.Number(55))
			convey.So(a.Line, convey.ShouldEqual, 2)
		})

		convey.Convey("Then the second record should need resolution", func() {
			b := res.Records[1]
			convey.So(b.NeedsResolution(), convey.ShouldBeTrue)
			convey.So(b.Source, convey.ShouldEqual, model.SourceNone)
			convey.So(b.Value("2024"), convey.ShouldResemble, model.Number(77))
		})

		convey.Convey("Then every configured year should be present and absent years null", func() {
			for _, r := range res.Records {
				convey.So(r.Values, convey.ShouldHaveLength, len(years))
				convey.So(r.Value("2017").Valid, convey.ShouldBeFalse)
			}
		})

		convey.Convey("Then no diagnostics should be reported", func() {
			convey.So(res.Diagnostics, convey.ShouldBeEmpty)
		})
	})

	convey.Convey("Given rows with unparseable numbers and a missing country", t, func() {
		in := "\ufeffCountry Name,Latitude,Longitude,2023,2024\n" +
			"Gamma,abc,5,null,12.5\n" +
			",1,2,3,4\n"
		res, err := n.Read(ctx, strings.NewReader(in))

		convey.So(err, convey.ShouldBeNil)
		convey.So(res.Records, convey.ShouldHaveLength, 2)

		convey.Convey("Then bad numbers should become null with a diagnostic", func() {
			g := res.Records[0]
			convey.So(g.Country, convey.ShouldEqual, "Gamma")
			convey.So(g.Lat.Valid, convey.ShouldBeFalse)
			convey.So(g.Lon, convey.ShouldResemble, model.Number(5))
			convey.So(g.Value("2023").Valid, convey.ShouldBeFalse)
			convey.So(g.Value("2024"), convey.ShouldResemble, model.Number(12.5))
			convey.So(res.Diagnostics[0], convey.ShouldResemble, normalize.Diagnostic{
				Line: 2, Column: "Latitude", Value: "abc", Reason: normalize.ReasonBadNumber,
			})
		})

		convey.Convey("Then a row without a country should be kept and flagged", func() {
			convey.So(res.Records[1].Country, convey.ShouldEqual, "")
			convey.So(res.Records[1].NeedsResolution(), convey.ShouldBeFalse)
			convey.So(res.Diagnostics[1].Reason, convey.ShouldEqual, normalize.ReasonMissingCountry)
		})
	})

	convey.Convey("Given several aliases for the same field", t, func() {
		in := "country,name,lat,latitude,lon\n,Delta,,7,8\n"
		res, err := n.Read(ctx, strings.NewReader(in))

		convey.Convey("Then the first populated alias should win", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.Records[0].Country, convey.ShouldEqual, "Delta")
			convey.So(res.Records[0].Lat, convey.ShouldResemble, model.Number(7))
		})
	})

	convey.Convey("Given a ragged row", t, func() {
		res, err := n.Read(ctx, strings.NewReader("country,region,2024\nEpsilon\n"))

		convey.Convey("Then missing cells should read as empty", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.Records[0].Region, convey.ShouldEqual, "")
			convey.So(res.Records[0].Value("2024").Valid, convey.ShouldBeFalse)
			convey.So(res.Diagnostics[0].Reason, convey.ShouldEqual, normalize.ReasonRaggedRow)
		})
	})

	convey.Convey("Given an empty document", t, func() {
		_, err := n.Read(ctx, strings.NewReader(""))
		convey.So(errors.Is(err, normalize.ErrEmptyInput), convey.ShouldBeTrue)
	})

	convey.Convey("Given a cancelled context", t, func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := n.Read(cctx, strings.NewReader("country\nZeta\n"))
		convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
	})

	convey.Convey("Given an extra alias option", t, func() {
		custom := normalize.New(years, normalize.WithAliases(normalize.FieldCountry, "Nation"))
		res, err := custom.Read(ctx, strings.NewReader("nation,2024\nEta,3\n"))
		convey.So(err, convey.ShouldBeNil)
		convey.So(res.Records[0].Country, convey.ShouldEqual, "Eta")
	})
}
