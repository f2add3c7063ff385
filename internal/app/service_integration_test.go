package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	service "github.com/okian/speedglobe/internal/app"
	"github.com/okian/speedglobe/internal/config"
	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/viewstate"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service with full integration", t, func() {
		svc := newService(&stubGeocoder{})
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When a two-row dataset is loaded end to end", func() {
			csv := "country,region,lat,lon,year 2024\nAlba,West,10,20,55\nBeta,East,,,77\n"
			report, err := svc.LoadCSV(ctx, strings.NewReader(csv), "upload")
			So(err, ShouldBeNil)
			So(report.Fallbacks, ShouldEqual, 1)

			pts, err := svc.Points(ctx, service.PointQuery{})
			So(err, ShouldBeNil)
			So(pts, ShouldHaveLength, 2)
			byCountry := map[string]service.StyledPoint{}
			for _, p := range pts {
				byCountry[p.Country] = p
			}

			Convey("Then the row with coordinates should be unchanged", func() {
				alba := byCountry["Alba"]
				So(alba.Lat, ShouldEqual, 10)
				So(alba.Lon, ShouldEqual, 20)
				So(alba.Value, ShouldEqual, 55)
				So(alba.Source, ShouldEqual, model.SourceCSV)
				So(alba.Synthetic, ShouldBeFalse)
			})

			Convey("Then the unresolvable row should get a flagged synthetic position", func() {
				beta := byCountry["Beta"]
				So(beta.Value, ShouldEqual, 77)
				So(beta.Synthetic, ShouldBeTrue)
				So(beta.Source, ShouldEqual, model.SourceFallback)
				// "East" has four runes; a jitter of 0.5 adds nothing.
				So(beta.Lat, ShouldEqual, -6)
				So(beta.Lon, ShouldEqual, -8)
			})
		})

		Convey("When many rows need resolution through a small queue", func() {
			var b strings.Builder
			b.WriteString("country,region,2024\n")
			for i := 0; i < 40; i++ {
				fmt.Fprintf(&b, "Country %d,Region %d,%d\n", i, i%4, i+1)
			}
			report, err := svc.LoadCSV(ctx, strings.NewReader(b.String()), "upload")

			Convey("Then every record should be placed", func() {
				So(err, ShouldBeNil)
				So(report.Resolved, ShouldEqual, 40)
				So(report.Points, ShouldEqual, 40)
				So(svc.GetStats()["points"], ShouldEqual, 40)
			})
		})
	})

	Convey("Given a playing service", t, func() {
		cfg := config.New()
		cfg.PlayIntervalMS = 10
		pub := &framePublisher{}
		svc := newService(&stubGeocoder{}, service.WithConfig(cfg), service.WithPublisher(pub))
		defer svc.Stop()
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		_, err := svc.LoadCSV(ctx, strings.NewReader(threeRows), "upload")
		So(err, ShouldBeNil)

		_, err = svc.Update(ctx, viewstate.Play())
		So(err, ShouldBeNil)

		Convey("Then frames should follow the advancing year until paused", func() {
			years := map[string]bool{}
			deadline := time.Now().Add(5 * time.Second)
			for len(years) < 3 && time.Now().Before(deadline) {
				frame, _ := pub.last()
				years[frame.State.Year] = true
				time.Sleep(5 * time.Millisecond)
			}
			So(len(years), ShouldBeGreaterThanOrEqualTo, 3)

			_, err := svc.Update(ctx, viewstate.Pause())
			So(err, ShouldBeNil)
			st, _ := svc.State()
			time.Sleep(50 * time.Millisecond)
			after, _ := svc.State()
			So(after.Year, ShouldEqual, st.Year)
			So(after.Playing, ShouldBeFalse)
		})
	})
}
