package viewstate_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/viewstate"
	logging "github.com/okian/speedglobe/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var years = model.Years{"2017", "2018", "2019", "2020", "2021", "2022", "2023", "2024"}

type catalog struct {
	regions   map[string]bool
	countries map[string]bool
}

func (c catalog) HasRegion(r string) bool  { return c.regions[r] }
func (c catalog) HasCountry(k string) bool { return c.countries[k] }

func testCatalog() catalog {
	return catalog{
		regions:   map[string]bool{"North": true, "South": true},
		countries: map[string]bool{"alba": true, "beta": true},
	}
}

// recorder collects changes in delivery order.
type recorder struct {
	mu      sync.Mutex
	changes []viewstate.Change
}

func (r *recorder) OnChange(_ context.Context, c viewstate.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recorder) all() []viewstate.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]viewstate.Change(nil), r.changes...)
}

func TestController(t *testing.T) {
	_ = logging.Init()
	ctx := context.Background()

	Convey("Given a controller over the fixed years", t, func() {
		c, err := viewstate.New(years, viewstate.WithCatalog(testCatalog()))
		So(err, ShouldBeNil)
		defer c.Close()

		rec := &recorder{}
		second := &recorder{}
		c.Subscribe(rec)
		c.Subscribe(second)
		c.Subscribe(nil)

		Convey("Then the initial state should be the last year, every region, paused", func() {
			So(c.State(), ShouldResemble, viewstate.State{Year: "2024", Region: model.AllRegions, TopN: 12})
		})

		Convey("When the year is changed", func() {
			change, err := c.Update(ctx, viewstate.SetYear("2019"))

			Convey("Then every subscriber should be told once and the points rebuilt", func() {
				So(err, ShouldBeNil)
				So(change.Fields, ShouldResemble, []viewstate.Field{viewstate.FieldYear})
				So(change.Before.Year, ShouldEqual, "2024")
				So(change.After.Year, ShouldEqual, "2019")
				So(change.Rebuild(), ShouldBeTrue)
				So(rec.all(), ShouldHaveLength, 1)
				So(second.all(), ShouldHaveLength, 1)
				So(c.State().Year, ShouldEqual, "2019")
			})
		})

		Convey("When a mutation changes nothing", func() {
			change, err := c.Update(ctx, viewstate.SetYear("2024"))

			Convey("Then no one should be notified", func() {
				So(err, ShouldBeNil)
				So(change.Empty(), ShouldBeTrue)
				So(rec.all(), ShouldBeEmpty)
			})
		})

		Convey("When mutations are invalid", func() {
			_, yearErr := c.Update(ctx, viewstate.SetYear("1999"))
			_, regionErr := c.Update(ctx, viewstate.SetRegion("West"))
			_, countryErr := c.Update(ctx, viewstate.Select("Gamma"))
			_, emptyErr := c.Update(ctx, viewstate.Select("  "))
			_, kindErr := c.Update(ctx, viewstate.Mutation{Kind: "explode"})

			Convey("Then each should fail with its kind and leave the state alone", func() {
				So(errors.Is(yearErr, viewstate.ErrUnknownYear), ShouldBeTrue)
				So(errors.Is(regionErr, viewstate.ErrUnknownRegion), ShouldBeTrue)
				So(errors.Is(countryErr, viewstate.ErrUnknownCountry), ShouldBeTrue)
				So(errors.Is(emptyErr, viewstate.ErrInvalidMutation), ShouldBeTrue)
				So(errors.Is(kindErr, viewstate.ErrInvalidMutation), ShouldBeTrue)
				So(rec.all(), ShouldBeEmpty)
				So(c.State().Year, ShouldEqual, "2024")
			})
		})

		Convey("When region and selection are changed", func() {
			_, err1 := c.Update(ctx, viewstate.SetRegion("North"))
			_, err2 := c.Update(ctx, viewstate.Select("Alba"))
			_, err3 := c.Update(ctx, viewstate.SetRegion(""))
			change, err4 := c.Update(ctx, viewstate.ClearSelection())

			Convey("Then the state should follow, with blank regions meaning all", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(err3, ShouldBeNil)
				So(err4, ShouldBeNil)
				got := rec.all()
				So(got, ShouldHaveLength, 4)
				So(got[1].After.Selected, ShouldEqual, "alba")
				So(got[1].Rebuild(), ShouldBeFalse)
				So(got[2].After.Region, ShouldEqual, model.AllRegions)
				So(change.Has(viewstate.FieldSelected), ShouldBeTrue)
				So(c.State().Selected, ShouldEqual, "")
			})
		})

		Convey("When the bar race size is set out of range", func() {
			_, _ = c.Update(ctx, viewstate.SetTopN(500))
			high := c.State().TopN
			_, _ = c.Update(ctx, viewstate.SetTopN(1))
			low := c.State().TopN

			Convey("Then it should be clamped", func() {
				So(high, ShouldEqual, 50)
				So(low, ShouldEqual, 3)
			})
		})

		Convey("When advancing past the last year", func() {
			change, err := c.Update(ctx, viewstate.Advance())

			Convey("Then it should wrap to the first", func() {
				So(err, ShouldBeNil)
				So(change.After.Year, ShouldEqual, "2017")
			})
		})

		Convey("When toggling play twice", func() {
			on, _ := c.Update(ctx, viewstate.Toggle())
			off, _ := c.Update(ctx, viewstate.Toggle())

			Convey("Then play mode should flip each time", func() {
				So(on.After.Playing, ShouldBeTrue)
				So(off.After.Playing, ShouldBeFalse)
			})
		})
	})

	Convey("Given a controller without a catalog", t, func() {
		c, err := viewstate.New(years, viewstate.WithInitialYear("2017"), viewstate.WithTopN(20))
		So(err, ShouldBeNil)
		defer c.Close()

		Convey("Then any region and country should be accepted", func() {
			_, err := c.Update(ctx, viewstate.SetRegion("Anywhere"))
			So(err, ShouldBeNil)
			_, err = c.Update(ctx, viewstate.Select("Nowhere"))
			So(err, ShouldBeNil)
			So(c.State().Year, ShouldEqual, "2017")
			So(c.State().TopN, ShouldEqual, 20)
		})

		Convey("When the catalog is set later", func() {
			c.SetCatalog(testCatalog())
			_, err := c.Update(ctx, viewstate.SetRegion("Anywhere"))
			So(errors.Is(err, viewstate.ErrUnknownRegion), ShouldBeTrue)
		})
	})

	Convey("Given invalid construction", t, func() {
		_, err := viewstate.New(nil)
		So(errors.Is(err, viewstate.ErrNoYears), ShouldBeTrue)
		_, err = viewstate.New(years, viewstate.WithInitialYear("1990"))
		So(errors.Is(err, viewstate.ErrUnknownYear), ShouldBeTrue)
	})
}

func TestControllerPlay(t *testing.T) {
	_ = logging.Init()
	ctx := context.Background()

	Convey("Given a playing controller with a short interval", t, func() {
		c, err := viewstate.New(years, viewstate.WithInterval(5*time.Millisecond))
		So(err, ShouldBeNil)
		defer c.Close()

		rec := &recorder{}
		c.Subscribe(rec)

		_, err = c.Update(ctx, viewstate.Play())
		So(err, ShouldBeNil)
		_, err = c.Update(ctx, viewstate.Play())
		So(err, ShouldBeNil)

		deadline := time.Now().Add(2 * time.Second)
		for c.State().Year != "2018" && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}

		Convey("Then it should wrap from the last year to the first and keep going", func() {
			changes := rec.all()
			So(len(changes), ShouldBeGreaterThanOrEqualTo, 3)
			So(changes[0].Has(viewstate.FieldPlaying), ShouldBeTrue)
			So(changes[1].Before.Year, ShouldEqual, "2024")
			So(changes[1].After.Year, ShouldEqual, "2017")
			So(changes[2].After.Year, ShouldEqual, "2018")
		})

		Convey("When paused", func() {
			_, err := c.Update(ctx, viewstate.Pause())
			So(err, ShouldBeNil)
			year := c.State().Year
			count := len(rec.all())
			time.Sleep(30 * time.Millisecond)

			Convey("Then no further advance should happen", func() {
				So(c.State().Year, ShouldEqual, year)
				So(c.State().Playing, ShouldBeFalse)
				So(rec.all(), ShouldHaveLength, count)
			})
		})

		Convey("When closed", func() {
			c.Close()
			_, err := c.Update(ctx, viewstate.SetYear("2020"))
			So(errors.Is(err, viewstate.ErrClosed), ShouldBeTrue)
		})
	})
}

func TestControllerRejectsTimerAdvance(t *testing.T) {
	_ = logging.Init()
	ctx := context.Background()

	Convey("Given a playing controller whose timer has not fired yet", t, func() {
		c, err := viewstate.New(years, viewstate.WithInitialYear("2019"), viewstate.WithInterval(time.Hour))
		So(err, ShouldBeNil)
		defer c.Close()
		_, err = c.Update(ctx, viewstate.Play())
		So(err, ShouldBeNil)

		Convey("When a caller sends the timer's own kind", func() {
			_, err := c.Update(ctx, viewstate.Mutation{Kind: "tick"})

			Convey("Then it is rejected and the year stays put", func() {
				So(errors.Is(err, viewstate.ErrInvalidMutation), ShouldBeTrue)
				So(c.State().Year, ShouldEqual, "2019")
			})
		})
	})
}
