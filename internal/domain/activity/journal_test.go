package activity_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/speedglobe/internal/domain/activity"
	. "github.com/smartystreets/goconvey/convey"
)

func TestJournal(t *testing.T) {
	Convey("Given a journal of three entries", t, func() {
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		tick := 0
		j := activity.New(3, activity.WithClock(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		}))

		Convey("When it is empty", func() {
			So(j.Len(), ShouldEqual, 0)
			So(j.Recent(5), ShouldBeEmpty)
			So(j.Cap(), ShouldEqual, 3)
		})

		Convey("When fewer entries than capacity are added", func() {
			j.Add("CSV loaded and geocoding complete.")
			j.Warn("Failed to load data.csv: missing")

			Convey("Then they should be returned newest first", func() {
				got := j.Recent(0)
				So(got, ShouldHaveLength, 2)
				So(got[0].Message, ShouldEqual, "Failed to load data.csv: missing")
				So(got[0].Level, ShouldEqual, activity.LevelWarn)
				So(got[1].Level, ShouldEqual, activity.LevelInfo)
				So(got[0].Time.After(got[1].Time), ShouldBeTrue)
			})
		})

		Convey("When the buffer wraps", func() {
			for i := 1; i <= 5; i++ {
				j.Add(fmt.Sprintf("line %d", i))
			}
			j.Error("boom")

			Convey("Then only the newest entries should remain", func() {
				So(j.Len(), ShouldEqual, 3)
				got := j.Recent(10)
				So(got[0].Message, ShouldEqual, "boom")
				So(got[1].Message, ShouldEqual, "line 5")
				So(got[2].Message, ShouldEqual, "line 4")
				So(j.Recent(1), ShouldHaveLength, 1)
			})
		})
	})

	Convey("Given a journal with a non-positive size", t, func() {
		j := activity.New(0)
		So(j.Cap(), ShouldEqual, 200)
	})

	Convey("Given concurrent writers", t, func() {
		j := activity.New(50)
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					j.Add("tick")
					_ = j.Recent(5)
				}
			}()
		}
		wg.Wait()
		So(j.Len(), ShouldEqual, 50)
	})
}
