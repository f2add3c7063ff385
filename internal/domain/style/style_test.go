package style_test

import (
	"testing"

	"github.com/okian/speedglobe/internal/domain/style"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStyler(t *testing.T) {
	Convey("Given a default styler", t, func() {
		s := style.New()

		Convey("When colouring values", func() {
			So(s.Color(0, true), ShouldEqual, "hsl(240,85%,55%)")
			So(s.Color(200, true), ShouldEqual, "hsl(120,85%,55%)")
			So(s.Color(400, true), ShouldEqual, "hsl(0,85%,55%)")

			Convey("Then values beyond the ramp are clamped", func() {
				So(s.Color(900, true), ShouldEqual, "hsl(0,85%,55%)")
				So(s.Color(-5, true), ShouldEqual, "hsl(240,85%,55%)")
			})

			Convey("Then absent values are grey", func() {
				So(s.Color(0, false), ShouldEqual, "rgba(120,120,120,0.6)")
			})
		})

		Convey("When sizing values", func() {
			So(s.Altitude(0), ShouldEqual, 0.01)
			So(s.Altitude(250), ShouldAlmostEqual, 0.51)
			So(s.Radius(0), ShouldEqual, 0.2)
			So(s.Radius(999), ShouldAlmostEqual, 1)
		})

		Convey("When building a full style", func() {
			st := s.Of(100)
			So(st.Color, ShouldEqual, "hsl(180,85%,55%)")
			So(st.Altitude, ShouldAlmostEqual, 0.21)
		})
	})

	Convey("Given a styler with a custom cap", t, func() {
		s := style.New(style.WithCap(100), style.WithCap(-1))
		So(s.Color(50, true), ShouldEqual, "hsl(120,85%,55%)")
	})

	Convey("Given region indices", t, func() {
		So(style.RegionColor(0), ShouldEqual, "hsl(0 80% 60%)")
		So(style.RegionColor(2), ShouldEqual, "hsl(80 80% 60%)")
		So(style.RegionColor(9), ShouldEqual, "hsl(0 80% 60%)")

		h, sat, light := style.RegionHSL(3)
		So(h, ShouldEqual, 120)
		So(sat, ShouldAlmostEqual, 0.8)
		So(light, ShouldAlmostEqual, 0.6)
	})

	Convey("Given point values as HSL components", t, func() {
		h, sat, light := style.New().PointHSL(100)
		So(h, ShouldEqual, 180)
		So(sat, ShouldAlmostEqual, 0.85)
		So(light, ShouldAlmostEqual, 0.55)
	})
}
