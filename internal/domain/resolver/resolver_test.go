package resolver_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/resolver"
	logging "github.com/okian/speedglobe/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string]model.Coordinate
	err  error
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string]model.Coordinate)} }

func (c *mapCache) Get(_ context.Context, key string) (model.Coordinate, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return model.Coordinate{}, false, c.err
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, v model.Coordinate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v
	return nil
}

type fakeGeocoder struct {
	name  string
	known map[string]model.Coordinate
	err   error
	mu    sync.Mutex
	calls []string
}

func (g *fakeGeocoder) Name() string { return g.name }

func (g *fakeGeocoder) Lookup(_ context.Context, name string) (model.Coordinate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, name)
	if g.err != nil {
		return model.Coordinate{}, g.err
	}
	if c, ok := g.known[name]; ok {
		return c, nil
	}
	return model.Coordinate{}, resolver.ErrGeocodeMiss
}

func half() float64 { return 0.5 }

func TestCandidates(t *testing.T) {
	convey.Convey("Given country names", t, func() {
		convey.So(resolver.Candidates("France"), convey.ShouldResemble, []string{"France"})
		convey.So(resolver.Candidates("  Korea, Republic of "), convey.ShouldResemble, []string{"Korea, Republic of", "Korea"})
		convey.So(resolver.Candidates("Bolivia (Plurinational State of)"), convey.ShouldResemble, []string{"Bolivia (Plurinational State of)", "Bolivia"})
		convey.So(resolver.Candidates("Congo (Kinshasa), DR"), convey.ShouldResemble, []string{"Congo (Kinshasa), DR", "Congo"})
		convey.So(resolver.Candidates(",odd"), convey.ShouldResemble, []string{",odd"})
		convey.So(resolver.Candidates(""), convey.ShouldBeEmpty)

		convey.Convey("Then no more than two distinct names are ever produced", func() {
			for _, n := range []string{"A, B (C), D", "(x)", "x,y,z", "Niue"} {
				c := resolver.Candidates(n)
				convey.So(len(c), convey.ShouldBeLessThanOrEqualTo, 2)
				if len(c) == 2 {
					convey.So(c[0], convey.ShouldNotEqual, c[1])
				}
			}
		})
	})
}

func TestFallback(t *testing.T) {
	convey.Convey("Given a region name", t, func() {
		convey.Convey("Then the centre is derived from its length", func() {
			c := resolver.Fallback("West", half)
			convey.So(c.Lat, convey.ShouldEqual, -6)
			convey.So(c.Lon, convey.ShouldEqual, -8)
		})

		convey.Convey("Then jitter stays within three degrees", func() {
			lo := resolver.Fallback("West", func() float64 { return 0 })
			hi := resolver.Fallback("West", func() float64 { return 0.999999 })
			convey.So(lo.Lat, convey.ShouldEqual, -9)
			convey.So(lo.Lon, convey.ShouldEqual, -11)
			convey.So(hi.Lat, convey.ShouldBeLessThan, -3)
			convey.So(hi.Lon, convey.ShouldBeLessThan, -5)
		})

		convey.Convey("Then an empty region uses seed zero", func() {
			c := resolver.Fallback("", half)
			convey.So(c, convey.ShouldResemble, model.Coordinate{Lat: -10, Lon: -60})
		})
	})
}

func TestPartition(t *testing.T) {
	convey.Convey("Given a mix of records", t, func() {
		recs := []model.Record{
			{Country: "Alba", Lat: model.Number(1), Lon: model.Number(2)},
			{Country: "Beta"},
			{Country: "", Region: "X"},
			{Country: "Gamma", Lat: model.Number(1)},
		}
		convey.So(resolver.Partition(recs), convey.ShouldResemble, []int{1, 3})
	})
}

func TestResolve(t *testing.T) {
	_ = logging.Init()
	ctx := context.Background()

	convey.Convey("Given a resolver with a cache and a geocoder", t, func() {
		cache := newMapCache()
		geo := &fakeGeocoder{name: "restcountries", known: map[string]model.Coordinate{
			"Beta":  {Lat: 5, Lon: 6},
			"Korea": {Lat: 37, Lon: 127},
		}}
		r := resolver.New(cache, resolver.WithGeocoders(geo), resolver.WithJitter(half))

		convey.Convey("When the name is cached", func() {
			cache.data["beta"] = model.Coordinate{Lat: 1, Lon: 1}
			rec := model.Record{Country: "Beta"}
			src, err := r.Resolve(ctx, &rec)

			convey.Convey("Then no geocoder call is made", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(src, convey.ShouldEqual, model.SourceCache)
				convey.So(rec.Lat, convey.ShouldResemble, model.Number(1))
				convey.So(geo.calls, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the geocoder knows the name", func() {
			rec := model.Record{Country: " Beta "}
			src, err := r.Resolve(ctx, &rec)

			convey.Convey("Then the result is assigned and cached", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(src, convey.ShouldEqual, model.SourceRestCountries)
				convey.So(rec.Source, convey.ShouldEqual, model.SourceRestCountries)
				convey.So(cache.data["beta"], convey.ShouldResemble, model.Coordinate{Lat: 5, Lon: 6})
			})
		})

		convey.Convey("When only the alternate name resolves", func() {
			rec := model.Record{Country: "Korea, Republic of"}
			_, err := r.Resolve(ctx, &rec)

			convey.Convey("Then exactly two lookups are made and both keys cached", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(geo.calls, convey.ShouldResemble, []string{"Korea, Republic of", "Korea"})
				convey.So(cache.data["korea"], convey.ShouldResemble, model.Coordinate{Lat: 37, Lon: 127})
				convey.So(cache.data["korea, republic of"], convey.ShouldResemble, model.Coordinate{Lat: 37, Lon: 127})
			})
		})

		convey.Convey("When nothing resolves", func() {
			rec := model.Record{Country: "Atlantis (Sunken)", Region: "West"}
			src, err := r.Resolve(ctx, &rec)

			convey.Convey("Then a synthetic fallback is assigned after one retry", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(src, convey.ShouldEqual, model.SourceFallback)
				convey.So(rec.Source.Synthetic(), convey.ShouldBeTrue)
				convey.So(rec.Lat, convey.ShouldResemble, model.Number(-6))
				convey.So(rec.Lon, convey.ShouldResemble, model.Number(-8))
				convey.So(geo.calls, convey.ShouldHaveLength, 2)
			})
		})

		convey.Convey("When the geocoder and cache fail", func() {
			geo.err = errors.New("connection refused")
			cache.err = errors.New("redis down")
			rec := model.Record{Country: "Beta", Region: "East"}
			src, err := r.Resolve(ctx, &rec)

			convey.Convey("Then failures are treated as misses", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(src, convey.ShouldEqual, model.SourceFallback)
			})
		})

		convey.Convey("When the record already has coordinates", func() {
			rec := model.Record{Country: "Beta", Lat: model.Number(9), Lon: model.Number(9), Source: model.SourceCSV}
			src, _ := r.Resolve(ctx, &rec)
			convey.So(src, convey.ShouldEqual, model.SourceCSV)
			convey.So(geo.calls, convey.ShouldBeEmpty)
		})

		convey.Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			rec := model.Record{Country: "Beta"}
			_, err := r.Resolve(cctx, &rec)

			convey.Convey("Then the record is left unresolved", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
				convey.So(rec.HasCoords(), convey.ShouldBeFalse)
			})
		})
	})

	convey.Convey("Given geocoders tried in order", t, func() {
		first := &fakeGeocoder{name: "restcountries"}
		second := &fakeGeocoder{name: "geobed", known: map[string]model.Coordinate{"Beta": {Lat: 2, Lon: 3}}}
		r := resolver.New(nil, resolver.WithGeocoders(first, nil, second))

		rec := model.Record{Country: "Beta"}
		src, err := r.Resolve(ctx, &rec)

		convey.So(err, convey.ShouldBeNil)
		convey.So(src, convey.ShouldEqual, model.SourceGeobed)
		convey.So(first.calls, convey.ShouldResemble, []string{"Beta"})
	})
}
