// Package resolver fills in missing coordinates for normalized records.
//
// Each name is tried against the session cache, then every geocoder in
// order, once for the raw name and once for a simplified alternate. When
// nothing answers, a deterministic region-seeded position is used and the
// record is marked as synthetic.
package resolver

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/pkg/logger"
	"github.com/okian/speedglobe/pkg/metrics"
)

const maxAttempts = 2

// Cache stores coordinates by CacheKey for the lifetime of a session.
type Cache interface {
	Get(ctx context.Context, key string) (model.Coordinate, bool, error)
	Set(ctx context.Context, key string, c model.Coordinate) error
}

// Geocoder turns a country name into a coordinate.
// Lookups that find nothing return ErrGeocodeMiss.
type Geocoder interface {
	Name() string
	Lookup(ctx context.Context, name string) (model.Coordinate, error)
}

// SourcedGeocoder is implemented by geocoders that front several sources
// and can tell which one answered.
type SourcedGeocoder interface {
	LookupSource(ctx context.Context, name string) (model.Coordinate, model.CoordSource, error)
}

// Composite is implemented by geocoders that front an ordered list of
// others. The resolver tries and measures the members individually.
type Composite interface {
	Members() []Geocoder
}

// Jitter returns a number in [0, 1).
type Jitter func() float64

// Resolver resolves coordinates for records.
type Resolver struct {
	cache     Cache
	geocoders []Geocoder
	jitter    Jitter
	logger    logger.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithGeocoders sets the geocoders tried after a cache miss, in order.
// Composites are flattened so metrics carry each member's name.
func WithGeocoders(gs ...Geocoder) Option {
	return func(r *Resolver) {
		r.geocoders = append(r.geocoders, flatten(gs)...)
	}
}

func flatten(gs []Geocoder) []Geocoder {
	var out []Geocoder
	for _, g := range gs {
		switch c := g.(type) {
		case nil:
		case Composite:
			out = append(out, flatten(c.Members())...)
		default:
			out = append(out, g)
		}
	}
	return out
}

// WithJitter replaces the random source used by fallback placement.
func WithJitter(j Jitter) Option {
	return func(r *Resolver) {
		if j != nil {
			r.jitter = j
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Resolver. A nil cache disables caching.
func New(cache Cache, opts ...Option) *Resolver {
	r := &Resolver{
		cache:  cache,
		jitter: rand.Float64,
		logger: logger.Get().Named("resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Partition returns the indices of records that have a country but lack a coordinate.
func Partition(records []model.Record) []int {
	var out []int
	for i := range records {
		if records[i].NeedsResolution() {
			out = append(out, i)
		}
	}
	return out
}

// Candidates lists the names to try for a country: the trimmed name and,
// when different, the part before any comma or parenthesis.
// "Korea, Republic of" yields ["Korea, Republic of", "Korea"].
func Candidates(name string) []string {
	first := strings.TrimSpace(name)
	if first == "" {
		return nil
	}
	out := make([]string, 0, maxAttempts)
	out = append(out, first)

	alt := strings.SplitN(first, ",", 2)[0]
	alt = strings.TrimSpace(strings.SplitN(alt, "(", 2)[0])
	if alt != "" && !strings.EqualFold(alt, first) && len(out) < maxAttempts {
		out = append(out, alt)
	}
	return out
}

// Fallback places a record near a position derived from its region name.
// The result is stable up to ±3 degrees of jitter on each axis.
func Fallback(region string, jitter Jitter) model.Coordinate {
	seed := utf8.RuneCountInString(region)
	return model.Coordinate{
		Lat: float64(seed%40) - 10 + (jitter()-0.5)*6,
		Lon: float64((seed*13)%180) - 60 + (jitter()-0.5)*6,
	}
}

// Resolve assigns coordinates to rec. It never leaves a record with a
// country unresolved unless ctx is done, in which case ctx.Err() is returned.
func (r *Resolver) Resolve(ctx context.Context, rec *model.Record) (model.CoordSource, error) {
	if rec.HasCoords() {
		return rec.Source, nil
	}
	original := model.CacheKey(rec.Country)

	for _, name := range Candidates(rec.Country) {
		if err := ctx.Err(); err != nil {
			return model.SourceNone, err
		}
		key := model.CacheKey(name)

		if c, ok := r.cacheGet(ctx, key); ok {
			if key != original {
				r.cacheSet(ctx, original, c)
			}
			rec.SetCoordinate(c, model.SourceCache)
			return model.SourceCache, nil
		}

		if c, src, ok := r.lookup(ctx, name); ok {
			r.cacheSet(ctx, key, c)
			if key != original {
				r.cacheSet(ctx, original, c)
			}
			rec.SetCoordinate(c, src)
			return src, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return model.SourceNone, err
	}

	c := Fallback(rec.Region, r.jitter)
	rec.SetCoordinate(c, model.SourceFallback)
	metrics.RecordFallbackPlacement()
	r.logger.Debug(ctx, "placed with fallback coordinates",
		logger.String("country", rec.Country),
		logger.String("region", rec.Region))
	return model.SourceFallback, nil
}

func (r *Resolver) cacheGet(ctx context.Context, key string) (model.Coordinate, bool) {
	if r.cache == nil {
		return model.Coordinate{}, false
	}
	c, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		metrics.RecordErrorByComponent("resolver", "cache_get")
		r.logger.Warn(ctx, "cache read failed, treating as miss", logger.String("key", key), logger.Error(err))
		ok = false
	}
	if ok {
		metrics.RecordCacheHit()
		return c, true
	}
	metrics.RecordCacheMiss()
	return model.Coordinate{}, false
}

func (r *Resolver) cacheSet(ctx context.Context, key string, c model.Coordinate) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, key, c); err != nil {
		metrics.RecordErrorByComponent("resolver", "cache_set")
		r.logger.Warn(ctx, "cache write failed", logger.String("key", key), logger.Error(err))
	}
}

// lookup asks each geocoder in turn; the first hit wins.
func (r *Resolver) lookup(ctx context.Context, name string) (model.Coordinate, model.CoordSource, bool) {
	for _, g := range r.geocoders {
		start := time.Now()
		var (
			c   model.Coordinate
			src = model.CoordSource(g.Name())
			err error
		)
		if sg, ok := g.(SourcedGeocoder); ok {
			c, src, err = sg.LookupSource(ctx, name)
		} else {
			c, err = g.Lookup(ctx, name)
		}
		metrics.RecordGeocodeLatency(g.Name(), float64(time.Since(start).Microseconds())/1000)

		switch {
		case err == nil:
			metrics.RecordGeocodeRequest(g.Name(), "hit")
			return c, src, true
		case errors.Is(err, ErrGeocodeMiss):
			metrics.RecordGeocodeRequest(g.Name(), "miss")
		default:
			metrics.RecordGeocodeRequest(g.Name(), "error")
			r.logger.Warn(ctx, "geocoder failed, treating as miss",
				logger.String("geocoder", g.Name()),
				logger.String("name", name),
				logger.Error(err))
		}
	}
	return model.Coordinate{}, model.SourceNone, false
}
