package geocode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/speedglobe/internal/config"
	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/resolver"
)

// Chain tries geocoders in order; the first hit wins.
type Chain []resolver.Geocoder

func (c Chain) Name() string { return "chain" }

// Members lets the resolver try and measure each source on its own.
func (c Chain) Members() []resolver.Geocoder { return c }

// Lookup implements resolver.Geocoder.
func (c Chain) Lookup(ctx context.Context, name string) (model.Coordinate, error) {
	coord, _, err := c.LookupSource(ctx, name)
	return coord, err
}

// LookupSource reports which member answered. Member errors other than a
// miss are joined into the returned error when nobody answers.
func (c Chain) LookupSource(ctx context.Context, name string) (model.Coordinate, model.CoordSource, error) {
	var errs []error
	for _, g := range c {
		coord, err := g.Lookup(ctx, name)
		if err == nil {
			return coord, model.CoordSource(g.Name()), nil
		}
		if !errors.Is(err, resolver.ErrGeocodeMiss) {
			errs = append(errs, fmt.Errorf("%s: %w", g.Name(), err))
		}
	}
	if len(errs) > 0 {
		return model.Coordinate{}, model.SourceNone, errors.Join(errs...)
	}
	return model.Coordinate{}, model.SourceNone, fmt.Errorf("%w: %q", resolver.ErrGeocodeMiss, name)
}

// FromConfig builds the configured sources: the online service, then the
// offline gazetteer when enabled.
func FromConfig(cfg *config.Config) Chain {
	chain := Chain{NewRestCountries(
		WithBaseURL(cfg.GeocodeBaseURL),
		WithTimeout(time.Duration(cfg.GeocodeTimeoutMS)*time.Millisecond),
	)}
	if cfg.OfflineGeocoder {
		chain = append(chain, NewOffline())
	}
	return chain
}
