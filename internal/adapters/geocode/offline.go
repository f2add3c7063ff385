package geocode

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/andreiashu/geobed"
	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/resolver"
)

// CityGeocoder is the part of *geobed.GeoBed the offline source needs.
type CityGeocoder interface {
	Geocode(n string, opts ...geobed.GeocodeOptions) geobed.GeobedCity
}

// Offline resolves a country to the location of its capital using the
// embedded geobed gazetteer. The dataset is loaded on first use.
type Offline struct {
	load func() ([]geobed.CountryInfo, CityGeocoder, error)

	once      sync.Once
	countries map[string]geobed.CountryInfo
	cities    CityGeocoder
	err       error
}

// NewOffline creates the offline geocoder over the shared default geobed.
func NewOffline() *Offline {
	return &Offline{load: func() ([]geobed.CountryInfo, CityGeocoder, error) {
		g, err := geobed.GetDefaultGeobed()
		if err != nil {
			return nil, nil, err
		}
		return g.Countries, g, nil
	}}
}

// NewOfflineFrom creates the offline geocoder over explicit data.
func NewOfflineFrom(countries []geobed.CountryInfo, cities CityGeocoder) *Offline {
	return &Offline{load: func() ([]geobed.CountryInfo, CityGeocoder, error) {
		return countries, cities, nil
	}}
}

func (o *Offline) Name() string { return string(model.SourceGeobed) }

func (o *Offline) init() {
	countries, cities, err := o.load()
	if err != nil {
		o.err = fmt.Errorf("load geobed: %w", err)
		return
	}
	o.cities = cities
	o.countries = make(map[string]geobed.CountryInfo, len(countries)*3)
	for _, c := range countries {
		for _, k := range []string{model.NormalizeName(c.Country), strings.ToLower(c.ISO), strings.ToLower(c.ISO3)} {
			if k == "" {
				continue
			}
			if _, dup := o.countries[k]; !dup {
				o.countries[k] = c
			}
		}
	}
}

// Country returns the gazetteer entry for a name or ISO code.
func (o *Offline) Country(name string) (geobed.CountryInfo, bool) {
	o.once.Do(o.init)
	if o.err != nil {
		return geobed.CountryInfo{}, false
	}
	trimmed := strings.TrimSpace(name)
	if c, ok := o.countries[strings.ToLower(trimmed)]; ok && len(trimmed) <= 3 {
		return c, true
	}
	c, ok := o.countries[model.NormalizeName(trimmed)]
	return c, ok
}

// Lookup geocodes the capital of the named country.
func (o *Offline) Lookup(ctx context.Context, name string) (model.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return model.Coordinate{}, err
	}
	o.once.Do(o.init)
	if o.err != nil {
		return model.Coordinate{}, o.err
	}

	info, ok := o.Country(name)
	if !ok || info.Capital == "" {
		return model.Coordinate{}, fmt.Errorf("%w: %q not in gazetteer", resolver.ErrGeocodeMiss, name)
	}
	city := o.cities.Geocode(info.Capital+", "+info.ISO, geobed.GeocodeOptions{})
	if city.City == "" {
		return model.Coordinate{}, fmt.Errorf("%w: capital %q of %q", resolver.ErrGeocodeMiss, info.Capital, name)
	}
	return model.Coordinate{Lat: float64(city.Latitude), Lon: float64(city.Longitude)}, nil
}
