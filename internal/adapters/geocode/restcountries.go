// Package geocode turns country names into coordinates using an online
// country service, an offline gazetteer, or both in order.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/resolver"
	"github.com/okian/speedglobe/pkg/logger"
)

// DefaultBaseURL is the public REST Countries v3.1 endpoint.
const DefaultBaseURL = "https://restcountries.com/v3.1"

const maxBodyBytes = 1 << 20

// RestCountries looks names up with GET {base}/name/{name}?fields=name,latlng.
type RestCountries struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

// RestOption configures RestCountries.
type RestOption func(*RestCountries)

// WithBaseURL overrides the service root.
func WithBaseURL(u string) RestOption {
	return func(r *RestCountries) {
		if u != "" {
			r.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) RestOption {
	return func(r *RestCountries) {
		if c != nil {
			r.client = c
		}
	}
}

// WithTimeout sets a per-request timeout on the default client. Zero means none.
func WithTimeout(d time.Duration) RestOption {
	return func(r *RestCountries) {
		r.client = &http.Client{Timeout: d}
	}
}

// NewRestCountries creates the online geocoder.
func NewRestCountries(opts ...RestOption) *RestCountries {
	r := &RestCountries{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.Get().Named("restcountries"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RestCountries) Name() string { return string(model.SourceRestCountries) }

type countryCandidate struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	LatLng []float64 `json:"latlng"`
}

// Lookup returns the coordinate of the first candidate carrying a latlng pair.
func (r *RestCountries) Lookup(ctx context.Context, name string) (model.Coordinate, error) {
	u := r.baseURL + "/name/" + url.PathEscape(name) + "?fields=name,latlng"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Coordinate{}, err
	}
	req.Header.Set("Accept", "application/json")

	t0 := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug(ctx, "restcountries request failed", logger.String("name", name), logger.Error(err))
		return model.Coordinate{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	r.logger.Debug(ctx, "restcountries response",
		logger.String("name", name),
		logger.Int("status", resp.StatusCode),
		logger.Duration("took", time.Since(t0)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return model.Coordinate{}, fmt.Errorf("%w: %q status %d", resolver.ErrGeocodeMiss, name, resp.StatusCode)
	}

	var candidates []countryCandidate
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&candidates); err != nil {
		return model.Coordinate{}, fmt.Errorf("decode restcountries response: %w", err)
	}
	// Only the best match counts; later candidates are other countries.
	if len(candidates) > 0 && len(candidates[0].LatLng) >= 2 {
		ll := candidates[0].LatLng
		return model.Coordinate{Lat: ll[0], Lon: ll[1]}, nil
	}
	return model.Coordinate{}, fmt.Errorf("%w: %q has no latlng", resolver.ErrGeocodeMiss, name)
}
