package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	repository "github.com/okian/speedglobe/internal/adapters/repository"
	"github.com/okian/speedglobe/internal/domain/activity"
	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/normalize"
	"github.com/okian/speedglobe/internal/domain/points"
	"github.com/okian/speedglobe/internal/domain/style"
	"github.com/okian/speedglobe/internal/domain/types"
	"github.com/okian/speedglobe/internal/domain/viewstate"
	"github.com/okian/speedglobe/pkg/logger"
	"github.com/okian/speedglobe/pkg/metrics"
)

// StyledPoint is a world point with its rendered color, altitude and radius.
type StyledPoint struct {
	model.WorldPoint
	style.Style
}

// PointQuery selects points. Empty fields mean the current view.
type PointQuery struct {
	Year   string
	Region string
}

// NearestResult is the point closest to a clicked position.
type NearestResult struct {
	Point      StyledPoint `json:"point"`
	DistanceKM float64     `json:"distance_km"`
}

// Frame is everything a renderer needs to draw the current view.
type Frame struct {
	State         viewstate.State     `json:"state"`
	Years         []string            `json:"years"`
	RegionOptions []string            `json:"region_options"`
	Points        []StyledPoint       `json:"points"`
	Regions       []types.RegionShare `json:"regions"`
	Top           []types.Entry       `json:"top"`
	Trend         *types.Trend        `json:"trend,omitempty"`
	Dataset       string              `json:"dataset,omitempty"`
}

// snapshot returns the active dataset with its points for the built year.
func (s *Service) snapshot() (*dataset, []model.WorldPoint, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, "", ErrNotStarted
	}
	return s.data, s.data.points, s.data.year, nil
}

// OnChange implements viewstate.Subscriber: rebuild what the change
// invalidated, push a frame and log the change.
func (s *Service) OnChange(ctx context.Context, c viewstate.Change) {
	if c.Has(viewstate.FieldYear) {
		s.rebuild(ctx)
	}
	s.publish(ctx)
	for _, line := range describe(c) {
		s.journal.Add(line)
	}
	s.logger.Debug(ctx, "view changed",
		logger.Any("fields", c.Fields),
		logger.String("year", c.After.Year),
		logger.String("region", c.After.Region))
}

func describe(c viewstate.Change) []string {
	var out []string
	for _, f := range c.Fields {
		switch f {
		case viewstate.FieldYear:
			out = append(out, "Year set to "+c.After.Year)
		case viewstate.FieldRegion:
			out = append(out, "Region set to "+c.After.Region)
		case viewstate.FieldSelected:
			if c.After.Selected == "" {
				out = append(out, "Selection cleared")
			} else {
				out = append(out, "Selected "+c.After.Selected)
			}
		case viewstate.FieldPlaying:
			if c.After.Playing {
				out = append(out, "Playing")
			} else {
				out = append(out, "Paused")
			}
		case viewstate.FieldTopN:
			out = append(out, fmt.Sprintf("Top %d", c.After.TopN))
		}
	}
	return out
}

func (s *Service) publish(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	frame, err := s.Frame(ctx)
	if err != nil {
		s.logger.Warn(ctx, "building frame failed", logger.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, frame); err != nil {
		metrics.RecordErrorByComponent("service", "publish")
		s.logger.Warn(ctx, "publishing frame failed", logger.Error(err))
	}
}

func (s *Service) styled(pts []model.WorldPoint) []StyledPoint {
	out := make([]StyledPoint, len(pts))
	for i, p := range pts {
		out[i] = StyledPoint{WorldPoint: p, Style: s.styler.Of(p.Value)}
	}
	return out
}

// State returns the current view state.
func (s *Service) State() (viewstate.State, error) {
	if _, err := s.current(); err != nil {
		return viewstate.State{}, err
	}
	return s.view.State(), nil
}

// Years returns the configured year set.
func (s *Service) Years() model.Years { return s.years }

// Update applies a view mutation. It is the only way the view changes.
func (s *Service) Update(ctx context.Context, m viewstate.Mutation) (viewstate.Change, error) {
	if _, err := s.current(); err != nil {
		return viewstate.Change{}, err
	}
	return s.view.Update(ctx, m)
}

// HandleMessage decodes a mutation sent by a push client and applies it.
func (s *Service) HandleMessage(ctx context.Context, clientID string, msg []byte) error {
	var m viewstate.Mutation
	if err := json.Unmarshal(msg, &m); err != nil {
		return fmt.Errorf("%w: %v", viewstate.ErrInvalidMutation, err)
	}
	s.logger.Debug(ctx, "client mutation", logger.String("client", clientID), logger.String("kind", string(m.Kind)))
	_, err := s.Update(ctx, m)
	return err
}

// Frame assembles the renderer view of the current state.
func (s *Service) Frame(ctx context.Context) (Frame, error) {
	ds, pts, year, err := s.snapshot()
	if err != nil {
		return Frame{}, err
	}
	st := s.view.State()

	f := Frame{
		State:         st,
		Years:         s.years,
		RegionOptions: append([]string{model.AllRegions}, points.ObservedRegions(ds.records)...),
		Points:        s.styled(points.FilterRegion(pts, st.Region)),
		Regions:       points.Regions(ds.records, year),
		Dataset:       ds.id,
	}
	if f.Top, err = s.TopN(ctx, st.TopN); err != nil {
		return Frame{}, err
	}
	if st.Selected != "" {
		if rec, ok := points.Find(ds.records, st.Selected); ok {
			t := points.Trend(rec, s.years)
			f.Trend = &t
		}
	}
	return f, nil
}

// Points returns styled points for a year and region. The current view's
// points are reused; other years are built on demand and change nothing.
func (s *Service) Points(ctx context.Context, q PointQuery) ([]StyledPoint, error) {
	pts, err := s.points(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.styled(pts), nil
}

func (s *Service) points(_ context.Context, q PointQuery) ([]model.WorldPoint, error) {
	ds, pts, year, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	st := s.view.State()
	if q.Year == "" {
		q.Year = st.Year
	}
	if q.Region == "" {
		q.Region = st.Region
	}
	if !s.years.Contains(q.Year) {
		return nil, fmt.Errorf("%w: %q", viewstate.ErrUnknownYear, q.Year)
	}
	if q.Region != model.AllRegions && !ds.HasRegion(q.Region) {
		return nil, fmt.Errorf("%w: %q", viewstate.ErrUnknownRegion, q.Region)
	}
	if q.Year != year {
		pts = points.Build(ds.records, q.Year)
	}
	return points.FilterRegion(pts, q.Region), nil
}

// Regions returns the regional totals for year, or the current year.
func (s *Service) Regions(_ context.Context, year string) ([]types.RegionShare, error) {
	ds, _, _, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	if year == "" {
		year = s.view.State().Year
	}
	if !s.years.Contains(year) {
		return nil, fmt.Errorf("%w: %q", viewstate.ErrUnknownYear, year)
	}
	return points.Regions(ds.records, year), nil
}

// Trend returns a country's values across all years. An empty country
// means the selected one.
func (s *Service) Trend(_ context.Context, country string) (types.Trend, error) {
	ds, _, _, err := s.snapshot()
	if err != nil {
		return types.Trend{}, err
	}
	key := model.NormalizeName(country)
	if key == "" {
		key = s.view.State().Selected
	}
	if key == "" {
		return types.Trend{}, ErrNoSelection
	}
	rec, ok := points.Find(ds.records, key)
	if !ok {
		return types.Trend{}, fmt.Errorf("%w: %q", points.ErrCountryNotFound, country)
	}
	return points.Trend(rec, s.years), nil
}

// TopN returns the bar race for the current year. n <= 0 means the
// current view size; n is clamped to the allowed range.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if _, err := s.current(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = s.view.State().TopN
	}
	entries, err := s.ranking.TopN(ctx, points.ClampTopN(n))
	if err != nil {
		return nil, err
	}

	out := make([]types.Entry, len(entries))
	for i, e := range entries {
		out[i] = toEntry(e, entries[0].Value)
	}
	return out, nil
}

// Rank returns a country's position in the current year's bar race.
func (s *Service) Rank(ctx context.Context, country string) (types.Entry, error) {
	if _, err := s.current(); err != nil {
		return types.Entry{}, err
	}
	e, err := s.ranking.Rank(ctx, model.NormalizeName(country))
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidKey) {
		return types.Entry{}, fmt.Errorf("%w: %q", points.ErrCountryNotFound, country)
	}
	if err != nil {
		return types.Entry{}, err
	}
	leader := e.Value
	if top, err := s.ranking.TopN(ctx, 1); err == nil && len(top) > 0 {
		leader = top[0].Value
	}
	return toEntry(e, leader), nil
}

func toEntry(e repository.Entry, leader float64) types.Entry {
	return types.Entry{
		Rank:    e.Rank,
		Key:     e.Key,
		Country: e.Country,
		Region:  e.Region,
		Value:   e.Value,
		Width:   types.BarWidth(e.Value, leader),
	}
}

// Search finds a country by name and selects it. A miss is journaled and
// leaves the view unchanged.
func (s *Service) Search(ctx context.Context, query string) (model.Record, error) {
	ds, _, _, err := s.snapshot()
	if err != nil {
		return model.Record{}, err
	}
	rec, err := points.Search(ds.records, query)
	if errors.Is(err, points.ErrCountryNotFound) {
		s.journal.Warn("Country not found: " + query)
	}
	if err != nil {
		return model.Record{}, err
	}
	if _, err := s.Update(ctx, viewstate.Select(rec.Country)); err != nil {
		return model.Record{}, err
	}
	return rec.Clone(), nil
}

// Nearest returns the visible point closest to (lat, lon) and selects it.
func (s *Service) Nearest(ctx context.Context, lat, lon float64) (NearestResult, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return NearestResult{}, fmt.Errorf("%w: %v,%v", ErrInvalidCoordinate, lat, lon)
	}
	pts, err := s.points(ctx, PointQuery{})
	if err != nil {
		return NearestResult{}, err
	}
	p, km, ok := points.Nearest(pts, lat, lon)
	if !ok {
		return NearestResult{}, ErrEmptyDataset
	}
	if _, err := s.Update(ctx, viewstate.Select(p.Country)); err != nil {
		return NearestResult{}, err
	}
	return NearestResult{
		Point:      StyledPoint{WorldPoint: p, Style: s.styler.Of(p.Value)},
		DistanceKM: km,
	}, nil
}

// Journal returns the newest n log panel lines, newest first.
func (s *Service) Journal(n int) []activity.Entry {
	if _, err := s.current(); err != nil {
		return nil
	}
	return s.journal.Recent(n)
}

// Schema describes how the active dataset's headers were mapped.
func (s *Service) Schema() (normalize.Schema, error) {
	ds, _, _, err := s.snapshot()
	if err != nil {
		return normalize.Schema{}, err
	}
	if ds.id == "" {
		return normalize.Schema{}, ErrEmptyDataset
	}
	return ds.schema, nil
}

// Diagnostics lists the cells and rows of the active dataset that were coerced.
func (s *Service) Diagnostics() ([]normalize.Diagnostic, error) {
	ds, _, _, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	if ds.id == "" {
		return nil, ErrEmptyDataset
	}
	return ds.diagnostics, nil
}

// CacheSnapshot returns the session coordinate cache.
func (s *Service) CacheSnapshot(ctx context.Context) (map[string]model.Coordinate, error) {
	if _, err := s.current(); err != nil {
		return nil, err
	}
	return s.cache.Snapshot(ctx)
}
