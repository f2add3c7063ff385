package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/speedglobe/internal/adapters/mq/queue"
	"github.com/okian/speedglobe/internal/adapters/mq/worker"
	repository "github.com/okian/speedglobe/internal/adapters/repository"
	"github.com/okian/speedglobe/internal/domain/dedupe"
	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/points"
	"github.com/okian/speedglobe/internal/domain/resolver"
	"github.com/okian/speedglobe/internal/domain/viewstate"
	"github.com/okian/speedglobe/pkg/logger"
	"github.com/okian/speedglobe/pkg/metrics"
)

// Journal lines written for dataset loads.
const (
	msgLoaded    = "CSV loaded and geocoding complete."
	msgDuplicate = "Dataset already loaded; skipped."
)

// LoadReport summarises one LoadCSV call.
type LoadReport struct {
	ID           string                    `json:"id"`
	Origin       string                    `json:"origin"`
	Fingerprint  string                    `json:"fingerprint"`
	Duplicate    bool                      `json:"duplicate"`
	Records      int                       `json:"records"`
	Points       int                       `json:"points"`
	Resolved     int                       `json:"resolved"`
	Fallbacks    int                       `json:"fallbacks"`
	Sources      map[model.CoordSource]int `json:"sources,omitempty"`
	Diagnostics  int                       `json:"diagnostics"`
	Unmapped     []string                  `json:"unmapped,omitempty"`
	MissingYears []string                  `json:"missing_years,omitempty"`
	DurationMS   int64                     `json:"duration_ms"`
}

// LoadOption tunes one LoadCSV call.
type LoadOption func(*loadOptions)

type loadOptions struct {
	force bool
}

// Force reloads a dataset even when its bytes were seen before.
func Force() LoadOption {
	return func(o *loadOptions) { o.force = true }
}

// passStats describes the last resolution pass.
type passStats struct {
	Jobs       int                       `json:"jobs"`
	Workers    int                       `json:"workers"`
	Failed     int64                     `json:"failed"`
	Sources    map[model.CoordSource]int `json:"sources"`
	DurationMS int64                     `json:"duration_ms"`
}

// LoadCSV reads a CSV dataset, resolves missing coordinates and makes it
// the active dataset. The previous dataset stays active on any error.
// Bytes identical to a remembered dataset are acknowledged as a duplicate
// and change nothing unless Force is given.
func (s *Service) LoadCSV(ctx context.Context, r io.Reader, origin string, opts ...LoadOption) (LoadReport, error) {
	if _, err := s.current(); err != nil {
		return LoadReport{}, err
	}
	var lo loadOptions
	for _, opt := range opts {
		opt(&lo)
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	start := time.Now()
	report := LoadReport{ID: uuid.NewString(), Origin: origin}

	data, err := io.ReadAll(io.LimitReader(r, s.maxUpload+1))
	if err != nil {
		return report, s.failLoad(ctx, origin, fmt.Errorf("read: %w", err))
	}
	if int64(len(data)) > s.maxUpload {
		return report, s.failLoad(ctx, origin, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxUpload))
	}

	report.Fingerprint = dedupe.Fingerprint(data)
	if s.deduper.SeenAndRecord(ctx, report.Fingerprint) && !lo.force {
		report.Duplicate = true
		s.journal.Add(msgDuplicate)
		metrics.RecordDatasetLoad(origin, "duplicate")
		s.logger.Info(ctx, "duplicate dataset skipped",
			logger.String("origin", origin),
			logger.String("fingerprint", report.Fingerprint))
		return report, nil
	}

	ds, pass, err := s.build(ctx, data)
	if err != nil {
		s.deduper.Unrecord(ctx, report.Fingerprint)
		return report, s.failLoad(ctx, origin, err)
	}
	ds.id = report.ID
	ds.origin = origin
	ds.fingerprint = report.Fingerprint
	ds.loadedAt = time.Now()

	s.activate(ctx, ds, pass)

	report.Records = len(ds.records)
	report.Points = len(ds.points)
	report.Resolved = pass.Jobs
	report.Fallbacks = pass.Sources[model.SourceFallback]
	report.Sources = pass.Sources
	report.Diagnostics = len(ds.diagnostics)
	report.Unmapped = ds.schema.Unmapped
	report.MissingYears = ds.schema.MissingYears
	report.DurationMS = time.Since(start).Milliseconds()

	metrics.RecordDatasetLoad(origin, "ok")
	s.journal.Add(msgLoaded)
	s.logger.Info(ctx, "dataset loaded",
		logger.String("origin", origin),
		logger.Int("records", report.Records),
		logger.Int("points", report.Points),
		logger.Int("resolved", report.Resolved),
		logger.Int("fallbacks", report.Fallbacks),
		logger.Int("diagnostics", report.Diagnostics),
		logger.Duration("took", time.Since(start)))
	return report, nil
}

// Boot loads the dataset file named by path. A failure is journaled and
// logged; the service keeps running with whatever dataset it had.
func (s *Service) Boot(ctx context.Context, path string) (LoadReport, error) {
	if _, err := s.current(); err != nil {
		return LoadReport{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return LoadReport{Origin: filepath.Base(path)}, s.failLoad(ctx, filepath.Base(path), err)
	}
	defer func() { _ = f.Close() }()
	return s.LoadCSV(ctx, f, filepath.Base(path))
}

func (s *Service) failLoad(ctx context.Context, origin string, err error) error {
	metrics.RecordDatasetLoad(origin, "error")
	metrics.RecordErrorByComponent("service", "dataset_load")
	s.journal.Error(fmt.Sprintf("Failed to load %s: %v", origin, err))
	s.logger.Warn(ctx, "dataset load failed", logger.String("origin", origin), logger.Error(err))
	return err
}

// build normalizes data and resolves every record that needs coordinates.
func (s *Service) build(ctx context.Context, data []byte) (*dataset, passStats, error) {
	res, err := s.normalizer.Read(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, passStats{}, err
	}
	if !res.Schema.OK() {
		return nil, passStats{}, fmt.Errorf("%w: headers %v", ErrNoCountryColumn, res.Schema.Headers)
	}

	pass, err := s.resolve(ctx, res.Records)
	if err != nil {
		return nil, pass, err
	}

	ds := newDataset(res.Records)
	ds.schema = res.Schema
	ds.diagnostics = res.Diagnostics
	return ds, pass, nil
}

// resolve runs one resolution pass over records: a fresh queue and pool,
// one job per record index, drained before returning. Each job writes only
// its own record.
func (s *Service) resolve(ctx context.Context, records []model.Record) (passStats, error) {
	start := time.Now()
	idxs := resolver.Partition(records)
	pass := passStats{
		Jobs:    len(idxs),
		Workers: s.workerCount,
		Sources: make(map[model.CoordSource]int),
	}
	if len(idxs) == 0 {
		return pass, nil
	}

	var mu sync.Mutex
	handler := worker.HandlerFunc(func(ctx context.Context, job worker.Job) error {
		src, err := s.resolver.Resolve(ctx, &records[job.Index])
		if err != nil {
			return err
		}
		mu.Lock()
		pass.Sources[src]++
		mu.Unlock()
		return nil
	})

	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	pool := worker.NewPool(s.workerCount, q, handler, worker.WithName("resolver"), worker.WithLogger(s.logger))
	pool.Start(ctx)
	metrics.UpdateResolutionPending(len(idxs))

	var putErr error
	for _, i := range idxs {
		if putErr = q.Put(ctx, queue.Job{Index: i, Country: records[i].Country}); putErr != nil {
			break
		}
	}
	_ = q.Close()
	waitErr := pool.Wait(ctx)
	metrics.UpdateResolutionPending(0)

	pass.Failed = pool.Stats().Failed
	pass.DurationMS = time.Since(start).Milliseconds()
	metrics.RecordResolutionDuration(float64(time.Since(start).Milliseconds()))

	if err := errors.Join(putErr, waitErr); err != nil {
		_ = pool.Shutdown(context.Background())
		return pass, fmt.Errorf("resolution interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return pass, fmt.Errorf("resolution interrupted: %w", err)
	}
	for _, i := range idxs {
		if records[i].NeedsResolution() {
			return pass, fmt.Errorf("resolution incomplete: %q", records[i].Country)
		}
	}
	return pass, nil
}

// activate swaps ds in, rebuilds the derived views for the current year,
// drops view selections the new dataset cannot satisfy and pushes a frame.
func (s *Service) activate(ctx context.Context, ds *dataset, pass passStats) {
	s.mu.Lock()
	s.data = ds
	s.lastPass = pass
	s.mu.Unlock()

	s.view.SetCatalog(ds)
	s.rebuild(ctx)

	st := s.view.State()
	if st.Region != model.AllRegions && !ds.HasRegion(st.Region) {
		s.update(ctx, viewstate.SetRegion(model.AllRegions))
	}
	if st.Selected != "" && !ds.HasCountry(st.Selected) {
		s.update(ctx, viewstate.ClearSelection())
	}

	metrics.UpdateRecordsTotal(len(ds.records))
	s.publish(ctx)
}

// update applies an internal reconciliation; failures are only logged.
func (s *Service) update(ctx context.Context, m viewstate.Mutation) {
	if _, err := s.view.Update(ctx, m); err != nil {
		s.logger.Warn(ctx, "view reconcile failed", logger.String("kind", string(m.Kind)), logger.Error(err))
	}
}

// rebuild recomputes the points and the ranking of the active dataset for
// the current year. Rebuilds are serialised and always read the year
// afresh, so the last one to finish matches the latest state.
func (s *Service) rebuild(ctx context.Context) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	year := s.view.State().Year
	s.mu.Lock()
	ds := s.data
	ds.points = points.Build(ds.records, year)
	ds.year = year
	s.mu.Unlock()

	start := time.Now()
	if err := s.ranking.Replace(ctx, year, rankItems(ds.records, year)); err != nil {
		s.logger.Warn(ctx, "ranking rebuild failed", logger.String("year", year), logger.Error(err))
	}
	metrics.RecordRankingRebuildDuration(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateRankingEntries(s.ranking.Count(ctx))
	metrics.UpdatePointsTotal(len(ds.points))
}

// rankItems lists every record with a country and a value for year.
func rankItems(records []model.Record, year string) []repository.Item {
	items := make([]repository.Item, 0, len(records))
	for i := range records {
		v := records[i].Value(year)
		key := records[i].Key()
		if !v.Valid || key == "" {
			continue
		}
		items = append(items, repository.Item{
			Key:     key,
			Country: records[i].Country,
			Region:  records[i].Region,
			Value:   v.Float,
		})
	}
	return items
}
