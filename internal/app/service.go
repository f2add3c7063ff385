// Package service wires the speed globe pipeline together and implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/speedglobe/internal/adapters/cache"
	"github.com/okian/speedglobe/internal/adapters/geocode"
	repository "github.com/okian/speedglobe/internal/adapters/repository"
	"github.com/okian/speedglobe/internal/config"
	"github.com/okian/speedglobe/internal/domain/activity"
	"github.com/okian/speedglobe/internal/domain/dedupe"
	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/normalize"
	"github.com/okian/speedglobe/internal/domain/resolver"
	"github.com/okian/speedglobe/internal/domain/style"
	"github.com/okian/speedglobe/internal/domain/viewstate"
	"github.com/okian/speedglobe/pkg/logger"
)

// Publisher receives a fresh Frame after every dataset load and view change.
type Publisher interface {
	Publish(ctx context.Context, frame any) error
}

// Service implements the API dependencies for the speed globe.
type Service struct {
	mu sync.RWMutex

	// Core components
	cfg        *config.Config
	years      model.Years
	cache      cache.Store
	geocoders  []resolver.Geocoder
	resolver   *resolver.Resolver
	normalizer *normalize.Normalizer
	ranking    *repository.TreapStore
	deduper    dedupe.Deduper
	journal    *activity.Journal
	view       *viewstate.Controller
	styler     *style.Styler
	publisher  Publisher

	// Configuration
	sessionID   string
	workerCount int
	queueSize   int
	dedupeSize  int
	journalSize int
	maxUpload   int64
	jitter      resolver.Jitter

	// State
	data     *dataset
	lastPass passStats
	started  bool
	ownCache bool

	// loadMu serialises dataset loads.
	loadMu    sync.Mutex
	rebuildMu sync.Mutex

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration the service derives its defaults from.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithCache injects the session cache instead of opening the configured one.
func WithCache(c cache.Store) Option {
	return func(s *Service) { s.cache = c }
}

// WithGeocoders replaces the configured geocoder chain.
func WithGeocoders(gs ...resolver.Geocoder) Option {
	return func(s *Service) { s.geocoders = gs }
}

// WithPublisher sets where frames are pushed.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithJitter replaces the random source used for fallback placement.
func WithJitter(j resolver.Jitter) Option {
	return func(s *Service) { s.jitter = j }
}

// WithSessionID fixes the session identity; a random one is used otherwise.
func WithSessionID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.sessionID = id
		}
	}
}

// WithWorkerCount sets the number of resolution workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the resolution queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many dataset fingerprints are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithJournalSize sets the log panel capacity.
func WithJournalSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.journalSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service. Defaults come from config.New unless
// WithConfig is given; explicit options win over the config.
func New(opts ...Option) *Service {
	s := &Service{cfg: config.New()}
	for _, opt := range opts {
		opt(s)
	}
	if s.workerCount == 0 {
		s.workerCount = s.cfg.ResolverWorkers
	}
	if s.queueSize == 0 {
		s.queueSize = s.cfg.ResolverQueueSize
	}
	if s.dedupeSize == 0 {
		s.dedupeSize = s.cfg.DedupeSize
	}
	if s.journalSize == 0 {
		s.journalSize = s.cfg.JournalSize
	}
	if s.sessionID == "" {
		s.sessionID = uuid.NewString()
	}
	s.maxUpload = s.cfg.MaxUploadBytes
	s.years = model.Years(s.cfg.Years)
	return s
}

// Start initializes the service components. The cache and geocoders come
// from the configuration unless they were injected.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting speed globe service...", logger.String("session", s.sessionID))

	if s.cache == nil {
		store, err := cache.Open(ctx, s.cfg, s.sessionID)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		s.cache = store
		s.ownCache = true
	}
	if s.geocoders == nil {
		s.geocoders = geocode.FromConfig(s.cfg)
	}

	ropts := []resolver.Option{
		resolver.WithGeocoders(s.geocoders...),
		resolver.WithLogger(s.logger.Named("resolver")),
	}
	if s.jitter != nil {
		ropts = append(ropts, resolver.WithJitter(s.jitter))
	}
	s.resolver = resolver.New(s.cache, ropts...)
	s.normalizer = normalize.New(s.years)
	s.ranking = repository.NewTreapStore()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.journal = activity.New(s.journalSize)
	s.styler = style.New()

	view, err := viewstate.New(s.years,
		viewstate.WithInitialYear(s.cfg.DefaultYear),
		viewstate.WithTopN(s.cfg.DefaultTopN),
		viewstate.WithInterval(time.Duration(s.cfg.PlayIntervalMS)*time.Millisecond),
		viewstate.WithCatalog(newDataset(nil)),
		viewstate.WithLogger(s.logger.Named("view")),
	)
	if err != nil {
		if s.ownCache {
			_ = s.cache.Close()
		}
		return fmt.Errorf("view state: %w", err)
	}
	s.view = view
	s.view.Subscribe(s)

	s.data = newDataset(nil)
	s.data.year = view.State().Year

	s.started = true
	s.logger.Info(ctx, "speed globe service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("cache", s.cache.Backend()),
		logger.Int("geocoders", len(s.geocoders)),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	view := s.view
	s.mu.Unlock()

	s.logger.Info(context.Background(), "stopping speed globe service...")

	// The play ticker calls back into the service; close it outside mu.
	view.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownCache && s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing cache failed", logger.Error(err))
		}
	}
	s.logger.Info(context.Background(), "speed globe service stopped")
}

// SessionID identifies this process's cache session.
func (s *Service) SessionID() string { return s.sessionID }

// current returns the active dataset, or ErrNotStarted.
func (s *Service) current() (*dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.data, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"session":     s.sessionID,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		stats["cacheBackend"] = s.cache.Backend()
		stats["records"] = len(s.data.records)
		stats["points"] = len(s.data.points)
		stats["rankedCountries"] = s.ranking.Count(ctx)
		stats["rankingYear"] = s.ranking.Year()
		stats["fingerprints"] = s.deduper.Size()
		stats["journalLines"] = s.journal.Len()
		stats["lastResolution"] = s.lastPass
		if s.data.id != "" {
			stats["dataset"] = map[string]interface{}{
				"id":       s.data.id,
				"origin":   s.data.origin,
				"loadedAt": s.data.loadedAt,
			}
		}
		stats["state"] = s.view.State()
	}

	return stats
}
