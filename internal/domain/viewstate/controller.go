package viewstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/speedglobe/internal/domain/model"
	"github.com/okian/speedglobe/internal/domain/points"
	"github.com/okian/speedglobe/pkg/logger"
	"github.com/okian/speedglobe/pkg/metrics"
)

const defaultInterval = 1200 * time.Millisecond

// Subscriber is told about every applied change. It runs on the goroutine
// that called Update and must not call Update itself.
type Subscriber interface {
	OnChange(ctx context.Context, c Change)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, c Change)

// OnChange calls f.
func (f SubscriberFunc) OnChange(ctx context.Context, c Change) { f(ctx, c) }

// Option configures a Controller.
type Option func(*Controller)

// WithInitialYear sets the starting year. It must be in the year set.
func WithInitialYear(year string) Option {
	return func(c *Controller) { c.state.Year = year }
}

// WithTopN sets the starting bar race size.
func WithTopN(n int) Option {
	return func(c *Controller) { c.state.TopN = points.ClampTopN(n) }
}

// WithInterval sets the play timer period.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithCatalog sets the dataset used to validate regions and selections.
func WithCatalog(cat Catalog) Option {
	return func(c *Controller) { c.catalog = cat }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller owns the State.
type Controller struct {
	years    model.Years
	interval time.Duration
	logger   logger.Logger

	// mu serialises Update, including subscriber notification, so
	// subscribers see changes in the order they were applied.
	mu          sync.Mutex
	subscribers []Subscriber
	catalog     Catalog
	closed      bool

	stateMu sync.RWMutex
	state   State

	// tickMu guards the play timer goroutine.
	tickMu   sync.Mutex
	tickStop chan struct{}
	tickDone chan struct{}
}

// New creates a Controller over years. The initial state is the last year,
// every region, no selection, paused, default bar race size.
func New(years model.Years, opts ...Option) (*Controller, error) {
	if len(years) == 0 {
		return nil, ErrNoYears
	}
	c := &Controller{
		years:    years,
		interval: defaultInterval,
		logger:   logger.Get().Named("viewstate"),
		state: State{
			Year:   years.Last(),
			Region: model.AllRegions,
			TopN:   points.DefaultTopN,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if !years.Contains(c.state.Year) {
		return nil, ErrUnknownYear
	}
	return c, nil
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Years returns the fixed year set.
func (c *Controller) Years() model.Years { return c.years }

// Subscribe registers s for every later change.
func (c *Controller) Subscribe(s Subscriber) {
	if s == nil {
		return
	}
	c.mu.Lock()
	c.subscribers = append(c.subscribers, s)
	c.mu.Unlock()
}

// SetCatalog swaps the validation dataset, typically after a new load.
// It does not change the state; callers reconcile through Update.
func (c *Controller) SetCatalog(cat Catalog) {
	c.mu.Lock()
	c.catalog = cat
	c.mu.Unlock()
}

// Update validates and applies m, then notifies every subscriber. A
// mutation that changes nothing returns an empty Change and notifies no one.
// The play timer's own advance cannot be requested from outside.
func (c *Controller) Update(ctx context.Context, m Mutation) (Change, error) {
	if m.Kind == kindTick {
		return Change{}, fmt.Errorf("%w: kind %q", ErrInvalidMutation, m.Kind)
	}
	return c.update(ctx, m)
}

func (c *Controller) update(ctx context.Context, m Mutation) (Change, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Change{}, ErrClosed
	}

	before := c.State()
	after, err := apply(before, m, c.years, c.catalog)
	if err != nil {
		c.mu.Unlock()
		c.logger.Debug(ctx, "mutation rejected", logger.String("kind", string(m.Kind)), logger.Error(err))
		return Change{}, err
	}

	change := Change{Before: before, After: after, Fields: diff(before, after)}
	if change.Empty() {
		c.mu.Unlock()
		return change, nil
	}

	c.stateMu.Lock()
	c.state = after
	c.stateMu.Unlock()

	for _, f := range change.Fields {
		metrics.RecordViewUpdate(string(f))
	}
	for _, s := range c.subscribers {
		s.OnChange(ctx, change)
	}
	c.mu.Unlock()

	if change.Has(FieldPlaying) {
		c.syncTicker()
	}
	return change, nil
}

// syncTicker starts or stops the play timer to match the current state.
// Reading the state here, rather than the change that triggered the call,
// keeps a Play racing a Pause from leaving the timer in the wrong mode.
func (c *Controller) syncTicker() {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	playing := c.State().Playing
	switch {
	case playing && c.tickStop == nil:
		c.tickStop = make(chan struct{})
		c.tickDone = make(chan struct{})
		go c.runTicker(c.tickStop, c.tickDone)
	case !playing && c.tickStop != nil:
		c.stopTickerLocked()
	}
}

func (c *Controller) stopTickerLocked() {
	if c.tickStop == nil {
		return
	}
	close(c.tickStop)
	<-c.tickDone
	c.tickStop = nil
	c.tickDone = nil
}

// runTicker advances the year until stop is closed. At most one tick is
// in flight: the next tick waits for the previous Update to return.
func (c *Controller) runTicker(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(c.interval)
	defer t.Stop()

	ctx := context.Background()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			select {
			case <-stop:
				return
			default:
			}
			if _, err := c.update(ctx, Mutation{Kind: kindTick}); err != nil {
				return
			}
		}
	}
}

// Close stops the play timer. Later updates return ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.tickMu.Lock()
	c.stopTickerLocked()
	c.tickMu.Unlock()
}
