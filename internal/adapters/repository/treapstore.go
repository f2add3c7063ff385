package repository

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/speedglobe/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: value DESC, then key ASC (deterministic).
// "less" means ranks earlier, so in-order traversal yields the
// ranking from best to worst.

// valueScale controls fixed-point scaling from float64.
const valueScale = 1_000_000

const defaultTopCacheSize = 50

type valueFP int64

func toFixedPoint(x float64) valueFP {
	if math.IsNaN(x) {
		return 0
	}
	scaled := x * valueScale
	if scaled >= float64(math.MaxInt64) {
		return valueFP(math.MaxInt64)
	}
	if scaled <= float64(math.MinInt64) {
		return valueFP(math.MinInt64)
	}
	return valueFP(math.Round(scaled))
}

func toFloat(x valueFP) float64 {
	return float64(x) / valueScale
}

// record stores the fixed-point value plus display fields for a country.
type record struct {
	value   valueFP
	country string
	region  string
}

// Snapshot is an immutable view published after every Replace.
type Snapshot struct {
	Year      string
	RankByKey map[string]int
	// TopCache holds the leading entries, best first.
	TopCache []Entry
}

// treap node
type node struct {
	key   string
	value valueFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aValue, aKey) should appear before (bValue, bKey).
func less(aValue valueFP, aKey string, bValue valueFP, bKey string) bool {
	if aValue != bValue {
		return aValue > bValue
	}
	return aKey < bKey
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, key string, value valueFP, prio uint64) *node {
	if n == nil {
		return &node{key: key, value: value, prio: prio, size: 1}
	}
	if less(value, key, n.value, n.key) {
		n.left = insert(n.left, key, value, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, key, value, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, key string, value valueFP) *node {
	if n == nil {
		return nil
	}
	if value == n.value && key == n.key {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, key, value)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, key, value)
		}
	} else if less(value, key, n.value, n.key) {
		n.left = deleteNode(n.left, key, value)
	} else {
		n.right = deleteNode(n.right, key, value)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, records map[string]record, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, records, out)
	if len(*out) < limit {
		if rec, ok := records[n.key]; ok {
			*out = append(*out, Entry{Key: n.key, Country: rec.country, Region: rec.region, Value: toFloat(rec.value)})
		}
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, records, out)
	}
}

// TreapStore is a Store ordered by value. Reads of rank are served from
// the latest snapshot; TopN walks the tree.
type TreapStore struct {
	mu           sync.RWMutex
	root         *node
	byKey        map[string]record
	year         string
	topCacheSize int

	snapshot atomic.Pointer[Snapshot]
}

// Option configures a TreapStore.
type Option func(*TreapStore)

// WithTopCacheSize sets how many leading entries each rebuilt snapshot
// materialises for TopN reads.
func WithTopCacheSize(n int) Option {
	return func(s *TreapStore) {
		if n > 0 {
			s.topCacheSize = n
		}
	}
}

// NewTreapStore constructs an empty treap store.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		topCacheSize: defaultTopCacheSize,
		byKey:        make(map[string]record),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot.Store(&Snapshot{RankByKey: map[string]int{}})
	return s
}

// Replace implements Store.Replace.
func (s *TreapStore) Replace(ctx context.Context, year string, items []Item) error {
	start := time.Now()

	s.mu.Lock()
	s.root = nil
	s.byKey = make(map[string]record, len(items))
	s.year = year
	for _, it := range items {
		if it.Key == "" {
			continue
		}
		s.put(it)
	}
	s.publishSnapshotLocked()
	count := len(s.byKey)
	s.mu.Unlock()

	metrics.RecordRankingRebuildDuration(float64(time.Since(start).Milliseconds()))
	metrics.UpdateRankingEntries(count)
	return nil
}

// put inserts or moves one entry; the caller holds the write lock.
// A repeated key in one batch keeps the last value.
func (s *TreapStore) put(it Item) {
	v := toFixedPoint(it.Value)
	if old, ok := s.byKey[it.Key]; ok {
		s.root = deleteNode(s.root, it.Key, old.value)
	}
	s.byKey[it.Key] = record{value: v, country: it.Country, region: it.Region}
	s.root = insert(s.root, it.Key, v, rand.Uint64())
}

// Rank returns the current rank and value for a country.
func (s *TreapStore) Rank(ctx context.Context, key string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if key == "" {
		return Entry{}, ErrInvalidKey
	}
	snap := s.snapshot.Load()
	rank, ok := snap.RankByKey[key]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}

	s.mu.RLock()
	rec, ok := s.byKey[key]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{Rank: rank, Key: key, Country: rec.country, Region: rec.region, Value: toFloat(rec.value)}, nil
}

// TopN returns the top N entries ordered by value desc.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	if snap := s.snapshot.Load(); n <= len(snap.TopCache) {
		out := make([]Entry, n)
		copy(out, snap.TopCache[:n])
		return out, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, min(n, len(s.byKey)))
	collectTopN(s.root, n, s.byKey, &out)
	assignRanksWithTies(out)
	return out, nil
}

// Count returns the number of ranked countries.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// Year returns the year of the last Replace.
func (s *TreapStore) Year() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.year
}

// publishSnapshotLocked rebuilds and publishes a new snapshot (assumes lock is held).
func (s *TreapStore) publishSnapshotLocked() {
	all := make([]Entry, 0, len(s.byKey))
	collectAll(s.root, s.byKey, &all)
	assignRanksWithTies(all)

	rankByKey := make(map[string]int, len(all))
	for _, e := range all {
		rankByKey[e.Key] = e.Rank
	}
	top := make([]Entry, min(s.topCacheSize, len(all)))
	copy(top, all)

	s.snapshot.Store(&Snapshot{Year: s.year, RankByKey: rankByKey, TopCache: top})
}

// collectAll appends all entries in rank order.
func collectAll(n *node, byKey map[string]record, out *[]Entry) {
	if n == nil {
		return
	}
	collectAll(n.left, byKey, out)
	if rec, ok := byKey[n.key]; ok {
		*out = append(*out, Entry{Key: n.key, Country: rec.country, Region: rec.region, Value: toFloat(rec.value)})
	}
	collectAll(n.right, byKey, out)
}

// assignRanksWithTies gives equal values the same rank; the next distinct
// value takes the next rank (dense ranking).
func assignRanksWithTies(entries []Entry) {
	if len(entries) == 0 {
		return
	}

	currentRank := 1
	for i := 0; i < len(entries); i++ {
		entries[i].Rank = currentRank

		sameValueCount := 1
		for j := i + 1; j < len(entries) && entries[j].Value == entries[i].Value; j++ {
			entries[j].Rank = currentRank
			sameValueCount++
		}

		currentRank++
		i += sameValueCount - 1
	}
}
