// Package dedupe remembers which datasets were already loaded.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// defaultMaxSize bounds the remembered fingerprints.
const defaultMaxSize = 64

// Fingerprint returns the hex SHA-256 of a dataset's bytes.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Deduper records seen dataset fingerprints so an identical upload is not
// resolved twice.
type Deduper interface {
	// SeenAndRecord atomically checks if fp was seen and records it if not.
	// Returns true if fp was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, fp string) bool

	// Unrecord forgets fp, used when a recorded dataset then failed to load.
	Unrecord(ctx context.Context, fp string)

	Size() int
}

// node is one fingerprint in the recency list, newest at head.
type node struct {
	fp   string
	prev *node
	next *node
}

// inMemoryDeduper keeps at most maxSize fingerprints and evicts the oldest.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*node
	head    *node
	tail    *node
	maxSize int
}

// Option configures the deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds the remembered fingerprints; the oldest is forgotten
// first. Non-positive sizes remember every dataset.
func WithMaxSize(n int) Option {
	return func(d *inMemoryDeduper) { d.maxSize = n }
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*node)
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, fp string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[fp]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.unlink(d.tail)
	}

	n := &node{fp: fp, next: d.head}
	if d.head != nil {
		d.head.prev = n
	}
	d.head = n
	if d.tail == nil {
		d.tail = n
	}
	d.seen[fp] = n
	return false
}

// Unrecord implements Deduper.
func (d *inMemoryDeduper) Unrecord(ctx context.Context, fp string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.seen[fp]; ok {
		d.unlink(n)
	}
}

// unlink removes n from the list and the map. Caller holds d.mu.
func (d *inMemoryDeduper) unlink(n *node) {
	if n == nil {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		d.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		d.tail = n.prev
	}
	delete(d.seen, n.fp)
}

// Size returns the number of remembered fingerprints.
func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
