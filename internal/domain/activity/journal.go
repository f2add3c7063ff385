// Package activity keeps the recent user-facing log lines shown in the
// renderer's log panel.
package activity

import (
	"sync"
	"time"
)

const defaultSize = 200

// Level classifies a journal entry.
type Level string

// Entry levels.
const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Entry is one log panel line.
type Entry struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
}

// Journal is a bounded ring buffer of entries. The oldest entry is
// overwritten once the buffer is full.
type Journal struct {
	mu    sync.RWMutex
	buf   []Entry
	next  int
	count int
	now   func() time.Time
}

// Option applies a configuration option to the Journal.
type Option func(*Journal)

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) {
		if now != nil {
			j.now = now
		}
	}
}

// New creates a journal holding at most size entries.
func New(size int, opts ...Option) *Journal {
	if size <= 0 {
		size = defaultSize
	}
	j := &Journal{buf: make([]Entry, size), now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Add appends an info entry.
func (j *Journal) Add(msg string) { j.Log(LevelInfo, msg) }

// Warn appends a warning entry.
func (j *Journal) Warn(msg string) { j.Log(LevelWarn, msg) }

// Error appends an error entry.
func (j *Journal) Error(msg string) { j.Log(LevelError, msg) }

// Log appends an entry at level.
func (j *Journal) Log(level Level, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.buf[j.next] = Entry{Time: j.now(), Level: level, Message: msg}
	j.next = (j.next + 1) % len(j.buf)
	if j.count < len(j.buf) {
		j.count++
	}
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (j *Journal) Recent(n int) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if n <= 0 || n > j.count {
		n = j.count
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		idx := (j.next - 1 - i + len(j.buf)) % len(j.buf)
		out[i] = j.buf[idx]
	}
	return out
}

// Len returns the number of stored entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.count
}

// Cap returns the journal capacity.
func (j *Journal) Cap() int { return len(j.buf) }
