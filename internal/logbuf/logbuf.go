package logbuf

import (
	"log/slog"
	"sync"
	"time"
)

// Entry is one captured log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Filter narrows a Query. A zero Since means no time bound; a Limit <= 0
// returns every match.
type Filter struct {
	Since    time.Time
	MinLevel slog.Level
	Limit    int
}

// Buffer keeps the most recent log entries in a fixed-size ring so the
// HTTP API can expose them without touching the log sink.
type Buffer struct {
	mu   sync.Mutex
	ring []Entry
	next int
	full bool
}

// New returns a buffer holding up to capacity entries.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{ring: make([]Entry, capacity)}
}

// Write records an entry, overwriting the oldest once the ring is full.
func (b *Buffer) Write(e Entry) {
	b.mu.Lock()
	b.ring[b.next] = e
	b.next = (b.next + 1) % len(b.ring)
	if b.next == 0 {
		b.full = true
	}
	b.mu.Unlock()
}

// Query returns matching entries oldest-first. When Limit is set, the
// newest matches are kept.
func (b *Buffer) Query(f Filter) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	start, n := 0, b.next
	if b.full {
		start, n = b.next, len(b.ring)
	}

	var out []Entry
	for i := 0; i < n; i++ {
		e := b.ring[(start+i)%len(b.ring)]
		if !f.Since.IsZero() && e.Time.Before(f.Since) {
			continue
		}
		if levelOf(e.Level) < f.MinLevel {
			continue
		}
		out = append(out, e)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

func levelOf(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
