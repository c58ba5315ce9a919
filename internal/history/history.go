// Package history keeps the list of statements run through the query editor.
package history

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit is how many entries Recent returns when asked for none.
const DefaultLimit = 50

// Entry is one executed statement.
type Entry struct {
	ID           string        `json:"id"`
	SQL          string        `json:"sql"`
	At           time.Time     `json:"at"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
	RowsAffected int64         `json:"rows_affected"`
	RowsReturned int           `json:"rows_returned"`
}

// History is an append-only statement log.
type History struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
}

// New creates a history retaining at most max entries; max <= 0 keeps everything.
func New(max int) *History {
	return &History{max: max}
}

// Add appends e, assigning an ID and timestamp when missing, and returns
// the stored entry.
func (h *History) Add(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	if h.max > 0 && len(h.entries) > h.max {
		h.entries = append([]Entry(nil), h.entries[len(h.entries)-h.max:]...)
	}
	return e
}

// Recent returns up to n entries, newest first.
func (h *History) Recent(n int) []Entry {
	if n <= 0 {
		n = DefaultLimit
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]Entry, 0, n)
	for i := len(h.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.entries[i])
	}
	return out
}

// Get returns the entry with id.
func (h *History) Get(id string) (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range h.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Preview collapses whitespace in sql and cuts it to max runes, adding "..."
// when truncated.
func Preview(sql string, max int) string {
	flat := strings.Join(strings.Fields(sql), " ")
	r := []rune(flat)
	if max <= 0 || len(r) <= max {
		return flat
	}
	return string(r[:max]) + "..."
}
