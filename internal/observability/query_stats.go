// Package observability tracks what the session executes: per statement kind
// counts and latencies, the most accessed tables, and the matching
// Prometheus collectors.
package observability

import (
	"sort"
	"sync"
	"time"
)

// QueryStats tracks statement kinds and table access frequency.
type QueryStats struct {
	mu        sync.RWMutex
	kinds     map[string]*KindStats
	tableFreq map[string]*TableStats
	window    time.Duration
	metrics   *Metrics
}

// KindStats holds statistics for one statement kind (SELECT, INSERT, ...).
type KindStats struct {
	Kind          string        `json:"kind"`
	Count         int64         `json:"count"`
	Errors        int64         `json:"errors"`
	TotalDuration time.Duration `json:"total_duration"`
	MaxDuration   time.Duration `json:"max_duration"`
	LastSeen      time.Time     `json:"last_seen"`
}

// AvgDuration returns the mean duration per statement.
func (k KindStats) AvgDuration() time.Duration {
	if k.Count == 0 {
		return 0
	}
	return k.TotalDuration / time.Duration(k.Count)
}

// TableStats holds access statistics for a table.
type TableStats struct {
	Table     string           `json:"table"`
	Frequency int64            `json:"frequency"`
	LastSeen  time.Time        `json:"last_seen"`
	Kinds     map[string]int64 `json:"kinds"` // statement kind → count
}

// NewQueryStats creates a new statistics tracker.
// window: how long an idle table entry survives Prune (e.g., 1 hour)
// metrics: optional Prometheus collectors fed alongside, may be nil
func NewQueryStats(window time.Duration, metrics *Metrics) *QueryStats {
	return &QueryStats{
		kinds:     make(map[string]*KindStats),
		tableFreq: make(map[string]*TableStats),
		window:    window,
		metrics:   metrics,
	}
}

// RecordStatement records one executed statement. table may be empty for
// statements not tied to a table. This method is O(1) and thread-safe.
func (q *QueryStats) RecordStatement(kind, table string, d time.Duration, failed bool) {
	if kind == "" {
		kind = "OTHER"
	}
	now := time.Now()

	q.mu.Lock()
	ks, exists := q.kinds[kind]
	if !exists {
		ks = &KindStats{Kind: kind}
		q.kinds[kind] = ks
	}
	ks.Count++
	if failed {
		ks.Errors++
	}
	ks.TotalDuration += d
	if d > ks.MaxDuration {
		ks.MaxDuration = d
	}
	ks.LastSeen = now

	if table != "" {
		ts, exists := q.tableFreq[table]
		if !exists {
			ts = &TableStats{Table: table, Kinds: make(map[string]int64)}
			q.tableFreq[table] = ts
		}
		ts.Frequency++
		ts.LastSeen = now
		ts.Kinds[kind]++
	}
	q.mu.Unlock()

	q.metrics.observe(kind, d, failed)
}

// Kinds returns a copy of the per-kind stats sorted by count (descending).
func (q *QueryStats) Kinds() []KindStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]KindStats, 0, len(q.kinds))
	for _, k := range q.kinds {
		out = append(out, *k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// GetTopTables returns the top N tables by access frequency.
// Returns deep copies sorted by frequency (descending).
func (q *QueryStats) GetTopTables(n int) []TableStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if n <= 0 || len(q.tableFreq) == 0 {
		return []TableStats{}
	}

	stats := make([]TableStats, 0, len(q.tableFreq))
	for _, s := range q.tableFreq {
		cp := TableStats{
			Table:     s.Table,
			Frequency: s.Frequency,
			LastSeen:  s.LastSeen,
			Kinds:     make(map[string]int64, len(s.Kinds)),
		}
		for k, c := range s.Kinds {
			cp.Kinds[k] = c
		}
		stats = append(stats, cp)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Table < stats[j].Table
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune removes table entries where time.Since(LastSeen) > window.
// Kind totals are kept for the life of the session.
func (q *QueryStats) Prune() {
	q.mu.Lock()
	defer q.mu.Unlock()

	threshold := time.Now().Add(-q.window)
	for table, stats := range q.tableFreq {
		if stats.LastSeen.Before(threshold) {
			delete(q.tableFreq, table)
		}
	}
}

// ForgetTable drops the entry for a table that no longer exists.
func (q *QueryStats) ForgetTable(table string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.tableFreq, table)
}
