// =============================================================================
// pkg/stats/stats.go - Import Timing and Metrics
// =============================================================================
//
// This package tracks how long catalog files take to import and exports run
// counters to Prometheus:
//   - FileTimings keeps per-file durations and reports percentiles (p50, p90, p99)
//   - Metrics wraps the collectors served on /metrics
//
// =============================================================================

package stats

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// =============================================================================
// FileTimings - Per-File Duration Percentiles
// =============================================================================

// FileTimings collects the wall time of each processed file.
//
// THREAD SAFETY:
//
//	FileTimings is safe for concurrent use. The import loop adds samples while
//	the health handler reads summaries.
type FileTimings struct {
	mu      sync.Mutex
	samples []time.Duration
	limit   int
}

// NewFileTimings creates a collector that keeps at most limit recent samples.
// limit <= 0 keeps 1024.
func NewFileTimings(limit int) *FileTimings {
	if limit <= 0 {
		limit = 1024
	}
	return &FileTimings{samples: make([]time.Duration, 0, 64), limit: limit}
}

// Add records a sample, dropping the oldest one when the window is full.
func (ft *FileTimings) Add(d time.Duration) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if len(ft.samples) == ft.limit {
		copy(ft.samples, ft.samples[1:])
		ft.samples = ft.samples[:len(ft.samples)-1]
	}
	ft.samples = append(ft.samples, d)
}

func (ft *FileTimings) Count() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.samples)
}

// TimingSummary is a snapshot of the collected durations.
type TimingSummary struct {
	Count int           `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Avg   time.Duration `json:"avg"`
	P50   time.Duration `json:"p50"`
	P90   time.Duration `json:"p90"`
	P99   time.Duration `json:"p99"`
}

// Summary computes a TimingSummary. With no samples it returns the zero value.
func (ft *FileTimings) Summary() TimingSummary {
	ft.mu.Lock()
	sorted := make([]time.Duration, len(ft.samples))
	copy(sorted, ft.samples)
	ft.mu.Unlock()

	n := len(sorted)
	if n == 0 {
		return TimingSummary{}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return TimingSummary{
		Count: n,
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / time.Duration(n),
		P50:   percentile(sorted, 0.50),
		P90:   percentile(sorted, 0.90),
		P99:   percentile(sorted, 0.99),
	}
}

// percentile uses the nearest-rank method on a sorted slice; p is in (0, 1].
func percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(n)*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

func (s TimingSummary) String() string {
	if s.Count == 0 {
		return "files=0"
	}
	return fmt.Sprintf("files=%d min=%v max=%v avg=%v p50=%v p90=%v p99=%v",
		s.Count, s.Min, s.Max, s.Avg, s.P50, s.P90, s.P99)
}
