// =============================================================================
// pkg/memory/memory.go - Process Memory Sampling
// =============================================================================
//
// This package samples process memory for the health report and the
// end-of-run summary:
//   - RSS (Resident Set Size) from getrusage
//   - Go heap totals from runtime.MemStats
//
// =============================================================================

package memory

import (
	"runtime"
	"time"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/karthikiyer56/product-catalog-sync/helpers"
	"golang.org/x/sys/unix"
)

// Snapshot captures memory statistics at a point in time. Field names follow
// the health report keys.
type Snapshot struct {
	Timestamp time.Time `json:"-"`

	// RSS is the peak resident set size in bytes.
	RSS int64 `json:"rss"`

	// HeapTotal is the heap memory obtained from the OS in bytes.
	HeapTotal uint64 `json:"heapTotal"`

	// HeapUsed is the allocated heap in bytes.
	HeapUsed uint64 `json:"heapUsed"`

	NumGC uint32 `json:"-"`
}

// Take captures the current memory statistics.
func Take() Snapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return Snapshot{
		Timestamp: time.Now(),
		RSS:       RSSBytes(),
		HeapTotal: ms.HeapSys,
		HeapUsed:  ms.HeapAlloc,
		NumGC:     ms.NumGC,
	}
}

// Log writes the snapshot to logger under label.
func (s Snapshot) Log(logger interfaces.Logger, label string) {
	logger.Info("%s memory: rss=%s heapTotal=%s heapUsed=%s gc=%d",
		label,
		helpers.FormatBytes(s.RSS),
		helpers.FormatBytes(int64(s.HeapTotal)),
		helpers.FormatBytes(int64(s.HeapUsed)),
		s.NumGC)
}

// RSSBytes returns the peak Resident Set Size in bytes.
//
// NOTE:
//
//	Getrusage reports Maxrss in kilobytes on Linux and in bytes on macOS.
//	When the call fails the Go runtime's Sys figure is returned instead.
func RSSBytes() int64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return int64(ms.Sys)
	}

	rss := int64(ru.Maxrss)
	if runtime.GOOS == "linux" {
		rss *= 1024
	}
	return rss
}
