// =============================================================================
// pkg/interfaces/interfaces.go - Core Interfaces
// =============================================================================
//
// This package defines the core interfaces used throughout catalog-sync-workflow.
// The import orchestrator, the HTTP layer and the scheduler only ever see these
// interfaces; concrete stores (RocksDB, Postgres, in-memory) are chosen in main.
//
// =============================================================================

package interfaces

import (
	"context"
	"io"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
)

// =============================================================================
// HistoryStore Interface
// =============================================================================

// HistoryStore is the append-only import ledger.
//
// The latest row per source is the resume cursor for that source. Rows are
// never updated or deleted.
type HistoryStore interface {
	// LastOffset returns the offset of the latest row for source.
	// found is false when the source was never imported.
	LastOffset(ctx context.Context, source string) (offset int64, found bool, err error)

	// Save appends a row. A row whose offset is below the latest offset for
	// the same source is rejected with ErrInvalidArgument.
	Save(ctx context.Context, row types.ImportHistory) error

	// Latest returns the most recently written row across all sources.
	Latest(ctx context.Context) (row types.ImportHistory, found bool, err error)

	// History returns every row for source, oldest first.
	History(ctx context.Context, source string) ([]types.ImportHistory, error)
}

// =============================================================================
// CatalogStore Interface
// =============================================================================

// CatalogStore holds catalog records keyed by code.
type CatalogStore interface {
	// SaveMany upserts records by code. A later record with the same code
	// replaces an earlier one, including within the same call.
	SaveMany(ctx context.Context, products []types.Product) error

	// FindAll returns one page of records ordered by code. page is 1-based.
	FindAll(ctx context.Context, page, limit int) ([]types.Product, error)

	// FindByCode returns the record with code. found is false when absent.
	FindByCode(ctx context.Context, code string) (p types.Product, found bool, err error)

	// Update applies patch to the record with code and returns the result.
	// Returns ErrNotFound when absent.
	Update(ctx context.Context, code string, patch types.Patch) (types.Product, error)

	// Trash sets the record's status to trash. Returns ErrNotFound when absent.
	Trash(ctx context.Context, code string) error

	// Count returns the number of records.
	Count(ctx context.Context) (int64, error)
}

// =============================================================================
// Store Interface
// =============================================================================

// Store is a backend that serves both the ledger and the catalog.
type Store interface {
	HistoryStore
	CatalogStore

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Name identifies the backend in logs and the health report.
	Name() string

	// Close releases all resources associated with the store.
	Close()
}

// =============================================================================
// Source Interface
// =============================================================================

// Source lists and opens the compressed catalog files.
type Source interface {
	// Manifest returns the raw manifest entries in manifest order.
	Manifest(ctx context.Context) ([]string, error)

	// Open returns the compressed body of the named file.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Describe returns a human-readable location for logs.
	Describe() string
}

// =============================================================================
// Emitter Interface
// =============================================================================

// Emitter delivers non-fatal import failures to observers.
// Emit must not block the caller beyond the subscriber calls.
type Emitter interface {
	Emit(e types.ImportError)
}

// =============================================================================
// Logger Interface
// =============================================================================

// Logger defines the interface for logging operations.
// Implementations write to log file and error file separately.
type Logger interface {
	// Info logs an informational message to the log file.
	Info(format string, args ...interface{})

	// Error logs an error message to the error file.
	Error(format string, args ...interface{})

	// Separator logs a visual separator line to the log file.
	Separator()

	// WithScope returns a logger that prefixes every message with scope.
	WithScope(scope string) Logger

	// Sync forces a flush of all log buffers to disk.
	Sync()

	// Close closes all log files.
	Close()
}
