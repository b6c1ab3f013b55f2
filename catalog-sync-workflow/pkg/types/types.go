// =============================================================================
// pkg/types/types.go - Core Data Types
// =============================================================================
//
// This package contains pure data types used throughout catalog-sync-workflow.
// These types have no external dependencies beyond the standard library.
//
// =============================================================================

package types

import (
	"time"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MB is megabytes in bytes
	MB = 1024 * 1024

	// GB is gigabytes in bytes
	GB = 1024 * 1024 * 1024

	// DefaultMaxProducts is the per-run cap on records extracted per file.
	// Overridden by MAX_PRODUCTS_EXTRACT.
	DefaultMaxProducts = 100

	// DefaultFileNameLength is the exact length a manifest entry must have
	// to be processed, e.g. "products_01.json.gz".
	DefaultFileNameLength = 19

	// DefaultChunkSize is the read size used by the line extraction stage.
	DefaultChunkSize = 32 * 1024

	// DefaultPageSize is the page size of catalog listings.
	DefaultPageSize = 10

	// MaxPageSize bounds the limit a caller can request on catalog listings.
	MaxPageSize = 1000
)

// =============================================================================
// Product Status
// =============================================================================

// ProductStatus is the lifecycle state of a catalog record.
//
// Records enter the catalog as draft. Soft deletion moves them to trash.
type ProductStatus string

const (
	StatusDraft     ProductStatus = "draft"
	StatusTrash     ProductStatus = "trash"
	StatusPublished ProductStatus = "published"
)

// Valid reports whether s is one of the known statuses.
func (s ProductStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusTrash, StatusPublished:
		return true
	}
	return false
}

// =============================================================================
// Product - Catalog Record
// =============================================================================

// Product is a catalog record projected from one upstream line.
//
// Code is the primary key and contains only ASCII digits. ImportedT and
// Status are assigned by the pipeline, never taken from upstream.
type Product struct {
	Code            string        `json:"code"`
	Status          ProductStatus `json:"status"`
	ImportedT       time.Time     `json:"imported_t"`
	URL             string        `json:"url"`
	Creator         string        `json:"creator"`
	CreatedT        int64         `json:"created_t"`
	LastModifiedT   int64         `json:"last_modified_t"`
	ProductName     string        `json:"product_name"`
	Quantity        string        `json:"quantity"`
	Brands          string        `json:"brands"`
	Categories      string        `json:"categories"`
	Labels          string        `json:"labels"`
	Cities          string        `json:"cities"`
	PurchasePlaces  string        `json:"purchase_places"`
	Stores          string        `json:"stores"`
	IngredientsText string        `json:"ingredients_text"`
	Traces          string        `json:"traces"`
	ServingSize     string        `json:"serving_size"`
	ServingQuantity float64       `json:"serving_quantity"`
	NutriscoreScore int64         `json:"nutriscore_score"`
	NutriscoreGrade string        `json:"nutriscore_grade"`
	MainCategory    string        `json:"main_category"`
	ImageURL        string        `json:"image_url"`
}

// =============================================================================
// ImportHistory - Ingestion Cursor Ledger Row
// =============================================================================

// ImportHistory is one row of the append-only import ledger.
//
// The latest row for a Source is the authoritative resume cursor: Offset is
// the number of decompressed bytes of that file already consumed.
type ImportHistory struct {
	// Source is the manifest file name
	Source string `json:"source"`

	// Offset is the absolute byte cursor after the last committed line
	Offset int64 `json:"offset"`

	// Quantity is the number of records committed by this run
	Quantity int `json:"quantity"`

	// Date is when the row was written
	Date time.Time `json:"date"`
}

// =============================================================================
// ImportError - Non-Fatal Ingestion Event
// =============================================================================

// ImportError describes one non-fatal failure during a run. It is delivered
// to event subscribers and never stops the run.
type ImportError struct {
	// Err is the underlying coded error
	Err error

	// Source is the manifest file being processed, empty for manifest failures
	Source string

	// Offset is the running byte offset at which the failure was observed
	Offset int64

	// At is when the failure was observed
	At time.Time
}

// =============================================================================
// RocksDB Settings
// =============================================================================

// RocksDBSettings holds the tunables of the embedded store.
type RocksDBSettings struct {
	// WriteBufferSizeMB is the size of each memtable
	WriteBufferSizeMB int `toml:"write_buffer_size_mb"`

	// MaxWriteBufferNumber is the max memtables per column family
	MaxWriteBufferNumber int `toml:"max_write_buffer_number"`

	// BlockCacheSizeMB is the shared LRU block cache (0 disables it)
	BlockCacheSizeMB int `toml:"block_cache_mb"`

	// BloomFilterBitsPerKey enables bloom filters on the products CF
	BloomFilterBitsPerKey int `toml:"bloom_filter_bits_per_key"`

	// MaxOpenFiles limits open SST files
	MaxOpenFiles int `toml:"max_open_files"`

	// SyncWrites forces an fsync of the WAL on every commit
	SyncWrites bool `toml:"sync_writes"`
}

// DefaultRocksDBSettings returns settings sized for a small catalog.
func DefaultRocksDBSettings() RocksDBSettings {
	return RocksDBSettings{
		WriteBufferSizeMB:     32,
		MaxWriteBufferNumber:  2,
		BlockCacheSizeMB:      64,
		BloomFilterBitsPerKey: 10,
		MaxOpenFiles:          256,
		SyncWrites:            true,
	}
}
