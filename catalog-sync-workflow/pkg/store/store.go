// Package store holds behaviour shared by the store backends.
package store

import (
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
)

// Backend names accepted by [store] backend.
const (
	BackendRocksDB  = "rocksdb"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// CheckOffset rejects a ledger row that would move its source's cursor
// backwards. latest is the offset of the newest existing row, if any.
func CheckOffset(row types.ImportHistory, latest int64, found bool) error {
	if row.Source == "" {
		return errors.New(errors.ErrInvalidArgument, "history row without source")
	}
	if row.Offset < 0 || row.Quantity < 0 {
		return errors.Newf(errors.ErrInvalidArgument, "history row for %s has negative offset or quantity", row.Source)
	}
	if found && row.Offset < latest {
		return errors.Newf(errors.ErrInvalidArgument,
			"history row for %s moves offset backwards (%d < %d)", row.Source, row.Offset, latest)
	}
	return nil
}

// Page normalizes listing arguments: page defaults to 1 and limit to
// types.DefaultPageSize, capped at types.MaxPageSize. It returns the number of
// records to skip.
func Page(page, limit int) (skip, n int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = types.DefaultPageSize
	}
	if limit > types.MaxPageSize {
		limit = types.MaxPageSize
	}
	return (page - 1) * limit, limit
}

// Dedupe keeps the last record per code, preserving first-seen order.
func Dedupe(products []types.Product) []types.Product {
	idx := make(map[string]int, len(products))
	out := make([]types.Product, 0, len(products))
	for _, p := range products {
		if i, ok := idx[p.Code]; ok {
			out[i] = p
			continue
		}
		idx[p.Code] = len(out)
		out = append(out, p)
	}
	return out
}
