// Package storetest runs the same behavioural checks against every Store
// backend.
package storetest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The store is closed by the suite.
type Factory func(t *testing.T) interfaces.Store

var base = time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

// Run exercises the HistoryStore and CatalogStore contracts.
func Run(t *testing.T, newStore Factory) {
	t.Run("HistoryCursor", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		_, found, err := s.LastOffset(ctx, "products_01.json.gz")
		require.NoError(t, err)
		assert.False(t, found)
		_, found, err = s.Latest(ctx)
		require.NoError(t, err)
		assert.False(t, found)

		rows := []types.ImportHistory{
			{Source: "products_01.json.gz", Offset: 500, Quantity: 100, Date: base},
			{Source: "products_02.json.gz", Offset: 70, Quantity: 1, Date: base.Add(time.Minute)},
			{Source: "products_01.json.gz", Offset: 900, Quantity: 80, Date: base.Add(2 * time.Minute)},
		}
		for _, row := range rows {
			require.NoError(t, s.Save(ctx, row))
		}

		off, found, err := s.LastOffset(ctx, "products_01.json.gz")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(900), off)

		off, found, err = s.LastOffset(ctx, "products_02.json.gz")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(70), off)

		latest, found, err := s.Latest(ctx)
		require.NoError(t, err)
		assert.True(t, found)
		assertRow(t, rows[2], latest)

		hist, err := s.History(ctx, "products_01.json.gz")
		require.NoError(t, err)
		require.Len(t, hist, 2)
		assertRow(t, rows[0], hist[0])
		assertRow(t, rows[2], hist[1])

		hist, err = s.History(ctx, "products_09.json.gz")
		require.NoError(t, err)
		assert.Empty(t, hist)
	})

	t.Run("HistoryRejectsBackwardsOffset", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, types.ImportHistory{Source: "products_01.json.gz", Offset: 100, Quantity: 1, Date: base}))
		err := s.Save(ctx, types.ImportHistory{Source: "products_01.json.gz", Offset: 99, Quantity: 1, Date: base})
		assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

		// equal offsets are allowed
		require.NoError(t, s.Save(ctx, types.ImportHistory{Source: "products_01.json.gz", Offset: 100, Quantity: 0, Date: base}))
		off, _, err := s.LastOffset(ctx, "products_01.json.gz")
		require.NoError(t, err)
		assert.Equal(t, int64(100), off)
	})

	t.Run("CatalogUpsert", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.SaveMany(ctx, []types.Product{
			product("3", "c"), product("1", "a"), product("2", "b"), product("1", "a2"),
		}))
		require.NoError(t, s.SaveMany(ctx, nil))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		p, found, err := s.FindByCode(ctx, "1")
		require.NoError(t, err)
		require.True(t, found)
		assertProduct(t, product("1", "a2"), p)

		_, found, err = s.FindByCode(ctx, "404")
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, s.SaveMany(ctx, []types.Product{product("2", "b2")}))
		p, _, err = s.FindByCode(ctx, "2")
		require.NoError(t, err)
		assert.Equal(t, "b2", p.ProductName)
	})

	t.Run("CatalogPaging", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		var all []types.Product
		for _, code := range []string{"05", "01", "04", "02", "03"} {
			all = append(all, product(code, "p"+code))
		}
		require.NoError(t, s.SaveMany(ctx, all))

		page1, err := s.FindAll(ctx, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"01", "02"}, codes(page1))

		page3, err := s.FindAll(ctx, 3, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"05"}, codes(page3))

		page4, err := s.FindAll(ctx, 4, 2)
		require.NoError(t, err)
		assert.Empty(t, page4)

		defaults, err := s.FindAll(ctx, 0, 0)
		require.NoError(t, err)
		assert.Len(t, defaults, 5)
	})

	t.Run("CatalogUpdateAndTrash", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.SaveMany(ctx, []types.Product{product("7", "seven")}))

		updated, err := s.Update(ctx, "7", types.Patch{"product_name": json.RawMessage(`"Seven"`)})
		require.NoError(t, err)
		assert.Equal(t, "Seven", updated.ProductName)
		p, _, err := s.FindByCode(ctx, "7")
		require.NoError(t, err)
		assert.Equal(t, "Seven", p.ProductName)

		_, err = s.Update(ctx, "7", types.Patch{"code": json.RawMessage(`"8"`)})
		assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

		_, err = s.Update(ctx, "8", types.Patch{"product_name": json.RawMessage(`"x"`)})
		assert.True(t, errors.Is(err, errors.ErrNotFound))

		require.NoError(t, s.Trash(ctx, "7"))
		p, _, err = s.FindByCode(ctx, "7")
		require.NoError(t, err)
		assert.Equal(t, types.StatusTrash, p.Status)
		assert.True(t, errors.Is(s.Trash(ctx, "8"), errors.ErrNotFound))
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		assert.NoError(t, s.Ping(context.Background()))
		assert.NotEmpty(t, s.Name())
	})
}

func product(code, name string) types.Product {
	return types.Product{
		Code:        code,
		Status:      types.StatusDraft,
		ImportedT:   base,
		ProductName: name,
		Brands:      "brand",
		CreatedT:    1529059080,
	}
}

func codes(ps []types.Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Code
	}
	return out
}

func assertRow(t *testing.T, want, got types.ImportHistory) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("history row mismatch (-want +got):\n%s", diff)
	}
}

func assertProduct(t *testing.T, want, got types.Product) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("product mismatch (-want +got):\n%s", diff)
	}
}
