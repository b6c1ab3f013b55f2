//go:build rocksdb

package rocksdb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/logging"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/store/storetest"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	settings := types.DefaultRocksDBSettings()
	settings.SyncWrites = false
	s, err := Open(path, settings, logging.NewNopLogger())
	require.NoError(t, err)
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) interfaces.Store {
		return openTestStore(t, t.TempDir())
	})
}

func TestStoreReopenKeepsCursor(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openTestStore(t, dir)
	row := types.ImportHistory{Source: "products_01.json.gz", Offset: 4096, Quantity: 100, Date: time.Now().UTC()}
	require.NoError(t, s.Save(ctx, row))
	require.NoError(t, s.SaveMany(ctx, []types.Product{{Code: "1", Status: types.StatusDraft}}))
	s.Close()
	s.Close()

	s = openTestStore(t, dir)
	defer s.Close()

	off, found, err := s.LastOffset(ctx, "products_01.json.gz")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(4096), off)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// sequence keeps increasing across reopen
	require.NoError(t, s.Save(ctx, types.ImportHistory{Source: "products_01.json.gz", Offset: 8192, Date: time.Now().UTC()}))
	hist, err := s.History(ctx, "products_01.json.gz")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, int64(8192), hist[1].Offset)
}

func TestStoreCompactAndStats(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	products := make([]types.Product, 0, 50)
	for i := 0; i < 50; i++ {
		products = append(products, types.Product{Code: fmt.Sprintf("%013d", i), Status: types.StatusDraft})
	}
	require.NoError(t, s.SaveMany(ctx, products))
	require.NoError(t, s.Save(ctx, types.ImportHistory{Source: "products_01.json.gz", Offset: 10, Date: time.Now().UTC()}))

	_, err := s.Compact()
	require.NoError(t, err)

	stats := s.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "history", stats[0].Name)
	assert.Equal(t, "products", stats[1].Name)
	assert.Greater(t, stats[1].TotalFiles, int64(0))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)

	s.Close()
	_, err = s.Compact()
	assert.Error(t, err)
	assert.Nil(t, s.Stats())
}
