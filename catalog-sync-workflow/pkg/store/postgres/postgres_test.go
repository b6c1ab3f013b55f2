package postgres

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/logging"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/store/storetest"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertStatement(t *testing.T) {
	assert.True(t, strings.HasPrefix(upsertProduct, "INSERT INTO products (code, status, imported_t,"))
	assert.Contains(t, upsertProduct, "$23)")
	assert.Contains(t, upsertProduct, "ON CONFLICT (code) DO UPDATE SET status = EXCLUDED.status")
	assert.NotContains(t, upsertProduct, "code = EXCLUDED.code")
	assert.Len(t, productArgs(types.Product{Code: "1"}), len(productColumns))
}

// TestStore runs against a scratch database named by PG_TEST_DSN.
func TestStore(t *testing.T) {
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) interfaces.Store {
		ctx := context.Background()
		s, err := Open(ctx, Options{DSN: dsn, MaxConns: 2}, logging.NewNopLogger())
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, `TRUNCATE import_history, products`)
		require.NoError(t, err)
		return s
	})
}
