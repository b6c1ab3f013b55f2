package memstore

import (
	"context"
	"testing"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/store/storetest"
	"github.com/stretchr/testify/assert"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) interfaces.Store { return New() })
}

func TestClosedStore(t *testing.T) {
	s := New()
	s.Close()
	ctx := context.Background()

	assert.True(t, errors.Is(s.Ping(ctx), errors.ErrStoreUnavailable))
	assert.True(t, errors.Is(s.SaveMany(ctx, nil), errors.ErrStoreUnavailable))
	_, _, err := s.LastOffset(ctx, "x")
	assert.True(t, errors.Is(err, errors.ErrStoreUnavailable))
}
