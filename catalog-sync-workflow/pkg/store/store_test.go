package store

import (
	"testing"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestCheckOffset(t *testing.T) {
	row := types.ImportHistory{Source: "products_01.json.gz", Offset: 100}

	assert.NoError(t, CheckOffset(row, 0, false))
	assert.NoError(t, CheckOffset(row, 100, true))
	assert.NoError(t, CheckOffset(row, 99, true))
	assert.True(t, errors.Is(CheckOffset(row, 101, true), errors.ErrInvalidArgument))
	assert.True(t, errors.Is(CheckOffset(types.ImportHistory{}, 0, false), errors.ErrInvalidArgument))
	assert.True(t, errors.Is(CheckOffset(types.ImportHistory{Source: "x", Quantity: -1}, 0, false), errors.ErrInvalidArgument))
}

func TestPage(t *testing.T) {
	tests := []struct {
		page, limit int
		skip, n     int
	}{
		{0, 0, 0, 10},
		{1, 10, 0, 10},
		{3, 25, 50, 25},
		{-2, 5, 0, 5},
		{2, 5000, 1000, 1000},
	}
	for _, tt := range tests {
		skip, n := Page(tt.page, tt.limit)
		assert.Equal(t, tt.skip, skip)
		assert.Equal(t, tt.n, n)
	}
}

func TestDedupe(t *testing.T) {
	in := []types.Product{
		{Code: "1", ProductName: "a"},
		{Code: "2", ProductName: "b"},
		{Code: "1", ProductName: "c"},
	}
	got := Dedupe(in)
	assert.Equal(t, []types.Product{{Code: "1", ProductName: "c"}, {Code: "2", ProductName: "b"}}, got)
}
