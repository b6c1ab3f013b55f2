package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchApply(t *testing.T) {
	imported := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	base := Product{
		Code:        "3017620422003",
		Status:      StatusDraft,
		ImportedT:   imported,
		ProductName: "Nutella",
		Brands:      "Ferrero",
	}

	t.Run("UpdatesListedFields", func(t *testing.T) {
		patch := Patch{
			"product_name":     json.RawMessage(`"Nutella 400g"`),
			"status":           json.RawMessage(`"published"`),
			"serving_quantity": json.RawMessage(`15`),
		}
		got, err := patch.Apply(base)
		require.NoError(t, err)

		want := base
		want.ProductName = "Nutella 400g"
		want.Status = StatusPublished
		want.ServingQuantity = 15
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("patched product mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("EmptyPatchIsNoop", func(t *testing.T) {
		got, err := Patch{}.Apply(base)
		require.NoError(t, err)
		assert.Equal(t, base, got)
	})

	tests := []struct {
		name  string
		patch Patch
	}{
		{"ReadOnlyCode", Patch{"code": json.RawMessage(`"1"`)}},
		{"ReadOnlyImportedT", Patch{"imported_t": json.RawMessage(`"2020-01-01T00:00:00Z"`)}},
		{"UnknownField", Patch{"colour": json.RawMessage(`"red"`)}},
		{"WrongType", Patch{"created_t": json.RawMessage(`"yesterday"`)}},
		{"UnknownStatus", Patch{"status": json.RawMessage(`"archived"`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.patch.Apply(base)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
			assert.Equal(t, base, got)
		})
	}
}

func TestProductStatusValid(t *testing.T) {
	assert.True(t, StatusDraft.Valid())
	assert.True(t, StatusTrash.Valid())
	assert.True(t, StatusPublished.Valid())
	assert.False(t, ProductStatus("").Valid())
}
