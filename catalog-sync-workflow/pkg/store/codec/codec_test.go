package codec

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestHistoryRoundTrip(t *testing.T) {
	rec := HistoryRecord{
		ImportHistory: types.ImportHistory{
			Source:   "products_01.json.gz",
			Offset:   1 << 33,
			Quantity: 100,
			Date:     time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC),
		},
		Seq: 42,
	}
	got, err := DecodeHistory(EncodeHistory(rec))
	require.NoError(t, err)
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeHistorySkipsUnknownFields(t *testing.T) {
	b := EncodeHistory(HistoryRecord{ImportHistory: types.ImportHistory{Source: "a", Offset: 7}})
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")

	got, err := DecodeHistory(b)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Source)
	assert.Equal(t, int64(7), got.Offset)
}

func TestDecodeHistoryRejectsTruncated(t *testing.T) {
	b := EncodeHistory(HistoryRecord{ImportHistory: types.ImportHistory{Source: "products_01.json.gz"}})
	_, err := DecodeHistory(b[:5])
	assert.Error(t, err)
}

func TestHistoryKeysOrder(t *testing.T) {
	a1 := HistoryKey("a", 1)
	a2 := HistoryKey("a", 256)
	ab := HistoryKey("ab", 0)

	assert.True(t, bytes.HasPrefix(a1, HistoryPrefix("a")))
	assert.False(t, bytes.HasPrefix(ab, HistoryPrefix("a")))
	assert.Negative(t, bytes.Compare(a1, a2))
	assert.Negative(t, bytes.Compare(a2, HistoryUpperBound("a")))
	assert.Negative(t, bytes.Compare(HistoryUpperBound("a"), ab))
}

func TestProductCodec(t *testing.T) {
	c, err := NewProductCodec()
	require.NoError(t, err)
	defer c.Close()

	p := types.Product{
		Code:            "3017620422003",
		Status:          types.StatusDraft,
		ImportedT:       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		ProductName:     "Nutella",
		IngredientsText: "sugar, palm oil, hazelnuts",
		ServingQuantity: 15,
		NutriscoreScore: 26,
	}
	b, err := c.Encode(p)
	require.NoError(t, err)

	got, err := c.Decode(b)
	require.NoError(t, err)
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("product mismatch (-want +got):\n%s", diff)
	}

	_, err = c.Decode([]byte("not zstd"))
	assert.Error(t, err)
}
