package pipeline

import (
	"bytes"
	"io"
	"testing"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecompressMultistream(t *testing.T) {
	body := gzipBytes(t, []byte("first\n"), []byte("second\n"))
	d, err := Decompress(nopCloser(body))
	require.NoError(t, err)
	defer d.Close()

	got, err := io.ReadAll(d)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(got))
	assert.False(t, d.Truncated())
	assert.Equal(t, int64(13), d.BytesOut())
}

func TestDecompressMissingTrailer(t *testing.T) {
	data := jsonl(1, 50)
	body := gzipBytes(t, data)
	body = body[:len(body)-8]

	d, err := Decompress(nopCloser(body))
	require.NoError(t, err)

	got, err := io.ReadAll(d)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.True(t, d.Truncated())
}

func TestDecompressTruncatedMidStream(t *testing.T) {
	data := jsonl(1, 5000)
	body := gzipBytes(t, data)
	body = body[:len(body)/2]

	d, err := Decompress(nopCloser(body))
	require.NoError(t, err)

	got, err := io.ReadAll(d)
	require.NoError(t, err)
	assert.True(t, d.Truncated())
	assert.True(t, bytes.HasPrefix(data, got), "decoded bytes must be a prefix of the original")
	assert.Less(t, len(got), len(data))
}

func TestDecompressInvalidBodies(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"Empty", nil},
		{"NotGzip", []byte("{\"code\":\"1\"}\n")},
		{"ShortHeader", []byte{0x1f, 0x8b, 0x08}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closed := false
			body := &closeTracker{Reader: bytes.NewReader(tt.body), closed: &closed}
			_, err := Decompress(body)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCorruptSource))
			assert.True(t, closed)
		})
	}
}

type closeTracker struct {
	io.Reader
	closed *bool
}

func (c *closeTracker) Close() error {
	*c.closed = true
	return nil
}
