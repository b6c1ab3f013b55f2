package pipeline

import (
	"bytes"
	"io"
	"strconv"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// chunkReader returns at most size bytes per Read and counts its reads.
type chunkReader struct {
	data  []byte
	size  int
	reads int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	c.reads++
	n := c.size
	if n > len(p) {
		n = len(p)
	}
	if n > len(c.data) {
		n = len(c.data)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func gzipBytes(t *testing.T, members ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, m := range members {
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write(m)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	}
	return buf.Bytes()
}

func nopCloser(b []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(b))
}

// jsonl builds n product lines with codes base, base+1, ...
func jsonl(base, n int) []byte {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		buf.WriteString(`{"code":"`)
		buf.WriteString(strconv.Itoa(base + i))
		buf.WriteString(`","product_name":"p`)
		buf.WriteString(strconv.Itoa(base + i))
		buf.WriteString("\"}\n")
	}
	return buf.Bytes()
}
