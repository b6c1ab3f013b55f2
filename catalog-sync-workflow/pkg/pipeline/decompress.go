// =============================================================================
// pkg/pipeline/decompress.go - Decompression Stage
// =============================================================================
//
// The first stage of a file pipeline. Upstream files are gzip members written
// back to back, and the download may be cut short; a truncated stream ends
// the data cleanly instead of failing the file.
//
// =============================================================================

package pipeline

import (
	"bufio"
	"io"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/klauspost/compress/gzip"
)

// Decompressor is an io.ReadCloser over the decompressed bytes of a body.
type Decompressor struct {
	zr        *gzip.Reader
	body      io.Closer
	truncated bool
	bytesOut  int64
}

// Decompress wraps body in a multistream gzip reader. Only a missing or
// invalid gzip header is an error here; later truncation is reported by
// Truncated once the stream is drained.
func Decompress(body io.ReadCloser) (*Decompressor, error) {
	zr, err := gzip.NewReader(bufio.NewReaderSize(body, 64*1024))
	if err != nil {
		body.Close()
		if err == io.EOF {
			return nil, errors.New(errors.ErrCorruptSource, "empty body")
		}
		return nil, errors.WithCode(err, errors.ErrCorruptSource, "reading gzip header")
	}
	zr.Multistream(true)

	return &Decompressor{zr: zr, body: body}, nil
}

// Read implements io.Reader. io.ErrUnexpectedEOF from the gzip layer is
// returned as io.EOF after the bytes decoded before it.
func (d *Decompressor) Read(p []byte) (int, error) {
	n, err := d.zr.Read(p)
	d.bytesOut += int64(n)
	if err == io.ErrUnexpectedEOF {
		d.truncated = true
		err = io.EOF
	}
	return n, err
}

// Truncated reports whether the compressed stream ended early.
func (d *Decompressor) Truncated() bool { return d.truncated }

// BytesOut returns the number of decompressed bytes produced so far.
func (d *Decompressor) BytesOut() int64 { return d.bytesOut }

// Close releases the gzip reader and closes the underlying body.
func (d *Decompressor) Close() error {
	zerr := d.zr.Close()
	berr := d.body.Close()
	if zerr != nil {
		return zerr
	}
	return berr
}
