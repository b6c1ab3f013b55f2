package pipeline

import (
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
)

// Line is one newline-terminated span of the decompressed file.
type Line struct {
	// Raw is the line without its terminating newline
	Raw []byte

	// Offset is the absolute byte position just after the newline
	Offset int64

	// Number is the 1-based index of the line among those emitted this run
	Number int
}

// LineOptions configures a LineExtractor.
type LineOptions struct {
	// MaxLines caps the lines emitted per run (default types.DefaultMaxProducts)
	MaxLines int

	// ChunkSize is the upstream read size (default types.DefaultChunkSize)
	ChunkSize int

	// BaseOffset seeds the running offset, normally the file's resume offset
	BaseOffset int64

	// OnInvalid is called for lines that are not valid UTF-8. Such lines
	// advance the offset but are not emitted and do not count toward MaxLines.
	OnInvalid func(raw []byte, offset int64)
}

// LineExtractor splits its upstream into lines, pulling one chunk at a time
// and only when the buffered data holds no complete line.
type LineExtractor struct {
	r         io.Reader
	chunk     []byte
	buf       []byte
	max       int
	emitted   int
	invalid   int
	offset    int64
	eof       bool
	capped    bool
	onInvalid func(raw []byte, offset int64)
}

// NewLineExtractor creates a LineExtractor over r.
func NewLineExtractor(r io.Reader, opts LineOptions) *LineExtractor {
	if opts.MaxLines <= 0 {
		opts.MaxLines = types.DefaultMaxProducts
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = types.DefaultChunkSize
	}
	return &LineExtractor{
		r:         r,
		chunk:     make([]byte, opts.ChunkSize),
		max:       opts.MaxLines,
		offset:    opts.BaseOffset,
		onInvalid: opts.OnInvalid,
	}
}

// Next returns the next line. It returns io.EOF once MaxLines lines were
// emitted or the upstream is exhausted. A trailing fragment without a newline
// is never returned and never counted.
func (e *LineExtractor) Next() (Line, error) {
	for {
		if e.emitted >= e.max {
			e.capped = true
			return Line{}, io.EOF
		}

		if i := bytes.IndexByte(e.buf, '\n'); i >= 0 {
			raw := make([]byte, i)
			copy(raw, e.buf[:i])
			e.buf = e.buf[i+1:]
			e.offset += int64(i) + 1

			if !utf8.Valid(raw) {
				e.invalid++
				if e.onInvalid != nil {
					e.onInvalid(raw, e.offset)
				}
				continue
			}

			e.emitted++
			return Line{Raw: raw, Offset: e.offset, Number: e.emitted}, nil
		}

		if e.eof {
			return Line{}, io.EOF
		}

		n, err := e.r.Read(e.chunk)
		e.buf = append(e.buf, e.chunk[:n]...)
		if err == io.EOF {
			e.eof = true
		} else if err != nil {
			return Line{}, err
		}
	}
}

// Offset returns the running offset after the last consumed line.
func (e *LineExtractor) Offset() int64 { return e.offset }

// Emitted returns how many lines were returned.
func (e *LineExtractor) Emitted() int { return e.emitted }

// Invalid returns how many lines were dropped as invalid UTF-8.
func (e *LineExtractor) Invalid() int { return e.invalid }

// CapReached reports whether extraction stopped because of MaxLines.
func (e *LineExtractor) CapReached() bool { return e.capped }

// Pending returns the number of buffered bytes not yet part of a line.
func (e *LineExtractor) Pending() int { return len(e.buf) }
