// =============================================================================
// pkg/pipeline/pipeline.go - Per-File Ingestion Pipeline
// =============================================================================
//
// A Pipeline composes the stages of one file:
//
//	body → Decompress → SkipReader(resume offset) → LineExtractor(cap) → Sanitizer
//
// Every stage is pull-based. Nothing is read from the network until the
// caller asks for the next record, and once the record cap is reached no
// further bytes are requested from upstream.
//
// The cap counts sanitized records only. Malformed lines are consumed and
// reported but never use up the cap, so a run of bad lines cannot hold a
// file's cursor in place.
//
// =============================================================================

package pipeline

import (
	"io"
	"math"
	"time"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
)

// Options configures a Pipeline.
type Options struct {
	// ResumeOffset is the number of decompressed bytes already committed
	ResumeOffset int64

	// MaxRecords caps the records returned per run (default types.DefaultMaxProducts)
	MaxRecords int

	// ChunkSize is the line extraction read size
	ChunkSize int

	// Now stamps imported_t on each record
	Now func() time.Time

	// OnMalformed receives each dropped line's error and offset
	OnMalformed func(err error, offset int64)
}

// Stats summarizes what a Pipeline consumed.
type Stats struct {
	Skipped      int64
	SkipShortBy  int64
	Lines        int
	Records      int
	Malformed    int
	Offset       int64
	CapReached   bool
	Truncated    bool
	Decompressed int64
}

// Pipeline yields sanitized records from one compressed file body.
type Pipeline struct {
	dec       *Decompressor
	skip      *SkipReader
	lines     *LineExtractor
	sanitizer *Sanitizer
	onBad     func(err error, offset int64)
	max       int
	records   int
	malformed int
	capped    bool
}

// Open composes the stages over body. On error body is closed.
func Open(body io.ReadCloser, opts Options) (*Pipeline, error) {
	dec, err := Decompress(body)
	if err != nil {
		return nil, err
	}

	if opts.MaxRecords <= 0 {
		opts.MaxRecords = types.DefaultMaxProducts
	}

	p := &Pipeline{
		dec:       dec,
		sanitizer: NewSanitizer(opts.Now),
		onBad:     opts.OnMalformed,
		max:       opts.MaxRecords,
	}
	p.skip = NewSkipReader(dec, opts.ResumeOffset)
	p.lines = NewLineExtractor(p.skip, LineOptions{
		MaxLines:   math.MaxInt,
		ChunkSize:  opts.ChunkSize,
		BaseOffset: opts.ResumeOffset,
		OnInvalid: func(raw []byte, offset int64) {
			p.malformed++
			p.reportMalformed(errors.Newf(errors.ErrMalformedRecord, "line of %d bytes is not valid UTF-8", len(raw)), offset)
		},
	})

	return p, nil
}

// Next returns the next record, or io.EOF when the file or the cap is
// exhausted. Malformed lines are reported through OnMalformed and skipped.
// Any other error comes from the body and ends the file.
func (p *Pipeline) Next() (Record, error) {
	for {
		if p.records >= p.max {
			p.capped = true
			return Record{}, io.EOF
		}

		line, err := p.lines.Next()
		if err != nil {
			return Record{}, err
		}

		rec, err := p.sanitizer.Sanitize(line)
		if err != nil {
			p.malformed++
			p.reportMalformed(err, line.Offset)
			continue
		}

		p.records++
		return rec, nil
	}
}

func (p *Pipeline) reportMalformed(err error, offset int64) {
	if p.onBad != nil {
		p.onBad(err, offset)
	}
}

// Stats returns counters for the records pulled so far.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Skipped:      p.skip.Skipped(),
		SkipShortBy:  p.skip.Remaining(),
		Lines:        p.lines.Emitted(),
		Records:      p.records,
		Malformed:    p.malformed,
		Offset:       p.lines.Offset(),
		CapReached:   p.capped,
		Truncated:    p.dec.Truncated(),
		Decompressed: p.dec.BytesOut(),
	}
}

// Close releases the decompressor and the body.
func (p *Pipeline) Close() error {
	return p.dec.Close()
}
