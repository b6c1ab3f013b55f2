package pipeline

import "io"

// SkipReader drops the first N bytes of its upstream and passes the rest
// through unchanged.
//
// The counter works per chunk: a chunk no longer than the remaining count is
// consumed whole, otherwise the suffix starting at the remaining count is
// emitted and the counter drops to zero. This is correct for any chunking of
// the upstream.
type SkipReader struct {
	r         io.Reader
	remaining int64
	skipped   int64
}

// NewSkipReader returns a reader that skips the first offset bytes of r.
// A non-positive offset passes everything through.
func NewSkipReader(r io.Reader, offset int64) *SkipReader {
	if offset < 0 {
		offset = 0
	}
	return &SkipReader{r: r, remaining: offset}
}

func (s *SkipReader) Read(p []byte) (int, error) {
	for {
		n, err := s.r.Read(p)
		if s.remaining > 0 && n > 0 {
			if s.remaining >= int64(n) {
				s.remaining -= int64(n)
				s.skipped += int64(n)
				n = 0
			} else {
				k := int(s.remaining)
				copy(p, p[k:n])
				n -= k
				s.skipped += int64(k)
				s.remaining = 0
			}
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
}

// Skipped returns how many bytes were dropped so far.
func (s *SkipReader) Skipped() int64 { return s.skipped }

// Remaining returns how many bytes are still to be dropped. A non-zero value
// at end of stream means the file is shorter than the resume offset.
func (s *SkipReader) Remaining() int64 { return s.remaining }
