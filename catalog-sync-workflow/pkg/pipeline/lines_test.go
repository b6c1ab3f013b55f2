package pipeline

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainLines(t *testing.T, e *LineExtractor) []Line {
	t.Helper()
	var out []Line
	for {
		l, err := e.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, l)
	}
}

func TestLineExtractorOffsets(t *testing.T) {
	for _, chunk := range []int{1, 2, 3, 64} {
		e := NewLineExtractor(&chunkReader{data: []byte("ab\ncde\nf"), size: chunk}, LineOptions{MaxLines: 100})
		lines := drainLines(t, e)

		require.Len(t, lines, 2)
		assert.Equal(t, "ab", string(lines[0].Raw))
		assert.Equal(t, int64(3), lines[0].Offset)
		assert.Equal(t, 1, lines[0].Number)
		assert.Equal(t, "cde", string(lines[1].Raw))
		assert.Equal(t, int64(7), lines[1].Offset)
		assert.Equal(t, 2, lines[1].Number)

		// the unterminated "f" is neither emitted nor counted
		assert.Equal(t, int64(7), e.Offset())
		assert.Equal(t, 1, e.Pending())
		assert.False(t, e.CapReached())
	}
}

func TestLineExtractorByteOffsetsForMultibyte(t *testing.T) {
	// "é" is two bytes, "日本" six
	e := NewLineExtractor(&chunkReader{data: []byte("é\n日本\n"), size: 1}, LineOptions{})
	lines := drainLines(t, e)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(3), lines[0].Offset)
	assert.Equal(t, int64(10), lines[1].Offset)
	assert.Equal(t, "日本", string(lines[1].Raw))
}

func TestLineExtractorCapStopsUpstreamReads(t *testing.T) {
	src := &chunkReader{data: []byte("a\nb\nc\nd\ne\n"), size: 2}
	e := NewLineExtractor(src, LineOptions{MaxLines: 2, ChunkSize: 2})
	lines := drainLines(t, e)

	require.Len(t, lines, 2)
	assert.True(t, e.CapReached())
	assert.Equal(t, int64(4), e.Offset())
	assert.Equal(t, 2, src.reads)

	_, err := e.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 2, src.reads)
}

func TestLineExtractorBaseOffset(t *testing.T) {
	e := NewLineExtractor(&chunkReader{data: []byte("x\nyy\n"), size: 8}, LineOptions{BaseOffset: 1000})
	lines := drainLines(t, e)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(1002), lines[0].Offset)
	assert.Equal(t, int64(1005), lines[1].Offset)
}

func TestLineExtractorInvalidUTF8(t *testing.T) {
	var badOffsets []int64
	data := []byte("ok\n\xff\xfe\nfine\n")
	e := NewLineExtractor(&chunkReader{data: data, size: 3}, LineOptions{
		MaxLines: 2,
		OnInvalid: func(raw []byte, offset int64) {
			badOffsets = append(badOffsets, offset)
		},
	})
	lines := drainLines(t, e)

	require.Len(t, lines, 2)
	assert.Equal(t, "ok", string(lines[0].Raw))
	assert.Equal(t, "fine", string(lines[1].Raw))
	assert.Equal(t, int64(11), lines[1].Offset)
	assert.Equal(t, 2, lines[1].Number)
	assert.Equal(t, []int64{6}, badOffsets)
	assert.Equal(t, 1, e.Invalid())
}

func TestLineExtractorEmptyLines(t *testing.T) {
	e := NewLineExtractor(&chunkReader{data: []byte("\n\nx\n"), size: 4}, LineOptions{})
	lines := drainLines(t, e)
	require.Len(t, lines, 3)
	assert.Empty(t, lines[0].Raw)
	assert.Equal(t, int64(4), lines[2].Offset)
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestLineExtractorUpstreamError(t *testing.T) {
	e := NewLineExtractor(failingReader{err: io.ErrClosedPipe}, LineOptions{})
	_, err := e.Next()
	assert.Equal(t, io.ErrClosedPipe, err)
}
