package memory

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTake(t *testing.T) {
	s := Take()
	assert.Greater(t, s.RSS, int64(0))
	assert.Greater(t, s.HeapTotal, uint64(0))
	assert.Greater(t, s.HeapUsed, uint64(0))
	assert.False(t, s.Timestamp.IsZero())

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Len(t, doc, 3)
	assert.Contains(t, doc, "rss")
	assert.Contains(t, doc, "heapTotal")
	assert.Contains(t, doc, "heapUsed")
}

func TestSnapshotLog(t *testing.T) {
	var out bytes.Buffer
	logger := logging.NewWriterLogger(&out, &out)
	Snapshot{RSS: 2048, HeapTotal: 1024, HeapUsed: 512}.Log(logger, "end of run")
	assert.Contains(t, out.String(), "end of run memory: rss=")
}
