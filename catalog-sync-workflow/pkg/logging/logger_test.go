package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 5, 6, 7, 8, 9, 10*int(time.Millisecond), time.UTC)
}

func TestDualLoggerScopes(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewWriterLogger(&out, &errOut)
	l.now = fixedClock

	l.Info("starting %d", 1)
	l.WithScope("IMPORT").WithScope("products_01.json.gz").Info("committed")
	l.WithScope("IMPORT").Error("manifest: %s", "503")
	l.Separator()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[2024-05-06 07:08:09.010] starting 1", lines[0])
	assert.Equal(t, "[2024-05-06 07:08:09.010] [IMPORT:products_01.json.gz] committed", lines[1])
	assert.Equal(t, "[2024-05-06 07:08:09.010] [IMPORT] ERROR: manifest: 503", lines[2])
	assert.Equal(t, SeparatorLine, lines[3])

	assert.Equal(t, "[2024-05-06 07:08:09.010] [IMPORT] ERROR: manifest: 503\n", errOut.String())
}

func TestDualLoggerSharedWriter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, &buf)
	l.Error("once")
	assert.Equal(t, 1, strings.Count(buf.String(), "ERROR: once"))
}

func TestDualLoggerFiles(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "sync.log")
	errPath := filepath.Join(dir, "sync.err")

	l, err := NewDualLogger(logPath, errPath)
	require.NoError(t, err)
	l.Info("hello")
	l.Error("boom")
	l.Close()
	l.Info("after close is discarded")

	logData, err := os.ReadFile(logPath)
	require.NoError(t, err)
	errData, err := os.ReadFile(errPath)
	require.NoError(t, err)

	assert.Contains(t, string(logData), "hello")
	assert.Contains(t, string(logData), "ERROR: boom")
	assert.NotContains(t, string(logData), "after close")
	assert.Contains(t, string(errData), "ERROR: boom")
	assert.NotContains(t, string(errData), "hello")
}

func TestNewDualLoggerBadPath(t *testing.T) {
	_, err := NewDualLogger(filepath.Join(t.TempDir(), "missing", "x.log"), "")
	assert.Error(t, err)
}
