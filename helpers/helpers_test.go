package helpers

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigitsOnly(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0123456789", "0123456789"},
		{" 3017620422003 ", "3017620422003"},
		{"\"12-34\"", "1234"},
		{"abc", ""},
		{"", ""},
		{"٣٤12", "12"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DigitsOnly(tt.in))
		})
	}
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0 minutes 0 seconds", FormatUptime(0))
	assert.Equal(t, "0 minutes 59 seconds", FormatUptime(59*time.Second+900*time.Millisecond))
	assert.Equal(t, "125 minutes 3 seconds", FormatUptime(125*time.Minute+3*time.Second))
	assert.Equal(t, "0 minutes 0 seconds", FormatUptime(-time.Second))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "999", FormatNumber(999))
	assert.Equal(t, "1,000", FormatNumber(1000))
	assert.Equal(t, "-12,345,678", FormatNumber(-12345678))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", FormatDuration(0))
	assert.Equal(t, "12.5ms", FormatDuration(12500*time.Microsecond))
	assert.Equal(t, "45.67s", FormatDuration(45670*time.Millisecond))
	assert.Equal(t, "3m", FormatDuration(3*time.Minute))
	assert.Equal(t, "2h 30m 15s", FormatDuration(2*time.Hour+30*time.Minute+15*time.Second))
}

func TestUint64Bytes(t *testing.T) {
	b := Uint64ToBytes(1<<40 + 7)
	require.Len(t, b, 8)
	assert.Equal(t, uint64(1<<40+7), BytesToUint64(b))
	assert.Equal(t, uint64(0), BytesToUint64([]byte{1, 2}))
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	assert.True(t, FileExists(dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing")))
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "0/s", FormatRate(10, 0))
	assert.Equal(t, "50.00/s", FormatRate(100, 2*time.Second))
	assert.Equal(t, "5.00K/s", FormatRate(5000, time.Second))
	assert.Equal(t, "2.50M/s", FormatRate(5000000, 2*time.Second))
}
