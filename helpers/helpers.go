package helpers

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// FormatBytes formats bytes into human-readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats a duration for log lines.
//
// Formatting rules:
//   - Sub-second: milliseconds with up to 3 decimals (e.g., "12.5ms")
//   - Seconds: up to 2 decimals (e.g., "45.67s")
//   - Minutes+: compound format (e.g., "3m 45.67s", "2h 30m 15s")
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "-" + FormatDuration(-d)
	}
	if d == 0 {
		return "0s"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return formatFloat(float64(d)/float64(time.Millisecond), 3) + "ms"
	}
	if d < time.Minute {
		return formatFloat(d.Seconds(), 2) + "s"
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		rest := (d - time.Duration(mins)*time.Minute).Seconds()
		if rest < 0.01 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ss", mins, formatFloat(rest, 2))
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", hours, mins, secs)
}

// FormatUptime renders a duration as "N minutes M seconds", the format the
// health endpoint reports process uptime in.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d minutes %d seconds", total/60, total%60)
}

// formatFloat formats a float with up to maxDecimals, trimming trailing zeros.
func formatFloat(value float64, maxDecimals int) string {
	s := strconv.FormatFloat(value, 'f', maxDecimals, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

// FormatNumber formats a number with commas for readability
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// FormatRate formats a rate (items per second) with appropriate units
func FormatRate(count int64, duration time.Duration) string {
	if duration.Seconds() <= 0 {
		return "0/s"
	}
	rate := float64(count) / duration.Seconds()
	if rate >= 1000000 {
		return fmt.Sprintf("%.2fM/s", rate/1000000)
	}
	if rate >= 1000 {
		return fmt.Sprintf("%.2fK/s", rate/1000)
	}
	return fmt.Sprintf("%.2f/s", rate)
}

// DigitsOnly returns s with every byte that is not an ASCII digit removed.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Uint64ToBytes converts uint64 to big-endian bytes
func Uint64ToBytes(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// BytesToUint64 converts big-endian bytes to uint64
func BytesToUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
