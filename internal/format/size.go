package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Count renders n with thousands separators, e.g. 1,048,576.
func Count[T ~int | ~int64 | ~uint64 | ~uint32](n T) string {
	return printer.Sprintf("%d", n)
}

// Bytes renders a byte size with a binary unit: 256 B, 384 KiB, 1.5 MiB.
// Exact multiples print without a fraction.
func Bytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	suffix := "KMGTPE"[exp]
	if n%div == 0 {
		return fmt.Sprintf("%d %ciB", n/div, suffix)
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), suffix)
}

// Percent renders part/total as a percentage with one decimal.
func Percent(part, total uint64) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}

// ParseBytes parses a byte count with an optional binary suffix: 4096, 64K, 256KiB,
// 2M, 1G. Suffixes are case-insensitive.
func ParseBytes(s string) (uint64, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	t = strings.TrimSuffix(t, "B")
	t = strings.TrimSuffix(t, "I")

	shift := 0
	if n := len(t); n > 0 {
		switch t[n-1] {
		case 'K':
			shift = 10
		case 'M':
			shift = 20
		case 'G':
			shift = 30
		case 'T':
			shift = 40
		}
		if shift != 0 {
			t = t[:n-1]
		}
	}

	v, err := strconv.ParseUint(t, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if shift != 0 && v > math.MaxUint64>>shift {
		return 0, fmt.Errorf("size %q overflows", s)
	}
	return v << shift, nil
}
