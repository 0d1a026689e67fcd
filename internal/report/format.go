package report

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatMoney formats a dollar amount as "10,523.12". NaN and ±Inf are
// printed as-is.
func FormatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return FormatFloat(v)
	}
	cents := int64(math.Round(math.Abs(v) * 100))
	s := fmt.Sprintf("%s.%02d", FormatInt(int(cents/100)), cents%100)
	if v < 0 && cents != 0 {
		return "-" + s
	}
	return s
}

// FormatPrice formats a price value as X.XX, or "-" for zero.
func FormatPrice(p float64) string {
	if p == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", p)
}

// FormatFloat formats a statistic with up to four decimals. Undefined
// values print as "NaN", "+Inf" or "-Inf".
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	s := fmt.Sprintf("%.4f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		s = "0"
	}
	return s
}

// FormatPct formats a percentage as "+X.XX%" or "-X.XX%", or "" if zero.
func FormatPct(p float64) string {
	switch {
	case math.IsNaN(p):
		return "NaN"
	case p > 0:
		return fmt.Sprintf("+%.2f%%", p)
	case p < 0:
		return fmt.Sprintf("%.2f%%", p)
	}
	return ""
}

// FormatDays formats a duration in whole days, "NaN" when it is undefined
// (negative).
func FormatDays(d time.Duration) string {
	if d < 0 {
		return "NaN"
	}
	days := int(d / (24 * time.Hour))
	if days == 1 {
		return "1 day"
	}
	return FormatInt(days) + " days"
}

// FormatDate formats a bar timestamp as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}
