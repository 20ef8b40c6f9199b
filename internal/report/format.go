package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	if len(s) > 3 {
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
		s = b.String()
	}
	if neg {
		return "-" + s
	}
	return s
}

// FormatCash formats an amount as "12,345.67".
func FormatCash(d decimal.Decimal) string {
	r := d.Round(2)
	whole := r.Truncate(0)
	cents := r.Sub(whole).Abs().Mul(decimal.NewFromInt(100)).IntPart()
	s := FormatInt(whole.IntPart())
	if r.IsNegative() && whole.IsZero() {
		s = "-" + s
	}
	return fmt.Sprintf("%s.%02d", s, cents)
}

// Change returns ret relative to capital as a fraction, 0 when capital is
// not positive.
func Change(ret, capital decimal.Decimal) float64 {
	if !capital.IsPositive() {
		return 0
	}
	f, _ := ret.Sub(capital).Div(capital).Float64()
	return f
}

// FormatChange formats a fractional change as "+X.X%" or "-X.X%", or "0.0%"
// if zero. Drops decimal for magnitudes >= 100% to keep width compact.
func FormatChange(c float64) string {
	pct := c * 100
	sign := "+"
	if pct < 0 {
		sign = "-"
		pct = -pct
	}
	switch {
	case pct == 0:
		return "0.0%"
	case pct >= 100:
		return fmt.Sprintf("%s%.0f%%", sign, pct)
	default:
		return fmt.Sprintf("%s%.1f%%", sign, pct)
	}
}

// padOrTrunc left-aligns s in a column of width runes.
func padOrTrunc(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}

// padLeft right-aligns s in a column of width runes.
func padLeft(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return strings.Repeat(" ", width-n) + s
}
