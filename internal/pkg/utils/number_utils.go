package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	usdMinFractionDigits = 2
	usdMaxFractionDigits = 6
)

// ParseDecimal parses a user or API supplied number. Surrounding whitespace is ignored.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number %q: %w", raw, err)
	}
	return d, nil
}

// FormatUSD renders v as US dollars with thousands separators and
// between two and six fraction digits, e.g. "$1,234.50" or "$0.000123".
func FormatUSD(v decimal.Decimal) string {
	rounded := v.Round(usdMaxFractionDigits)
	s := rounded.Abs().StringFixed(usdMaxFractionDigits)

	intPart, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")
	for len(frac) < usdMinFractionDigits {
		frac += "0"
	}

	sign := ""
	if rounded.Sign() < 0 {
		sign = "-"
	}
	return sign + "$" + groupThousands(intPart) + "." + frac
}

// FormatUSDFloat is FormatUSD for float inputs such as market cap and volume.
func FormatUSDFloat(v float64) string {
	return FormatUSD(decimal.NewFromFloat(v))
}

// FormatPercent renders v with two decimals and a percent sign, e.g. "-3.25%".
func FormatPercent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

// PercentChange returns |(current-entry)/entry*100| with two decimals and whether
// the change is non-negative. A zero entry yields "0.00%".
func PercentChange(current, entry decimal.Decimal) (string, bool) {
	if entry.IsZero() {
		return "0.00%", true
	}
	pct := current.Sub(entry).Div(entry).Mul(decimal.NewFromInt(100))
	return pct.Abs().StringFixed(2) + "%", pct.Sign() >= 0
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
