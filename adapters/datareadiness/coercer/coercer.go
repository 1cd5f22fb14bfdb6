package coercer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// TypeCoercer converts raw cell text into the typed fields of a triangle row
type TypeCoercer struct {
	config CoercionConfig
}

// CoercionConfig defines the coercion rules
type CoercionConfig struct {
	// DecimalComma treats a lone comma as the decimal separator (1,5 -> 1.5).
	// When false a comma followed by exactly three digits is a thousands separator.
	DecimalComma bool `json:"decimal_comma"`
	// AllowCurrency strips currency symbols and codes before parsing
	AllowCurrency bool `json:"allow_currency"`
}

// DefaultCoercionConfig returns sensible defaults
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		DecimalComma:  false,
		AllowCurrency: true,
	}
}

// NewTypeCoercer creates a coercer with the given config
func NewTypeCoercer(config CoercionConfig) *TypeCoercer {
	return &TypeCoercer{config: config}
}

// ParseInteger parses a development age. Integral floats ("12.0", "1.2e1") are accepted;
// anything else, including fractional values, is rejected.
func (c *TypeCoercer) ParseInteger(strVal string) (int, bool) {
	cleanVal := strings.TrimSpace(strVal)
	if cleanVal == "" {
		return 0, false
	}
	if v, err := strconv.Atoi(cleanVal); err == nil {
		return v, true
	}

	f, err := strconv.ParseFloat(cleanVal, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// ParseNumeric attempts to parse a metric value.
// Handles parentheses for negatives, currency symbols and thousands separators.
func (c *TypeCoercer) ParseNumeric(strVal string) (float64, bool) {
	cleanVal := strings.TrimSpace(strVal)
	if cleanVal == "" {
		return 0, false
	}

	// (123) -> -123
	isNegative := false
	if strings.HasPrefix(cleanVal, "(") && strings.HasSuffix(cleanVal, ")") {
		cleanVal = strings.TrimSuffix(strings.TrimPrefix(cleanVal, "("), ")")
		isNegative = true
	}

	if c.config.AllowCurrency {
		for _, symbol := range []string{"$", "€", "£", "¥", "USD", "EUR", "GBP", "JPY"} {
			cleanVal = strings.ReplaceAll(cleanVal, symbol, "")
		}
		cleanVal = strings.TrimSpace(cleanVal)
	}

	cleanVal = c.normalizeSeparators(cleanVal)

	if isNegative {
		cleanVal = "-" + cleanVal
	}

	val, err := strconv.ParseFloat(cleanVal, 64)
	if err != nil || math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, false
	}
	return val, true
}

// normalizeSeparators rewrites grouping and decimal marks into Go float syntax
func (c *TypeCoercer) normalizeSeparators(val string) string {
	hasComma := strings.Contains(val, ",")
	hasPeriod := strings.Contains(val, ".")
	hasSpace := strings.Contains(val, " ")

	switch {
	case hasComma && (hasPeriod || hasSpace):
		// Whichever mark comes last is the decimal separator: 1.234,56 vs 1,234.56
		if strings.LastIndex(val, ",") > strings.LastIndex(val, ".") {
			val = strings.ReplaceAll(val, ".", "")
			val = strings.ReplaceAll(val, " ", "")
			return strings.ReplaceAll(val, ",", ".")
		}
		val = strings.ReplaceAll(val, " ", "")
		return strings.ReplaceAll(val, ",", "")
	case hasComma:
		if c.config.DecimalComma && strings.Count(val, ",") == 1 {
			return strings.ReplaceAll(val, ",", ".")
		}
		if groupedByThousands(val) {
			return strings.ReplaceAll(val, ",", "")
		}
		return strings.ReplaceAll(val, ",", ".")
	default:
		return strings.ReplaceAll(val, " ", "")
	}
}

// groupedByThousands reports whether every comma is followed by exactly three digits
func groupedByThousands(val string) bool {
	parts := strings.Split(val, ",")
	for _, part := range parts[1:] {
		if len(part) != 3 || strings.Trim(part, "0123456789") != "" {
			return false
		}
	}
	return true
}

// NormalizeLabel cleans a cohort label: trims, collapses whitespace and drops control characters.
// Case is preserved.
func (c *TypeCoercer) NormalizeLabel(s string) string {
	s = whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}

// NumericRatio returns the share of non-empty values that parse as numbers
func (c *TypeCoercer) NumericRatio(values []string) float64 {
	valid, numeric := 0, 0
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		valid++
		if _, ok := c.ParseNumeric(v); ok {
			numeric++
		}
	}
	if valid == 0 {
		return 0
	}
	return float64(numeric) / float64(valid)
}
