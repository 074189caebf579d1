package parse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel strings the sources use for "no data". Matched after trimming,
// case preserved as published.
var missingSentinels = map[string]bool{
	"n.d.": true,
	"N.D.": true,
	"N/E":  true,
	"-":    true,
	"N/A":  true,
	"":     true,
}

var numericRe = regexp.MustCompile(`[-+]?[0-9][0-9.,]*`)

// ParseNumber extracts the numeric value from an annotated cell such as
// "123,45 (A)". The second return is false when the cell holds one of the
// missing-data sentinels. Unrecognized content is a hard error.
func ParseNumber(raw string) (decimal.Decimal, bool, error) {
	s := strings.TrimSpace(raw)
	if missingSentinels[s] {
		return decimal.Zero, false, nil
	}

	num := numericRe.FindString(s)
	if num == "" {
		return decimal.Zero, false, &Error{Input: raw, Reason: "no numeric content"}
	}

	normalized := normalizeSeparators(num)
	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, false, &Error{Input: raw, Reason: "invalid number"}
	}
	return value, true, nil
}

// normalizeSeparators rewrites the mixed European/US separator conventions
// into plain dot-decimal:
//
//	"1.234,56" -> "1234.56"
//	"1,234.56" -> "1234.56"
//	"123,45"   -> "123.45"  (single comma is the decimal separator)
//	"1,234,567" -> "1234567" (repeated commas are thousands grouping)
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// comma is decimal, dots are thousands
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}
	return s
}
