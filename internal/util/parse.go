package util

import (
	"regexp"
	"strconv"
	"strings"
)

var leadingNumberRegex = regexp.MustCompile(`^\s*[-+]?(\d+(\.\d+)?|\.\d+)`)

// ParseLeadingNumber parses the number at the start of s ("25% off" -> 25).
// ok is false when s does not start with a number.
func ParseLeadingNumber(s string) (n float64, ok bool) {
	m := leadingNumberRegex.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(m), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParsePrice extracts a price from text such as "$1,299.00" or "CA$ 89".
func ParsePrice(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return 0, false
	}
	p, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return p, true
}
