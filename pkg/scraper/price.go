package scraper

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// first amount in the text: digits grouped in threes by spaces or apostrophes,
// or by dots and commas, with an optional fraction after which the amount ends
var amountRegex = regexp.MustCompile(
	`\d{1,3}(?:[\s\x{00a0}\x{202f}']\d{3}\b)+(?:[.,]\d+)?` +
		`|\d+(?:[.,]\d{3}\b)*(?:[.,]\d+)?`,
)

// ParsePrice turns a localized price string such as "£95.00", "1.299,50 €" or
// "R 1 299" into an amount. Currency symbols and surrounding words are ignored.
func ParsePrice(text string) (decimal.Decimal, error) {
	raw := amountRegex.FindString(text)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%q: %w", text, ErrUnparseablePrice)
	}

	// spaces and apostrophes only ever group thousands
	s := strings.Map(func(r rune) rune {
		if r == '\'' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)

	intPart, frac, err := splitDecimal(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q: %w", text, err)
	}

	num := intPart
	if frac != "" {
		num += "." + frac
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q: %v: %w", text, err, ErrUnparseablePrice)
	}
	return d, nil
}

func splitDecimal(s string) (string, string, error) {
	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')

	var intPart, frac string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// the right-most separator is the decimal one
		decIdx, group := lastDot, ","
		if lastComma > lastDot {
			decIdx, group = lastComma, "."
		}
		intPart = strings.ReplaceAll(s[:decIdx], group, "")
		frac = s[decIdx+1:]

	case lastDot >= 0 || lastComma >= 0:
		sep := "."
		idx := lastDot
		if lastComma >= 0 {
			sep, idx = ",", lastComma
		}
		head, tail := s[:idx], s[idx+1:]
		switch {
		case strings.Count(s, sep) > 1:
			intPart = strings.ReplaceAll(s, sep, "")
		case len(tail) == 3 && head != "0":
			intPart = head + tail
		default:
			intPart, frac = head, tail
		}

	default:
		intPart = s
	}

	if !allDigits(intPart) || (frac != "" && !allDigits(frac)) {
		return "", "", ErrUnparseablePrice
	}
	return intPart, frac, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
