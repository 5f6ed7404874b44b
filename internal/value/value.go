// Package value converts heterogeneous catalog value representations
// ("1.5M", "30000", "12%") into exact decimal magnitudes for comparison
// and sorting. Parsing is total: malformed input degrades to zero, it
// never returns an error. Magnitudes use shopspring/decimal so that
// suffix scaling like "2.5M" stays exact.
package value

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// suffixTable maps magnitude suffixes to powers of ten. Two-letter
// suffixes come first so longest-match wins ("1QA" must not parse as a
// malformed single-letter form).
var suffixTable = []struct {
	label string
	exp   int32
}{
	{"QA", 15},
	{"QN", 18},
	{"SX", 21},
	{"SP", 24},
	{"K", 3},
	{"M", 6},
	{"B", 9},
	{"T", 12},
}

// numPrefix extracts the leading decimal run of a cleaned value string.
// Anchored extraction rather than full-string parsing: trailing garbage
// after the number is dropped silently.
var numPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)`)

// Magnitude parses a value representation into a decimal magnitude.
//
// Rules, in order:
//   - empty or whitespace-only input → 0
//   - a '%' anywhere: strip it and return the literal numeric prefix
//     ("12%" → 12, not 0.12)
//   - a recognized magnitude suffix (K/M/B/T, QA/QN/SX/SP), longest
//     match first: scale the numeric prefix by the suffix power
//   - otherwise the numeric prefix of the whole string
//
// Any failed numeric parse yields 0. Plain integers round-trip exactly.
func Magnitude(raw string) decimal.Decimal {
	s := clean(raw)
	if s == "" {
		return decimal.Zero
	}

	if strings.ContainsRune(s, '%') {
		return prefixDecimal(strings.ReplaceAll(s, "%", ""))
	}

	for _, sf := range suffixTable {
		if strings.HasSuffix(s, sf.label) {
			return prefixDecimal(strings.TrimSuffix(s, sf.label)).Shift(sf.exp)
		}
	}

	return prefixDecimal(s)
}

// Bound parses a filter bound. Unlike Magnitude it distinguishes "no
// bound" from zero: empty or unparseable input returns nil, meaning the
// range is unconstrained on that end.
func Bound(raw string) *decimal.Decimal {
	s := clean(raw)
	if s == "" {
		return nil
	}

	var d decimal.Decimal
	if strings.ContainsRune(s, '%') {
		s = strings.ReplaceAll(s, "%", "")
		if numPrefix.FindString(s) == "" {
			return nil
		}
		d = prefixDecimal(s)
		return &d
	}

	for _, sf := range suffixTable {
		if strings.HasSuffix(s, sf.label) {
			rest := strings.TrimSuffix(s, sf.label)
			if numPrefix.FindString(rest) == "" {
				return nil
			}
			d = prefixDecimal(rest).Shift(sf.exp)
			return &d
		}
	}

	if numPrefix.FindString(s) == "" {
		return nil
	}
	d = prefixDecimal(s)
	return &d
}

// FormatGrouped renders a magnitude with thousands separators for
// display totals ("1234567" → "1,234,567"). Fractional digits are kept
// as-is.
func FormatGrouped(d decimal.Decimal) string {
	s := d.String()

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
		if len(intPart) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(intPart); i += 3 {
		b.WriteString(intPart[i : i+3])
		if i+3 < len(intPart) {
			b.WriteByte(',')
		}
	}
	b.WriteString(fracPart)
	return b.String()
}

// clean trims, removes internal whitespace, and uppercases.
func clean(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}

func prefixDecimal(s string) decimal.Decimal {
	m := numPrefix.FindString(s)
	if m == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero
	}
	return d
}
