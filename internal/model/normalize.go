package model

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

// NormalizeValue renders a candidate value to a canonical comparison form:
// NFKC-normalized, case-folded, inner whitespace collapsed. Agreement checks
// across sources (consensus, aggregation, validation) all use this form so
// "Acetone " and "acetone" compare equal.
func NormalizeValue(v any) string {
	if v == nil {
		return ""
	}
	s := fmt.Sprintf("%v", v)
	s = norm.NFKC.String(s)
	s = foldCaser.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeCAS strips everything but digits and hyphens from a CAS-like value
// and trims a leading "cas" label if present.
func NormalizeCAS(v any) string {
	s := NormalizeValue(v)
	s = strings.TrimPrefix(s, "cas")
	s = strings.TrimSpace(strings.TrimPrefix(s, "no:"))
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeCodeSet parses a set-valued statement field (H/P codes) from a
// string or string slice into a deduplicated, upper-cased code list,
// preserving first-seen order.
func NormalizeCodeSet(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		raw = t
	case []any:
		for _, e := range t {
			raw = append(raw, fmt.Sprintf("%v", e))
		}
	default:
		raw = strings.FieldsFunc(fmt.Sprintf("%v", t), func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\n'
		})
	}

	seen := make(map[string]bool, len(raw))
	var out []string
	for _, c := range raw {
		c = strings.ToUpper(strings.TrimSpace(c))
		c = strings.TrimSuffix(c, ".")
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
