package rules

import (
	"regexp"
	"strings"

	"pocketbook/internal/core"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	// Digit runs of three or more are treated as reference numbers.
	referenceRun = regexp.MustCompile(`\d{3,}`)
)

// NormalizeDescription uppercases, collapses whitespace and strips long digit
// runs so that two bank rows for the same payee compare equal.
func NormalizeDescription(desc string) string {
	s := strings.ToUpper(desc)
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = referenceRun.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SamePayee reports whether two descriptions normalize to the same text.
func SamePayee(a, b string) bool {
	na := NormalizeDescription(a)
	return na != "" && na == NormalizeDescription(b)
}

// MatchesPattern reports whether a user rule pattern applies to a
// description: after normalization either text contains the other.
func MatchesPattern(pattern, desc string) bool {
	p := NormalizeDescription(pattern)
	d := NormalizeDescription(desc)
	if p == "" || d == "" {
		return false
	}
	return strings.Contains(d, p) || strings.Contains(p, d)
}

// MatchUserRule returns the first rule in order whose pattern applies.
func MatchUserRule(userRules []core.CategoryRule, desc string) (core.CategoryRule, bool) {
	for _, r := range userRules {
		if MatchesPattern(r.MatchPattern, desc) {
			return r, true
		}
	}
	return core.CategoryRule{}, false
}
