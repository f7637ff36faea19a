package rules

import (
	"github.com/agnivade/levenshtein"

	"pocketbook/internal/core"
)

// Similar is an existing rule whose pattern is close to a candidate.
type Similar struct {
	Rule     core.CategoryRule
	Distance int
}

// SimilarPatterns returns the user rules whose normalized pattern is within
// maxDistance edits of pattern, excluding exact matches. Near duplicates
// usually mean the same payee was captured twice with different noise.
func SimilarPatterns(pattern string, existing []core.CategoryRule, maxDistance int) []Similar {
	p := NormalizeDescription(pattern)
	if p == "" {
		return nil
	}
	var out []Similar
	for _, r := range existing {
		q := NormalizeDescription(r.MatchPattern)
		if q == p {
			continue
		}
		if d := levenshtein.ComputeDistance(p, q); d <= maxDistance {
			out = append(out, Similar{Rule: r, Distance: d})
		}
	}
	return out
}
