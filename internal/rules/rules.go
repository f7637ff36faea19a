// Package rules categorizes transactions by matching their descriptions
// against an ordered rule table. The first matching rule wins.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Outcome is the result kind of matching one description.
type Outcome int

const (
	NoMatch Outcome = iota
	Assign
	Ignore
)

func (o Outcome) String() string {
	switch o {
	case Assign:
		return "assign"
	case Ignore:
		return "ignore"
	default:
		return "no_match"
	}
}

// Definition is the serialized form of a rule, as found in rule files.
type Definition struct {
	Pattern     string `mapstructure:"pattern"`
	Category    string `mapstructure:"category"`
	Subcategory string `mapstructure:"subcategory"`
	Ignore      bool   `mapstructure:"ignore"`
}

// Rule maps a compiled pattern to a category or to ignore.
type Rule struct {
	Pattern     *regexp.Regexp
	CategoryID  string
	Subcategory string
	Ignore      bool
}

// Result describes which rule decided a description, if any.
type Result struct {
	Outcome     Outcome
	CategoryID  string
	Subcategory string
	Index       int // position of the deciding rule, -1 on NoMatch
	Pattern     string
}

// Table is an immutable ordered list of rules.
type Table struct {
	rules []Rule
}

var ErrNoRules = errors.New("rule table is empty")

// Compile builds a table from definitions, preserving their order. Patterns are
// compiled case-insensitive.
func Compile(defs []Definition) (Table, error) {
	if len(defs) == 0 {
		return Table{}, ErrNoRules
	}
	out := make([]Rule, 0, len(defs))
	for i, s := range defs {
		pattern := strings.TrimSpace(s.Pattern)
		if pattern == "" {
			return Table{}, fmt.Errorf("rule %d: empty pattern", i+1)
		}
		if s.Ignore && s.Category != "" {
			return Table{}, fmt.Errorf("rule %d (%s): ignore rules cannot carry a category", i+1, pattern)
		}
		if !s.Ignore && strings.TrimSpace(s.Category) == "" {
			return Table{}, fmt.Errorf("rule %d (%s): category or ignore is required", i+1, pattern)
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return Table{}, fmt.Errorf("rule %d: compile %q: %w", i+1, pattern, err)
		}
		out = append(out, Rule{
			Pattern:     re,
			CategoryID:  strings.TrimSpace(s.Category),
			Subcategory: strings.TrimSpace(s.Subcategory),
			Ignore:      s.Ignore,
		})
	}
	return Table{rules: out}, nil
}

// Len returns the number of rules.
func (t Table) Len() int {
	return len(t.rules)
}

// Rules returns a copy of the rules in evaluation order.
func (t Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Match evaluates the rules in order and returns the first hit.
func (t Table) Match(description string) Result {
	for i, r := range t.rules {
		if !r.Pattern.MatchString(description) {
			continue
		}
		res := Result{Index: i, Pattern: patternSource(r.Pattern)}
		if r.Ignore {
			res.Outcome = Ignore
			return res
		}
		res.Outcome = Assign
		res.CategoryID = r.CategoryID
		res.Subcategory = r.Subcategory
		return res
	}
	return Result{Outcome: NoMatch, Index: -1}
}

// CategoryIDs returns the distinct category ids the table can assign.
func (t Table) CategoryIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range t.rules {
		if r.Ignore || seen[r.CategoryID] {
			continue
		}
		seen[r.CategoryID] = true
		ids = append(ids, r.CategoryID)
	}
	return ids
}

func patternSource(re *regexp.Regexp) string {
	return strings.TrimPrefix(re.String(), "(?i)")
}
