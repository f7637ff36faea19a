package rules

import (
	"slices"

	"pocketbook/internal/core"
)

// Assignment is the planned change for one transaction.
type Assignment struct {
	TransactionID string
	Outcome       Outcome
	CategoryID    string
	Subcategory   string
}

// Summary counts the outcomes of a batch run.
type Summary struct {
	Scanned     int      `json:"scanned"`
	Categorized int      `json:"categorized"`
	Ignored     int      `json:"ignored"`
	Unmatched   int      `json:"unmatched"`
	Unknown     []string `json:"unmatched_descriptions"` // unique, sorted
}

// Categorize plans the assignments for uncategorized transactions. Split,
// ignored and already categorized rows are passed over. Nothing is written:
// the caller persists the returned assignments.
func Categorize(txns []core.Transaction, table Table) ([]Assignment, Summary) {
	var (
		plan    []Assignment
		sum     Summary
		unknown = make(map[string]bool)
	)
	for _, t := range txns {
		if t.CategoryID != "" || t.IsSplit || t.Ignored {
			continue
		}
		sum.Scanned++
		res := table.Match(t.Description)
		switch res.Outcome {
		case Assign:
			sum.Categorized++
			plan = append(plan, Assignment{
				TransactionID: t.ID,
				Outcome:       Assign,
				CategoryID:    res.CategoryID,
				Subcategory:   res.Subcategory,
			})
		case Ignore:
			sum.Ignored++
			plan = append(plan, Assignment{TransactionID: t.ID, Outcome: Ignore})
		default:
			sum.Unmatched++
			unknown[t.Description] = true
		}
	}
	for d := range unknown {
		sum.Unknown = append(sum.Unknown, d)
	}
	slices.Sort(sum.Unknown)
	return plan, sum
}
