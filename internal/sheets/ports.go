// Package sheets exports monthly rollups to spreadsheets.
package sheets

import (
	"context"

	"pocketbook/internal/budget"
	"pocketbook/internal/core"
)

// RollupWriter replaces the contents of the tab holding r's month.
type RollupWriter interface {
	WriteRollup(ctx context.Context, r budget.Rollup) (ref string, err error)
}

// Header is the column header of the category table.
var Header = []any{"Group", "Category", "Assigned", "Activity", "Available"}

// RollupRows lays a rollup out as sheet rows: a title, the category table
// grouped with a total row per group, then the summary figures.
func RollupRows(r budget.Rollup) [][]any {
	rows := [][]any{
		{"Budget", r.Month.String()},
		{},
		Header,
	}
	for _, g := range r.Groups {
		name := groupLabel(g.Name)
		for _, l := range g.Lines {
			rows = append(rows, []any{name, l.Category.Name, l.Assigned.Dollars(), l.Activity.Dollars(), l.Available.Dollars()})
		}
		rows = append(rows, []any{name, "Total", g.Assigned.Dollars(), g.Activity.Dollars(), g.Available.Dollars()})
	}
	rows = append(rows,
		[]any{},
		[]any{"Monthly Pool", r.Pool.Dollars()},
		[]any{"Total Assigned", r.TotalAssigned.Dollars()},
		[]any{"Ready to Assign", r.ReadyToAssign.Dollars()},
		[]any{"Income", r.IncomeActivity.Dollars()},
		[]any{"Spending", r.ExpenseActivity.Dollars()},
		[]any{"Uncategorized", len(r.Uncategorized)},
	)
	return rows
}

// TabName is the tab a month is written to, e.g. "2025-03 Budget".
func TabName(base string, m core.Month) string {
	if base == "" {
		base = "Budget"
	}
	return m.String() + " " + base
}

func groupLabel(g core.GroupName) string {
	if g == core.GroupUngrouped {
		return "Ungrouped"
	}
	return string(g)
}
