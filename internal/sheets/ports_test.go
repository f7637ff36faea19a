package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketbook/internal/budget"
	"pocketbook/internal/core"
)

func TestRollupRows(t *testing.T) {
	march := core.Month{Year: 2025, Month: time.March}
	food := core.Category{ID: core.CategoryFood, Name: "Food"}
	misc := core.Category{ID: core.CategoryMisc, Name: "Misc"}
	in := budget.Input{
		Month:      march,
		Categories: []core.Category{food, misc},
		Groups:     []core.GroupAssignment{{CategoryID: core.CategoryFood, Group: core.GroupExpenses}},
		Budgets:    []core.MonthlyBudget{{CategoryID: core.CategoryFood, Month: march, Amount: core.Money{Cents: 20000}}},
		Transactions: []core.Transaction{
			{ID: "1", Date: core.NewDate(2025, 3, 2), CategoryID: core.CategoryFood, Amount: core.Money{Cents: -5000}},
			{ID: "2", Date: core.NewDate(2025, 3, 3), Amount: core.Money{Cents: -100}},
		},
		Pool: core.Money{Cents: 100000},
	}
	rows := RollupRows(budget.Compute(in))

	assert.Equal(t, []any{"Budget", "2025-03"}, rows[0])
	assert.Equal(t, Header, rows[2])
	assert.Contains(t, rows, []any{"Expenses", "Food", 200.0, 50.0, 150.0})
	assert.Contains(t, rows, []any{"Ungrouped", "Misc", 0.0, 0.0, 0.0})
	assert.Contains(t, rows, []any{"Ready to Assign", 800.0})

	last := rows[len(rows)-1]
	require.Len(t, last, 2)
	assert.Equal(t, []any{"Uncategorized", 1}, last)
}

func TestTabName(t *testing.T) {
	m := core.Month{Year: 2024, Month: time.December}
	assert.Equal(t, "2024-12 Budget", TabName("", m))
	assert.Equal(t, "2024-12 Household", TabName("Household", m))
}
