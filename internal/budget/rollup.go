// Package budget computes monthly budget rollups: per category assigned,
// activity and available figures, group totals and the ready-to-assign pool.
package budget

import (
	"slices"

	"pocketbook/internal/core"
)

// Input is everything a rollup needs. Compute reads nothing else.
type Input struct {
	Month        core.Month
	Categories   []core.Category
	Groups       []core.GroupAssignment
	Transactions []core.Transaction
	Splits       []core.Split
	Budgets      []core.MonthlyBudget
	Pool         core.Money
}

// SubcategoryActivity is the activity attributed to one subcategory label.
// An empty label collects rows without a subcategory.
type SubcategoryActivity struct {
	Label    string     `json:"label"`
	Activity core.Money `json:"activity"`
}

// Line is the rollup of one category.
type Line struct {
	Category      core.Category         `json:"category"`
	Group         core.GroupName        `json:"group"`
	Income        bool                  `json:"income"`
	Assigned      core.Money            `json:"assigned"`
	Activity      core.Money            `json:"activity"`
	Available     core.Money            `json:"available"`
	Subcategories []SubcategoryActivity `json:"subcategories,omitempty"`
}

// GroupTotal aggregates the lines of one group.
type GroupTotal struct {
	Name      core.GroupName `json:"name"`
	Lines     []Line         `json:"lines"`
	Assigned  core.Money     `json:"assigned"`
	Activity  core.Money     `json:"activity"`
	Available core.Money     `json:"available"`
}

// Orphan is a transaction, or a split part, whose category id matches no
// known category. It contributes to no line.
type Orphan struct {
	TransactionID string     `json:"transaction_id"`
	CategoryID    string     `json:"category_id"`
	Amount        core.Money `json:"amount"`
}

// Rollup is the result for one month.
type Rollup struct {
	Month           core.Month         `json:"month"`
	Lines           []Line             `json:"lines"`
	Groups          []GroupTotal       `json:"groups"`
	Pool            core.Money         `json:"pool"`
	TotalAssigned   core.Money         `json:"total_assigned"`
	TotalAvailable  core.Money         `json:"total_available"`
	IncomeActivity  core.Money         `json:"income_activity"`
	ExpenseActivity core.Money         `json:"expense_activity"`
	NetActivity     core.Money         `json:"net_activity"`
	ReadyToAssign   core.Money         `json:"ready_to_assign"`
	Uncategorized   []core.Transaction `json:"uncategorized"`
	Orphans         []Orphan           `json:"orphans,omitempty"`
}

// contribution is one signed amount attributed to a category.
type contribution struct {
	txID        string
	categoryID  string
	subcategory string
	cents       int64
}

// Compute derives the rollup for in.Month.
//
// Income categories count inflows only: activity is the sum of positive
// amounts. Every other category reports net spending: outflows minus
// inflows, unclamped, so refunds larger than spending yield negative
// activity and raise available. Available is assigned + activity for income
// and assigned - activity otherwise.
func Compute(in Input) Rollup {
	groups := core.NewGroupIndex(in.Groups)
	known := make(map[string]core.Category, len(in.Categories))
	for _, c := range in.Categories {
		known[c.ID] = c
	}

	out := Rollup{Month: in.Month, Pool: in.Pool}

	byCategory := make(map[string][]contribution)
	for _, c := range contributions(in, &out) {
		if _, ok := known[c.categoryID]; !ok {
			out.Orphans = append(out.Orphans, Orphan{TransactionID: c.txID, CategoryID: c.categoryID, Amount: core.Money{Cents: c.cents}})
			continue
		}
		byCategory[c.categoryID] = append(byCategory[c.categoryID], c)
	}

	assigned := assignedByCategory(in.Budgets, in.Month)

	for _, cat := range sortedCategories(in.Categories) {
		income := groups.IsIncome(cat.ID)
		group := groups[cat.ID]
		if !group.Valid() {
			group = core.GroupUngrouped
		}
		line := Line{
			Category: cat,
			Group:    group,
			Income:   income,
			Assigned: core.Money{Cents: assigned[cat.ID]},
		}
		bySub := make(map[string]int64)
		var subOrder []string
		for _, c := range byCategory[cat.ID] {
			a := activityOf(c.cents, income)
			line.Activity.Cents += a
			if _, seen := bySub[c.subcategory]; !seen {
				subOrder = append(subOrder, c.subcategory)
			}
			bySub[c.subcategory] += a
		}
		if income {
			line.Available = line.Assigned.Add(line.Activity)
			out.IncomeActivity = out.IncomeActivity.Add(line.Activity)
		} else {
			line.Available = line.Assigned.Sub(line.Activity)
			out.ExpenseActivity = out.ExpenseActivity.Add(line.Activity)
		}
		line.Subcategories = subcategoryLines(cat, subOrder, bySub)

		out.TotalAssigned = out.TotalAssigned.Add(line.Assigned)
		out.TotalAvailable = out.TotalAvailable.Add(line.Available)
		out.Lines = append(out.Lines, line)
	}

	out.NetActivity = out.ExpenseActivity.Sub(out.IncomeActivity)
	out.ReadyToAssign = in.Pool.Sub(out.TotalAssigned)
	out.Groups = groupTotals(out.Lines)
	return out
}

// contributions flattens the month's non-ignored transactions into signed
// per-category amounts. Split parents contribute through their parts, each
// carrying the parent's sign.
func contributions(in Input, out *Rollup) []contribution {
	splitsByParent := make(map[string][]core.Split)
	for _, s := range in.Splits {
		splitsByParent[s.TransactionID] = append(splitsByParent[s.TransactionID], s)
	}

	var cs []contribution
	for _, t := range in.Transactions {
		if t.Ignored || !in.Month.Contains(t.Date) {
			continue
		}
		if t.IsSplit {
			sign := int64(1)
			if t.Amount.Cents < 0 {
				sign = -1
			}
			for _, s := range splitsByParent[t.ID] {
				cs = append(cs, contribution{txID: t.ID, categoryID: s.CategoryID, cents: sign * s.Amount.Cents})
			}
			continue
		}
		if t.CategoryID == "" {
			out.Uncategorized = append(out.Uncategorized, t)
			continue
		}
		cs = append(cs, contribution{txID: t.ID, categoryID: t.CategoryID, subcategory: t.Subcategory, cents: t.Amount.Cents})
	}
	return cs
}

func activityOf(cents int64, income bool) int64 {
	if income {
		return max(cents, 0)
	}
	return -cents
}

// assignedByCategory resolves one assigned figure per category: the
// category-level row when present, else the sum of its subcategory rows.
func assignedByCategory(budgets []core.MonthlyBudget, month core.Month) map[string]int64 {
	whole := make(map[string]int64)
	hasWhole := make(map[string]bool)
	parts := make(map[string]int64)
	for _, b := range budgets {
		if b.Month != month {
			continue
		}
		if b.Subcategory == "" {
			whole[b.CategoryID] += b.Amount.Cents
			hasWhole[b.CategoryID] = true
		} else {
			parts[b.CategoryID] += b.Amount.Cents
		}
	}
	out := make(map[string]int64, len(whole)+len(parts))
	for id, cents := range parts {
		out[id] = cents
	}
	for id := range hasWhole {
		out[id] = whole[id]
	}
	return out
}

// subcategoryLines lists declared subcategories first, in declaration order,
// then any undeclared labels in the order they were seen.
func subcategoryLines(cat core.Category, seen []string, bySub map[string]int64) []SubcategoryActivity {
	if len(seen) == 0 {
		return nil
	}
	var out []SubcategoryActivity
	for _, label := range cat.Subcategories {
		if cents, ok := bySub[label]; ok {
			out = append(out, SubcategoryActivity{Label: label, Activity: core.Money{Cents: cents}})
		}
	}
	for _, label := range seen {
		if !cat.HasSubcategory(label) {
			out = append(out, SubcategoryActivity{Label: label, Activity: core.Money{Cents: bySub[label]}})
		}
	}
	return out
}

func groupTotals(lines []Line) []GroupTotal {
	order := append(core.GroupOrder(), core.GroupUngrouped)
	var out []GroupTotal
	for _, name := range order {
		g := GroupTotal{Name: name}
		for _, l := range lines {
			if l.Group != name {
				continue
			}
			g.Lines = append(g.Lines, l)
			g.Assigned = g.Assigned.Add(l.Assigned)
			g.Activity = g.Activity.Add(l.Activity)
			g.Available = g.Available.Add(l.Available)
		}
		if name == core.GroupUngrouped && len(g.Lines) == 0 {
			continue
		}
		out = append(out, g)
	}
	return out
}

func sortedCategories(cats []core.Category) []core.Category {
	out := slices.Clone(cats)
	slices.SortStableFunc(out, func(a, b core.Category) int {
		if a.SortOrder != b.SortOrder {
			return a.SortOrder - b.SortOrder
		}
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out
}
