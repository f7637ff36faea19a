package budget

import (
	"slices"
	"strings"

	"pocketbook/internal/core"
	"pocketbook/internal/rules"
)

// CategorySpending is the outflow total of one category in a period.
type CategorySpending struct {
	CategoryID string     `json:"category_id"`
	Name       string     `json:"name"`
	Spent      core.Money `json:"spent"`
}

// MonthPoint is one month of the income/spending trend.
type MonthPoint struct {
	Month    core.Month `json:"month"`
	Income   core.Money `json:"income"`
	Spending core.Money `json:"spending"`
	Net      core.Money `json:"net"`
}

// Merchant is a payee ranked by spending.
type Merchant struct {
	Name  string     `json:"name"`
	Spent core.Money `json:"spent"`
	Count int        `json:"count"`
}

// SpendingByCategory sums absolute outflows per non-income category for the
// month, largest first. Uncategorized and ignored rows are excluded.
func SpendingByCategory(month core.Month, txns []core.Transaction, cats []core.Category, groups []core.GroupAssignment) []CategorySpending {
	idx := core.NewGroupIndex(groups)
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	totals := make(map[string]int64)
	for _, t := range txns {
		if t.Ignored || t.CategoryID == "" || !month.Contains(t.Date) || idx.IsIncome(t.CategoryID) {
			continue
		}
		if _, ok := names[t.CategoryID]; !ok {
			continue
		}
		if t.Amount.Cents < 0 {
			totals[t.CategoryID] += -t.Amount.Cents
		}
	}
	out := make([]CategorySpending, 0, len(totals))
	for id, cents := range totals {
		out = append(out, CategorySpending{CategoryID: id, Name: names[id], Spent: core.Money{Cents: cents}})
	}
	slices.SortFunc(out, func(a, b CategorySpending) int {
		if a.Spent.Cents != b.Spent.Cents {
			if a.Spent.Cents > b.Spent.Cents {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// MonthlyTrend returns one point per month from `from` to `to` inclusive.
// Income is inflows to income categories; spending is outflows elsewhere.
func MonthlyTrend(from, to core.Month, txns []core.Transaction, groups []core.GroupAssignment) []MonthPoint {
	idx := core.NewGroupIndex(groups)
	var points []MonthPoint
	pos := make(map[core.Month]int)
	for m := from; !to.Before(m); m = m.AddMonths(1) {
		pos[m] = len(points)
		points = append(points, MonthPoint{Month: m})
	}
	for _, t := range txns {
		if t.Ignored {
			continue
		}
		i, ok := pos[t.Date.MonthOf()]
		if !ok {
			continue
		}
		switch {
		case idx.IsIncome(t.CategoryID) && t.Amount.Cents > 0:
			points[i].Income.Cents += t.Amount.Cents
		case !idx.IsIncome(t.CategoryID) && t.Amount.Cents < 0:
			points[i].Spending.Cents += -t.Amount.Cents
		}
	}
	for i := range points {
		points[i].Net = points[i].Income.Sub(points[i].Spending)
	}
	return points
}

// TopMerchants ranks payees by outflow within the month. Payees are grouped by
// normalized description.
func TopMerchants(month core.Month, txns []core.Transaction, limit int) []Merchant {
	byKey := make(map[string]*Merchant)
	for _, t := range txns {
		if t.Ignored || t.Amount.Cents >= 0 || !month.Contains(t.Date) {
			continue
		}
		key := rules.NormalizeDescription(t.Description)
		if key == "" {
			continue
		}
		m, ok := byKey[key]
		if !ok {
			m = &Merchant{Name: key}
			byKey[key] = m
		}
		m.Spent.Cents += -t.Amount.Cents
		m.Count++
	}
	out := make([]Merchant, 0, len(byKey))
	for _, m := range byKey {
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Merchant) int {
		if a.Spent.Cents != b.Spent.Cents {
			if a.Spent.Cents > b.Spent.Cents {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
