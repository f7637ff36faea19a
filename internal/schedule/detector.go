// Package schedule detects recurring bills from recent transactions.
package schedule

import (
	"math"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pocketbook/internal/core"
	"pocketbook/internal/rules"
)

// LookbackMonths is how many whole months before the current one are scanned.
const LookbackMonths = 3

// MinMonths is the number of distinct months a payee needs to count as recurring.
const MinMonths = 2

// Occurrence is the representative payment of a bill in one month.
type Occurrence struct {
	TransactionID string     `json:"transaction_id"`
	Date          core.Date  `json:"date"`
	Amount        core.Money `json:"amount"`
}

// Bill is a detected recurring payment.
type Bill struct {
	Key           string       `json:"key"`
	Name          string       `json:"name"`
	CategoryID    string       `json:"category_id"`
	AverageAmount core.Money   `json:"average_amount"`
	AverageDay    int          `json:"average_day"`
	Months        int          `json:"months"`
	Recent        []Occurrence `json:"recent"`
}

// Window returns the date range scanned for bills when viewing month m: the
// first day of m minus LookbackMonths through the last day of m.
func Window(m core.Month) (from, to core.Date) {
	return m.AddMonths(-LookbackMonths).Start(), m.End()
}

// PayeeKey groups descriptions of the same payee: the first three words of
// the normalized description.
func PayeeKey(desc string) string {
	words := strings.Fields(rules.NormalizeDescription(desc))
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, " ")
}

// Detect finds recurring bills. Within a payee only the most recent payment of
// each calendar month is kept; payees seen in fewer than MinMonths months are
// dropped. Transactions without a category are skipped. Bills are sorted by
// average day of month, then name.
func Detect(txns []core.Transaction) []Bill {
	sorted := slices.Clone(txns)
	slices.SortStableFunc(sorted, func(a, b core.Transaction) int {
		return b.Date.Compare(a.Date.Time)
	})

	var order []string
	byKey := make(map[string][]core.Transaction)
	for _, t := range sorted {
		if t.Ignored || t.CategoryID == "" {
			continue
		}
		key := PayeeKey(t.Description)
		if key == "" {
			continue
		}
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], t)
	}

	title := cases.Title(language.English)
	var bills []Bill
	for _, key := range order {
		group := byKey[key]
		if len(group) < MinMonths {
			continue
		}
		monthly := firstPerMonth(group)
		if len(monthly) < MinMonths {
			continue
		}
		var amount, day float64
		for _, t := range monthly {
			amount += float64(t.Amount.Abs().Cents)
			day += float64(t.Date.Day())
		}
		n := float64(len(monthly))
		b := Bill{
			Key:           key,
			Name:          title.String(key),
			CategoryID:    monthly[0].CategoryID,
			AverageAmount: core.Money{Cents: int64(math.Round(amount / n))},
			AverageDay:    int(math.Round(day / n)),
			Months:        len(monthly),
		}
		for _, t := range monthly[:min(3, len(monthly))] {
			b.Recent = append(b.Recent, Occurrence{TransactionID: t.ID, Date: t.Date, Amount: t.Amount})
		}
		bills = append(bills, b)
	}

	slices.SortStableFunc(bills, func(a, b Bill) int {
		if a.AverageDay != b.AverageDay {
			return a.AverageDay - b.AverageDay
		}
		return strings.Compare(a.Name, b.Name)
	})
	return bills
}

// firstPerMonth keeps the first transaction seen for each calendar month.
// Input is newest first, so that is the latest payment of the month.
func firstPerMonth(txns []core.Transaction) []core.Transaction {
	seen := make(map[core.Month]bool)
	var out []core.Transaction
	for _, t := range txns {
		m := t.Date.MonthOf()
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, t)
	}
	return out
}
