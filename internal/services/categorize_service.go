package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"pocketbook/internal/core"
	"pocketbook/internal/log"
	"pocketbook/internal/rules"
	"pocketbook/internal/storage"
)

// CategorizeReport summarizes one categorization pass.
type CategorizeReport struct {
	rules.Summary
	ByUserRule int  `json:"by_user_rule"`
	DryRun     bool `json:"dry_run"`
}

// CategorizeService assigns categories to uncategorized transactions using
// the user's rules and the static rule table.
type CategorizeService struct {
	storage *storage.SQLiteRepository
	table   rules.Table
}

func NewCategorizeService(storage *storage.SQLiteRepository, table rules.Table) *CategorizeService {
	return &CategorizeService{storage: storage, table: table}
}

// CheckTable verifies that every category the rule table assigns exists
// and declares the subcategory the rule sets.
func (s *CategorizeService) CheckTable(ctx context.Context) error {
	cats, err := s.storage.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	known := make(map[string]core.Category, len(cats))
	for _, c := range cats {
		known[c.ID] = c
	}
	var missing []string
	for _, id := range s.table.CategoryIDs() {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("rule table references unknown categories: %s", strings.Join(missing, ", "))
	}
	for i, r := range s.table.Rules() {
		if r.Ignore {
			continue
		}
		if err := known[r.CategoryID].ValidateSubcategory(r.Subcategory); err != nil {
			return fmt.Errorf("rule %d (%s): %w", i+1, r.Pattern, err)
		}
	}
	return nil
}

// Run applies the static rule table to every uncategorized transaction.
// With dryRun nothing is written.
func (s *CategorizeService) Run(ctx context.Context, dryRun bool) (CategorizeReport, error) {
	txns, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{UncategorizedOnly: true})
	if err != nil {
		return CategorizeReport{}, fmt.Errorf("load uncategorized: %w", err)
	}
	return s.apply(ctx, txns, nil, dryRun)
}

// CategorizeIDs categorizes the given transactions, user rules first.
func (s *CategorizeService) CategorizeIDs(ctx context.Context, ids []string) (CategorizeReport, error) {
	if len(ids) == 0 {
		return CategorizeReport{}, nil
	}
	txns, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{IDs: ids, UncategorizedOnly: true})
	if err != nil {
		return CategorizeReport{}, fmt.Errorf("load transactions: %w", err)
	}
	userRules, err := s.storage.ListRules(ctx)
	if err != nil {
		return CategorizeReport{}, fmt.Errorf("load rules: %w", err)
	}
	return s.apply(ctx, txns, userRules, false)
}

// Sweep categorizes every uncategorized transaction, user rules first,
// reading pageSize rows at a time from newest to oldest. Rows left
// unmatched by one page do not hide the older pages behind them.
func (s *CategorizeService) Sweep(ctx context.Context, pageSize int) (CategorizeReport, error) {
	userRules, err := s.storage.ListRules(ctx)
	if err != nil {
		return CategorizeReport{}, fmt.Errorf("load rules: %w", err)
	}

	var total CategorizeReport
	var after *storage.TransactionCursor
	for {
		txns, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{
			UncategorizedOnly: true,
			After:             after,
			Limit:             pageSize,
		})
		if err != nil {
			return total, fmt.Errorf("load uncategorized: %w", err)
		}
		if len(txns) == 0 {
			break
		}
		report, err := s.apply(ctx, txns, userRules, false)
		total.merge(report)
		if err != nil {
			return total, err
		}
		if pageSize <= 0 || len(txns) < pageSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
		next := storage.CursorAt(txns[len(txns)-1])
		after = &next
	}
	return total, nil
}

func (r *CategorizeReport) merge(o CategorizeReport) {
	r.Scanned += o.Scanned
	r.Categorized += o.Categorized
	r.Ignored += o.Ignored
	r.Unmatched += o.Unmatched
	r.ByUserRule += o.ByUserRule
	for _, d := range o.Unknown {
		if i, found := slices.BinarySearch(r.Unknown, d); !found {
			r.Unknown = slices.Insert(r.Unknown, i, d)
		}
	}
}

type assignKey struct {
	categoryID  string
	subcategory string
}

func (s *CategorizeService) apply(ctx context.Context, txns []core.Transaction, userRules []core.CategoryRule, dryRun bool) (CategorizeReport, error) {
	assign := make(map[assignKey][]string)
	var ignore []string

	rest := txns
	byUser := 0
	if len(userRules) > 0 {
		rest = nil
		for _, t := range txns {
			if t.CategoryID != "" || t.IsSplit || t.Ignored {
				continue
			}
			if r, ok := rules.MatchUserRule(userRules, t.Description); ok {
				k := assignKey{r.CategoryID, r.Subcategory}
				assign[k] = append(assign[k], t.ID)
				byUser++
				continue
			}
			rest = append(rest, t)
		}
	}

	plan, sum := rules.Categorize(rest, s.table)
	for _, a := range plan {
		switch a.Outcome {
		case rules.Assign:
			k := assignKey{a.CategoryID, a.Subcategory}
			assign[k] = append(assign[k], a.TransactionID)
		case rules.Ignore:
			ignore = append(ignore, a.TransactionID)
		}
	}
	sum.Scanned += byUser
	sum.Categorized += byUser
	report := CategorizeReport{Summary: sum, ByUserRule: byUser, DryRun: dryRun}

	if dryRun {
		log.NewStructuredLogger(log.FromContext(ctx)).
			LogCategorization(ctx, sum.Scanned, sum.Categorized, sum.Ignored, sum.Unmatched, true)
		return report, nil
	}

	keys := make([]assignKey, 0, len(assign))
	for k := range assign {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b assignKey) int {
		if c := strings.Compare(a.categoryID, b.categoryID); c != 0 {
			return c
		}
		return strings.Compare(a.subcategory, b.subcategory)
	})
	for _, k := range keys {
		if _, err := s.storage.SetCategory(ctx, assign[k], k.categoryID, k.subcategory); err != nil {
			return report, fmt.Errorf("assign %s: %w", k.categoryID, err)
		}
	}
	if _, err := s.storage.SetIgnored(ctx, ignore, true); err != nil {
		return report, fmt.Errorf("ignore matched: %w", err)
	}

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogCategorization(ctx, sum.Scanned, sum.Categorized, sum.Ignored, sum.Unmatched, false)
	return report, nil
}
