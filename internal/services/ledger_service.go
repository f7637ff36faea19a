package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pocketbook/internal/core"
	"pocketbook/internal/importer"
	"pocketbook/internal/rules"
	"pocketbook/internal/storage"
)

// similarRuleDistance is the edit distance under which an existing rule is
// reported as a probable duplicate of a new one.
const similarRuleDistance = 3

// LedgerEntry is a transaction with its split parts, if any.
type LedgerEntry struct {
	core.Transaction
	Splits []core.Split `json:"splits,omitempty"`
}

// LedgerTotals are the working totals shown above the ledger.
type LedgerTotals struct {
	Inflow  core.Money `json:"inflow"`
	Outflow core.Money `json:"outflow"`
	Balance core.Money `json:"balance"`
}

// RecategorizeResult reports what a recategorization touched.
type RecategorizeResult struct {
	Updated int                `json:"updated"`
	Rule    *core.CategoryRule `json:"rule,omitempty"`
	Similar []rules.Similar    `json:"similar_rules,omitempty"`
}

// ManualEntry is a transaction typed in by hand. Outflow amounts are given
// positive and stored negative.
type ManualEntry struct {
	Date        core.Date  `json:"date"`
	Payee       string     `json:"payee"`
	Amount      core.Money `json:"amount"`
	Inflow      bool       `json:"inflow"`
	CategoryID  string     `json:"category_id"`
	Subcategory string     `json:"subcategory"`
	Memo        string     `json:"memo"`
}

// LedgerService implements the per-transaction ledger operations and the
// user rule set.
type LedgerService struct {
	storage *storage.SQLiteRepository
	now     func() time.Time
}

func NewLedgerService(storage *storage.SQLiteRepository) *LedgerService {
	return &LedgerService{storage: storage, now: time.Now}
}

// List returns transactions matching f with the parts of split rows.
func (s *LedgerService) List(ctx context.Context, f storage.TransactionFilter) ([]LedgerEntry, error) {
	txns, err := s.storage.ListTransactions(ctx, f)
	if err != nil {
		return nil, err
	}
	var splitIDs []string
	for _, t := range txns {
		if t.IsSplit {
			splitIDs = append(splitIDs, t.ID)
		}
	}
	parts := map[string][]core.Split{}
	if len(splitIDs) > 0 {
		if parts, err = s.storage.SplitsForTransactions(ctx, splitIDs); err != nil {
			return nil, err
		}
	}
	out := make([]LedgerEntry, len(txns))
	for i, t := range txns {
		out[i] = LedgerEntry{Transaction: t, Splits: parts[t.ID]}
	}
	return out, nil
}

// Totals sums the non-ignored rows within the date range of f. Inflow and
// Outflow are positive; Balance is their difference.
func (s *LedgerService) Totals(ctx context.Context, f storage.TransactionFilter) (LedgerTotals, error) {
	in, out, err := s.storage.SumTransactions(ctx, storage.TransactionFilter{From: f.From, To: f.To})
	if err != nil {
		return LedgerTotals{}, err
	}
	return LedgerTotals{Inflow: in, Outflow: out, Balance: in.Sub(out)}, nil
}

func (s *LedgerService) checkCategory(ctx context.Context, categoryID, subcategory string) error {
	if strings.TrimSpace(categoryID) == "" {
		if subcategory != "" {
			return core.ErrEmptyCategory
		}
		return nil
	}
	cat, err := s.storage.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	return cat.ValidateSubcategory(subcategory)
}

// Recategorize sets the category of one transaction. With applyToSimilar
// every unsplit transaction sharing its normalized description gets the
// same category and a rule keyed by that description is saved. An empty
// category clears the assignment.
func (s *LedgerService) Recategorize(ctx context.Context, id, categoryID, subcategory string, applyToSimilar bool) (RecategorizeResult, error) {
	var res RecategorizeResult
	if err := s.checkCategory(ctx, categoryID, subcategory); err != nil {
		return res, err
	}
	t, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return res, err
	}
	if t.IsSplit {
		return res, core.ErrTransactionSplit
	}

	ids := []string{t.ID}
	if applyToSimilar && categoryID != "" {
		all, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{IncludeIgnored: true})
		if err != nil {
			return res, err
		}
		for _, o := range all {
			if o.ID != t.ID && !o.IsSplit && rules.SamePayee(o.Description, t.Description) {
				ids = append(ids, o.ID)
			}
		}
	}
	if res.Updated, err = s.storage.SetCategory(ctx, ids, categoryID, subcategory); err != nil {
		return res, err
	}

	if applyToSimilar && categoryID != "" {
		pattern := rules.NormalizeDescription(t.Description)
		if pattern != "" {
			rule, similar, err := s.saveRule(ctx, core.CategoryRule{MatchPattern: pattern, CategoryID: categoryID, Subcategory: subcategory})
			if err != nil {
				return res, err
			}
			res.Rule = &rule
			res.Similar = similar
		}
	}
	slog.InfoContext(ctx, "Transaction recategorized",
		"transaction_id", id, "category_id", categoryID, "updated", res.Updated, "rule", res.Rule != nil)
	return res, nil
}

// ConfirmRule applies a category to every unsplit transaction whose
// description matches pattern by containment and saves the rule.
func (s *LedgerService) ConfirmRule(ctx context.Context, pattern, categoryID, subcategory string) (RecategorizeResult, error) {
	var res RecategorizeResult
	rule := core.CategoryRule{MatchPattern: rules.NormalizeDescription(pattern), CategoryID: categoryID, Subcategory: subcategory}
	if err := rule.Validate(); err != nil {
		return res, err
	}
	if err := s.checkCategory(ctx, categoryID, subcategory); err != nil {
		return res, err
	}

	all, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{IncludeIgnored: true})
	if err != nil {
		return res, err
	}
	var ids []string
	for _, t := range all {
		if !t.IsSplit && rules.MatchesPattern(rule.MatchPattern, t.Description) {
			ids = append(ids, t.ID)
		}
	}
	if res.Updated, err = s.storage.SetCategory(ctx, ids, categoryID, subcategory); err != nil {
		return res, err
	}
	saved, similar, err := s.saveRule(ctx, rule)
	if err != nil {
		return res, err
	}
	res.Rule = &saved
	res.Similar = similar
	return res, nil
}

// saveRule upserts rule and reports existing rules with near identical
// patterns.
func (s *LedgerService) saveRule(ctx context.Context, rule core.CategoryRule) (core.CategoryRule, []rules.Similar, error) {
	existing, err := s.storage.ListRules(ctx)
	if err != nil {
		return rule, nil, err
	}
	similar := rules.SimilarPatterns(rule.MatchPattern, existing, similarRuleDistance)
	if len(similar) > 0 {
		slog.WarnContext(ctx, "Rule pattern is close to existing rules",
			"pattern", rule.MatchPattern, "similar", len(similar))
	}
	saved, err := s.storage.UpsertRule(ctx, rule)
	return saved, similar, err
}

// ToggleIgnore flips the ignored flag of a transaction. With allFromPayee
// every transaction sharing its normalized description gets the new flag.
// It returns the new flag and the number of rows changed.
func (s *LedgerService) ToggleIgnore(ctx context.Context, id string, allFromPayee bool) (bool, int, error) {
	t, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return false, 0, err
	}
	ignored := !t.Ignored
	ids := []string{t.ID}
	if allFromPayee {
		all, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{IncludeIgnored: true})
		if err != nil {
			return false, 0, err
		}
		for _, o := range all {
			if o.ID != t.ID && rules.SamePayee(o.Description, t.Description) {
				ids = append(ids, o.ID)
			}
		}
	}
	n, err := s.storage.SetIgnored(ctx, ids, ignored)
	if err != nil {
		return false, 0, err
	}
	slog.InfoContext(ctx, "Ignore toggled", "transaction_id", id, "ignored", ignored, "updated", n)
	return ignored, n, nil
}

// SetMemo stores a trimmed memo; an empty memo clears it.
func (s *LedgerService) SetMemo(ctx context.Context, id, memo string) error {
	return s.storage.SetMemo(ctx, id, strings.TrimSpace(memo))
}

// SaveSplits replaces the parts of a transaction. Parts must reference
// existing categories and sum to the absolute amount of the transaction.
func (s *LedgerService) SaveSplits(ctx context.Context, id string, parts []core.Split) ([]core.Split, error) {
	t, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := core.ValidateSplits(t, parts); err != nil {
		return nil, err
	}
	for i, p := range parts {
		if _, err := s.storage.GetCategory(ctx, p.CategoryID); err != nil {
			return nil, fmt.Errorf("split %d: %w", i+1, err)
		}
	}
	return s.storage.ReplaceSplits(ctx, id, parts)
}

// RemoveSplits turns a split transaction back into a single row, assigned
// to categoryID when given.
func (s *LedgerService) RemoveSplits(ctx context.Context, id, categoryID, subcategory string) error {
	t, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if !t.IsSplit {
		return core.ErrTransactionNotSplit
	}
	if err := s.checkCategory(ctx, categoryID, subcategory); err != nil {
		return err
	}
	return s.storage.ClearSplits(ctx, id, categoryID, subcategory)
}

// AddManual stores a hand-entered transaction.
func (s *LedgerService) AddManual(ctx context.Context, e ManualEntry) (core.Transaction, error) {
	amount := e.Amount.Abs()
	if !e.Inflow {
		amount = amount.Neg()
	}
	t := core.Transaction{
		Date:        e.Date,
		Description: strings.TrimSpace(e.Payee),
		Amount:      amount,
		CategoryID:  e.CategoryID,
		Subcategory: e.Subcategory,
		Memo:        strings.TrimSpace(e.Memo),
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	if err := s.checkCategory(ctx, e.CategoryID, e.Subcategory); err != nil {
		return t, err
	}
	t.ExternalID = importer.ManualKey(t.Date, t.Description, t.Amount, s.now())

	ok, err := s.storage.InsertTransaction(ctx, &t)
	if err != nil {
		return t, err
	}
	if !ok {
		return t, fmt.Errorf("manual transaction %s already exists", t.ExternalID)
	}
	slog.InfoContext(ctx, "Manual transaction added", "transaction_id", t.ID, "amount", t.Amount.String())
	return t, nil
}

// Rules returns the user rules in evaluation order.
func (s *LedgerService) Rules(ctx context.Context) ([]core.CategoryRule, error) {
	return s.storage.ListRules(ctx)
}

// AddRule normalizes and saves a rule without touching transactions.
func (s *LedgerService) AddRule(ctx context.Context, rule core.CategoryRule) (core.CategoryRule, []rules.Similar, error) {
	rule.MatchPattern = rules.NormalizeDescription(rule.MatchPattern)
	if err := rule.Validate(); err != nil {
		return rule, nil, err
	}
	if err := s.checkCategory(ctx, rule.CategoryID, rule.Subcategory); err != nil {
		return rule, nil, err
	}
	return s.saveRule(ctx, rule)
}

func (s *LedgerService) UpdateRule(ctx context.Context, rule core.CategoryRule) error {
	rule.MatchPattern = rules.NormalizeDescription(rule.MatchPattern)
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := s.checkCategory(ctx, rule.CategoryID, rule.Subcategory); err != nil {
		return err
	}
	return s.storage.UpdateRule(ctx, rule)
}

func (s *LedgerService) DeleteRule(ctx context.Context, id string) error {
	return s.storage.DeleteRule(ctx, id)
}

// IsNotFound reports whether err means a referenced record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
