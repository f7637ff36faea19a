package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pocketbook/internal/budget"
	"pocketbook/internal/core"
	"pocketbook/internal/schedule"
	"pocketbook/internal/storage"
)

// topMerchantsLimit is the number of payees returned by Analytics.
const topMerchantsLimit = 10

// Analytics bundles the reporting views for one month.
type Analytics struct {
	Month              core.Month                `json:"month"`
	SpendingByCategory []budget.CategorySpending `json:"spending_by_category"`
	Trend              []budget.MonthPoint       `json:"trend"`
	TopMerchants       []budget.Merchant         `json:"top_merchants"`
}

// BudgetService serves rollups, allocations, categories and the reports
// derived from them.
type BudgetService struct {
	storage *storage.SQLiteRepository
}

func NewBudgetService(storage *storage.SQLiteRepository) *BudgetService {
	return &BudgetService{storage: storage}
}

// Rollup loads everything the month needs concurrently and computes it.
func (s *BudgetService) Rollup(ctx context.Context, month core.Month) (budget.Rollup, error) {
	if err := month.Validate(); err != nil {
		return budget.Rollup{}, err
	}
	in := budget.Input{Month: month}
	from, to := month.Start(), month.End()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.Categories, err = s.storage.ListCategories(gctx)
		return err
	})
	g.Go(func() (err error) {
		in.Groups, err = s.storage.ListGroupAssignments(gctx)
		return err
	})
	g.Go(func() (err error) {
		in.Budgets, err = s.storage.ListBudgets(gctx, month)
		return err
	})
	g.Go(func() (err error) {
		in.Pool, err = s.storage.MonthlyPool(gctx)
		return err
	})
	g.Go(func() (err error) {
		in.Transactions, err = s.storage.ListTransactions(gctx, storage.TransactionFilter{From: from, To: to})
		return err
	})
	g.Go(func() (err error) {
		in.Splits, err = s.storage.SplitsBetween(gctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return budget.Rollup{}, fmt.Errorf("load rollup %s: %w", month, err)
	}

	r := budget.Compute(in)
	for _, o := range r.Orphans {
		slog.WarnContext(ctx, "Transaction references unknown category",
			"transaction_id", o.TransactionID, "category_id", o.CategoryID, "amount", o.Amount.String())
	}
	return r, nil
}

// DataVersion changes whenever data a rollup depends on is written.
func (s *BudgetService) DataVersion(ctx context.Context) (int64, error) {
	return s.storage.DataVersion(ctx)
}

// Budgets returns the allocations of one month.
func (s *BudgetService) Budgets(ctx context.Context, month core.Month) ([]core.MonthlyBudget, error) {
	return s.storage.ListBudgets(ctx, month)
}

// SetBudget validates and upserts an allocation.
func (s *BudgetService) SetBudget(ctx context.Context, b core.MonthlyBudget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	cat, err := s.storage.GetCategory(ctx, b.CategoryID)
	if err != nil {
		return err
	}
	if err := cat.ValidateSubcategory(b.Subcategory); err != nil {
		return err
	}
	return s.storage.SetBudget(ctx, b)
}

// CopyBudgets seeds month `to` with the allocations of month `from`.
func (s *BudgetService) CopyBudgets(ctx context.Context, from, to core.Month) (int, error) {
	if err := from.Validate(); err != nil {
		return 0, err
	}
	if err := to.Validate(); err != nil {
		return 0, err
	}
	return s.storage.CopyBudgets(ctx, from, to)
}

func (s *BudgetService) Pool(ctx context.Context) (core.Money, error) {
	return s.storage.MonthlyPool(ctx)
}

func (s *BudgetService) SetPool(ctx context.Context, amount core.Money) error {
	if amount.Cents < 0 {
		return core.ErrInvalidAmount
	}
	return s.storage.SetMonthlyPool(ctx, amount)
}

func (s *BudgetService) Categories(ctx context.Context) ([]core.Category, error) {
	return s.storage.ListCategories(ctx)
}

func (s *BudgetService) Groups(ctx context.Context) ([]core.GroupAssignment, error) {
	return s.storage.ListGroupAssignments(ctx)
}

func (s *BudgetService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return s.storage.CreateCategory(ctx, c)
}

func (s *BudgetService) UpdateCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.storage.UpdateCategory(ctx, c)
}

func (s *BudgetService) ReorderCategories(ctx context.Context, ids []string) error {
	return s.storage.ReorderCategories(ctx, ids)
}

// AssignGroup moves a category into a group. Names outside the fixed set are
// rejected.
func (s *BudgetService) AssignGroup(ctx context.Context, categoryID string, group core.GroupName) error {
	if _, err := s.storage.GetCategory(ctx, categoryID); err != nil {
		return err
	}
	return s.storage.AssignGroup(ctx, categoryID, group)
}

// Analytics returns spending by category and top merchants for month and the
// income/spending trend over the `months` months ending with it.
func (s *BudgetService) Analytics(ctx context.Context, month core.Month, months int) (Analytics, error) {
	if err := month.Validate(); err != nil {
		return Analytics{}, err
	}
	if months <= 0 {
		months = 6
	}
	first := month.AddMonths(-(months - 1))

	var (
		cats   []core.Category
		groups []core.GroupAssignment
		txns   []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cats, err = s.storage.ListCategories(gctx)
		return err
	})
	g.Go(func() (err error) {
		groups, err = s.storage.ListGroupAssignments(gctx)
		return err
	})
	g.Go(func() (err error) {
		txns, err = s.storage.ListTransactions(gctx, storage.TransactionFilter{From: first.Start(), To: month.End()})
		return err
	})
	if err := g.Wait(); err != nil {
		return Analytics{}, fmt.Errorf("load analytics %s: %w", month, err)
	}

	return Analytics{
		Month:              month,
		SpendingByCategory: budget.SpendingByCategory(month, txns, cats, groups),
		Trend:              budget.MonthlyTrend(first, month, txns, groups),
		TopMerchants:       budget.TopMerchants(month, txns, topMerchantsLimit),
	}, nil
}

// Schedule detects recurring bills among Fixed Bills transactions in the
// look-back window ending with month.
func (s *BudgetService) Schedule(ctx context.Context, month core.Month) ([]schedule.Bill, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	groups, err := s.storage.ListGroupAssignments(ctx)
	if err != nil {
		return nil, err
	}
	ids := core.NewGroupIndex(groups).CategoriesIn(core.GroupFixedBills)
	if len(ids) == 0 {
		return nil, nil
	}
	from, to := schedule.Window(month)
	txns, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{From: from, To: to, CategoryIDs: ids})
	if err != nil {
		return nil, err
	}
	return schedule.Detect(txns), nil
}
