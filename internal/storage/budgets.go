package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"pocketbook/internal/core"
)

const monthlyPoolKey = "monthly_pool"

// ListBudgets returns the allocations of one month.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, month core.Month) ([]core.MonthlyBudget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category_id, subcategory, amount_cents FROM monthly_budgets
		WHERE month = ? ORDER BY category_id, subcategory`, month.String())
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlyBudget
	for rows.Next() {
		b := core.MonthlyBudget{Month: month}
		if err := rows.Scan(&b.CategoryID, &b.Subcategory, &b.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetBudget upserts the allocation keyed by category, subcategory and month.
func (r *SQLiteRepository) SetBudget(ctx context.Context, b core.MonthlyBudget) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO monthly_budgets (category_id, subcategory, month, amount_cents) VALUES (?, ?, ?, ?)
		ON CONFLICT(category_id, subcategory, month) DO UPDATE SET amount_cents = excluded.amount_cents`,
		b.CategoryID, b.Subcategory, b.Month.String(), b.Amount.Cents)
	if err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	return nil
}

// CopyBudgets copies every allocation of from into to, overwriting rows that
// already exist in to. It returns the number of rows written.
func (r *SQLiteRepository) CopyBudgets(ctx context.Context, from, to core.Month) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO monthly_budgets (category_id, subcategory, month, amount_cents)
		SELECT category_id, subcategory, ?, amount_cents FROM monthly_budgets WHERE month = ?
		ON CONFLICT(category_id, subcategory, month) DO UPDATE SET amount_cents = excluded.amount_cents`,
		to.String(), from.String())
	if err != nil {
		return 0, fmt.Errorf("copy budgets: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.InfoContext(ctx, "Budgets copied", "from", from.String(), "to", to.String(), "rows", n)
	return int(n), nil
}

type poolSetting struct {
	AmountCents int64 `json:"amount_cents"`
}

// MonthlyPool returns the configured monthly pool, zero when unset.
func (r *SQLiteRepository) MonthlyPool(ctx context.Context) (core.Money, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", monthlyPoolKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("get monthly pool: %w", err)
	}
	var p poolSetting
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return core.Money{}, fmt.Errorf("decode monthly pool: %w", err)
	}
	return core.Money{Cents: p.AmountCents}, nil
}

func (r *SQLiteRepository) SetMonthlyPool(ctx context.Context, amount core.Money) error {
	b, err := json.Marshal(poolSetting{AmountCents: amount.Cents})
	if err != nil {
		return fmt.Errorf("encode monthly pool: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, monthlyPoolKey, string(b))
	if err != nil {
		return fmt.Errorf("set monthly pool: %w", err)
	}
	return nil
}

// RecordImport appends to the import history.
func (r *SQLiteRepository) RecordImport(ctx context.Context, rec core.ImportRecord) (core.ImportRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	ts := r.timestamp()
	rec.ImportedAt = parseTimestamp(ts)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO import_history (id, filename, file_hash, imported, duplicates_skipped, imported_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, rec.FileHash, rec.Imported, rec.DuplicatesSkipped, ts)
	if err != nil {
		return rec, fmt.Errorf("record import: %w", err)
	}
	return rec, nil
}

// ListImports returns the import history, newest first.
func (r *SQLiteRepository) ListImports(ctx context.Context, limit int) ([]core.ImportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, filename, file_hash, imported, duplicates_skipped, imported_at
		FROM import_history ORDER BY imported_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var out []core.ImportRecord
	for rows.Next() {
		var rec core.ImportRecord
		var ts string
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.FileHash, &rec.Imported, &rec.DuplicatesSkipped, &ts); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		rec.ImportedAt = parseTimestamp(ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DataVersion returns a counter that grows with every write to the tables
// a rollup reads, whichever connection or process made it.
func (r *SQLiteRepository) DataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := r.db.QueryRowContext(ctx, "SELECT version FROM store_version WHERE id = 1").Scan(&v); err != nil {
		return 0, fmt.Errorf("read data version: %w", err)
	}
	return v, nil
}
