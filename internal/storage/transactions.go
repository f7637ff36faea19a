package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"pocketbook/internal/core"
)

const transactionColumns = "id, external_id, date, description, amount_cents, category_id, subcategory, ignored, memo, is_split, created_at"

// TransactionFilter narrows ListTransactions. Zero values mean no filter.
// Search keeps rows whose description contains it, ignoring ASCII case.
// After resumes the listing past a row returned by an earlier page.
type TransactionFilter struct {
	From              core.Date
	To                core.Date
	IncludeIgnored    bool
	UncategorizedOnly bool
	CategoryIDs       []string
	IDs               []string
	Search            string
	After             *TransactionCursor
	Limit             int
}

// TransactionCursor is a position in the newest-first listing order.
type TransactionCursor struct {
	Date      core.Date
	CreatedAt time.Time
	ID        string
}

// CursorAt returns the cursor positioned on t.
func CursorAt(t core.Transaction) TransactionCursor {
	return TransactionCursor{Date: t.Date, CreatedAt: t.CreatedAt, ID: t.ID}
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t                core.Transaction
		date, created    string
		ignored, isSplit int
	)
	err := s.Scan(&t.ID, &t.ExternalID, &date, &t.Description, &t.Amount.Cents,
		&t.CategoryID, &t.Subcategory, &ignored, &t.Memo, &isSplit, &created)
	if err != nil {
		return t, err
	}
	if t.Date, err = parseDate(date); err != nil {
		return t, err
	}
	t.Ignored = ignored != 0
	t.IsSplit = isSplit != 0
	t.CreatedAt = parseTimestamp(created)
	return t, nil
}

// whereClause renders the predicates of f, including the WHERE keyword
// when there is at least one. Limit is not part of it.
func (f TransactionFilter) whereClause() (string, []any) {
	var where []string
	var args []any

	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if !f.IncludeIgnored {
		where = append(where, "ignored = 0")
	}
	if f.UncategorizedOnly {
		where = append(where, "category_id = '' AND is_split = 0")
	}
	if len(f.CategoryIDs) > 0 {
		where = append(where, "category_id IN ("+placeholders(len(f.CategoryIDs))+")")
		args = append(args, stringArgs(f.CategoryIDs)...)
	}

	if len(f.IDs) > 0 {
		where = append(where, "id IN ("+placeholders(len(f.IDs))+")")
		args = append(args, stringArgs(f.IDs)...)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		where = append(where, `description LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(search)+"%")
	}
	if c := f.After; c != nil {
		// Mirrors ORDER BY date DESC, created_at DESC, id.
		date, created := c.Date.String(), c.CreatedAt.UTC().Format(timestampLayout)
		where = append(where, "(date < ? OR (date = ? AND (created_at < ? OR (created_at = ? AND id > ?))))")
		args = append(args, date, date, created, created, c.ID)
	}

	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// ListTransactions returns transactions newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	where, args := f.whereClause()
	query := "SELECT " + transactionColumns + " FROM transactions" + where
	query += " ORDER BY date DESC, created_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SumTransactions returns the total inflow and the total outflow, both
// positive, of the rows matching f. Limit and After are ignored.
func (r *SQLiteRepository) SumTransactions(ctx context.Context, f TransactionFilter) (inflow, outflow core.Money, err error) {
	f.Limit, f.After = 0, nil
	where, args := f.whereClause()
	err = r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN amount_cents > 0 THEN amount_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN amount_cents < 0 THEN -amount_cents ELSE 0 END), 0)
		FROM transactions`+where, args...).Scan(&inflow.Cents, &outflow.Cents)
	if err != nil {
		return core.Money{}, core.Money{}, fmt.Errorf("sum transactions: %w", err)
	}
	return inflow, outflow, nil
}

// escapeLike escapes the LIKE wildcards in s.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return t, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SQLiteRepository) insertTransaction(ctx context.Context, db execer, t *core.Transaction) (bool, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	created := r.timestamp()
	t.CreatedAt = parseTimestamp(created)
	res, err := db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO NOTHING`,
		t.ID, t.ExternalID, t.Date.String(), t.Description, t.Amount.Cents,
		t.CategoryID, t.Subcategory, boolToInt(t.Ignored), t.Memo, boolToInt(t.IsSplit), created)
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// InsertTransaction stores t unless its external id already exists. It
// reports whether a row was inserted; a duplicate is not an error.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t *core.Transaction) (bool, error) {
	return r.insertTransaction(ctx, r.db, t)
}

// InsertTransactions stores a batch in one transaction and returns the
// inserted rows. Rows whose external id already exists are counted as
// duplicates.
func (r *SQLiteRepository) InsertTransactions(ctx context.Context, txns []core.Transaction) ([]core.Transaction, int, error) {
	var inserted []core.Transaction
	duplicates := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for i := range txns {
			t := txns[i]
			ok, err := r.insertTransaction(ctx, tx, &t)
			if err != nil {
				return err
			}
			if !ok {
				duplicates++
				continue
			}
			inserted = append(inserted, t)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	slog.InfoContext(ctx, "Transactions inserted", "inserted", len(inserted), "duplicates", duplicates)
	return inserted, duplicates, nil
}

// SetCategory assigns a category to unsplit transactions. Split rows are
// left untouched. It returns the number of rows changed.
func (r *SQLiteRepository) SetCategory(ctx context.Context, ids []string, categoryID, subcategory string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := append([]any{categoryID, subcategory}, stringArgs(ids)...)
	res, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET category_id = ?, subcategory = ? WHERE is_split = 0 AND id IN ("+placeholders(len(ids))+")",
		args...)
	if err != nil {
		return 0, fmt.Errorf("set category: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SetIgnored flags or unflags transactions.
func (r *SQLiteRepository) SetIgnored(ctx context.Context, ids []string, ignored bool) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := append([]any{boolToInt(ignored)}, stringArgs(ids)...)
	res, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET ignored = ? WHERE id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return 0, fmt.Errorf("set ignored: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SetMemo stores a memo; an empty memo clears it.
func (r *SQLiteRepository) SetMemo(ctx context.Context, id, memo string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE transactions SET memo = ? WHERE id = ?", memo, id)
	if err != nil {
		return fmt.Errorf("set memo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}
