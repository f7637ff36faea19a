package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"pocketbook/internal/core"
)

func scanSplits(rows *sql.Rows) ([]core.Split, error) {
	defer rows.Close()
	var out []core.Split
	for rows.Next() {
		var s core.Split
		if err := rows.Scan(&s.ID, &s.TransactionID, &s.CategoryID, &s.Amount.Cents, &s.Memo); err != nil {
			return nil, fmt.Errorf("scan split: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SplitsFor returns the parts of one transaction in entry order.
func (r *SQLiteRepository) SplitsFor(ctx context.Context, transactionID string) ([]core.Split, error) {
	parts, err := r.SplitsForTransactions(ctx, []string{transactionID})
	if err != nil {
		return nil, err
	}
	return parts[transactionID], nil
}

// splitLookupChunk bounds the ids bound into one IN list.
const splitLookupChunk = 500

// SplitsForTransactions returns the parts of the given transactions keyed
// by transaction id, each list in entry order.
func (r *SQLiteRepository) SplitsForTransactions(ctx context.Context, ids []string) (map[string][]core.Split, error) {
	out := make(map[string][]core.Split, len(ids))
	for chunk := range slices.Chunk(ids, splitLookupChunk) {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, transaction_id, category_id, amount_cents, memo
			FROM transaction_splits WHERE transaction_id IN (`+placeholders(len(chunk))+`)
			ORDER BY transaction_id, position`, stringArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("list splits: %w", err)
		}
		parts, err := scanSplits(rows)
		if err != nil {
			return nil, err
		}
		for _, p := range parts {
			out[p.TransactionID] = append(out[p.TransactionID], p)
		}
	}
	return out, nil
}

// SplitsBetween returns the parts of every split transaction dated within
// [from, to].
func (r *SQLiteRepository) SplitsBetween(ctx context.Context, from, to core.Date) ([]core.Split, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.transaction_id, s.category_id, s.amount_cents, s.memo
		FROM transaction_splits s
		JOIN transactions t ON t.id = s.transaction_id
		WHERE t.is_split = 1 AND t.date >= ? AND t.date <= ?
		ORDER BY s.transaction_id, s.position`, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list splits between: %w", err)
	}
	return scanSplits(rows)
}

// ReplaceSplits atomically swaps the parts of a transaction and marks it
// split, clearing its own category.
func (r *SQLiteRepository) ReplaceSplits(ctx context.Context, transactionID string, parts []core.Split) ([]core.Split, error) {
	saved := make([]core.Split, len(parts))
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE transactions SET is_split = 1, category_id = '', subcategory = '' WHERE id = ?", transactionID)
		if err != nil {
			return fmt.Errorf("mark split: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("transaction %s: %w", transactionID, ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM transaction_splits WHERE transaction_id = ?", transactionID); err != nil {
			return fmt.Errorf("delete splits: %w", err)
		}
		for i, p := range parts {
			p.ID = uuid.NewString()
			p.TransactionID = transactionID
			_, err := tx.ExecContext(ctx, `
				INSERT INTO transaction_splits (id, transaction_id, category_id, amount_cents, memo, position)
				VALUES (?, ?, ?, ?, ?, ?)`,
				p.ID, p.TransactionID, p.CategoryID, p.Amount.Cents, p.Memo, i)
			if err != nil {
				return fmt.Errorf("insert split: %w", err)
			}
			saved[i] = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Splits saved", "transaction_id", transactionID, "parts", len(saved))
	return saved, nil
}

// ClearSplits removes every part and restores the transaction to an unsplit
// row with the given category (possibly empty).
func (r *SQLiteRepository) ClearSplits(ctx context.Context, transactionID, categoryID, subcategory string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM transaction_splits WHERE transaction_id = ?", transactionID); err != nil {
			return fmt.Errorf("delete splits: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE transactions SET is_split = 0, category_id = ?, subcategory = ? WHERE id = ?",
			categoryID, subcategory, transactionID)
		if err != nil {
			return fmt.Errorf("unmark split: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("transaction %s: %w", transactionID, ErrNotFound)
		}
		return nil
	})
}
