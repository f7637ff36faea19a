package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"pocketbook/internal/core"
)

const ruleColumns = "id, match_pattern, category_id, subcategory, created_at"

func scanRule(s rowScanner) (core.CategoryRule, error) {
	var rule core.CategoryRule
	var created string
	if err := s.Scan(&rule.ID, &rule.MatchPattern, &rule.CategoryID, &rule.Subcategory, &created); err != nil {
		return rule, err
	}
	rule.CreatedAt = parseTimestamp(created)
	return rule, nil
}

// ListRules returns user rules oldest first, the order they are tried in.
func (r *SQLiteRepository) ListRules(ctx context.Context) ([]core.CategoryRule, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+ruleColumns+" FROM category_rules ORDER BY created_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetRule(ctx context.Context, id string) (core.CategoryRule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM category_rules WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return rule, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return rule, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

// UpsertRule inserts a rule or, when the pattern already exists, retargets
// the existing rule. The stored rule is returned.
func (r *SQLiteRepository) UpsertRule(ctx context.Context, rule core.CategoryRule) (core.CategoryRule, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO category_rules (`+ruleColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(match_pattern) DO UPDATE SET
			category_id = excluded.category_id,
			subcategory = excluded.subcategory`,
		uuid.NewString(), rule.MatchPattern, rule.CategoryID, rule.Subcategory, r.timestamp())
	if err != nil {
		return rule, fmt.Errorf("upsert rule: %w", err)
	}
	stored, err := scanRule(r.db.QueryRowContext(ctx,
		"SELECT "+ruleColumns+" FROM category_rules WHERE match_pattern = ?", rule.MatchPattern))
	if err != nil {
		return rule, fmt.Errorf("read upserted rule: %w", err)
	}
	slog.InfoContext(ctx, "Rule saved", "rule_id", stored.ID, "pattern", stored.MatchPattern, "category_id", stored.CategoryID)
	return stored, nil
}

func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule core.CategoryRule) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE category_rules SET match_pattern = ?, category_id = ?, subcategory = ? WHERE id = ?",
		rule.MatchPattern, rule.CategoryID, rule.Subcategory, rule.ID)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteRule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM category_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return nil
}
