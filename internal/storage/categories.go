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

const categoryColumns = "id, name, subcategories, color, icon, sort_order"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(s rowScanner) (core.Category, error) {
	var c core.Category
	var subs string
	if err := s.Scan(&c.ID, &c.Name, &subs, &c.Color, &c.Icon, &c.SortOrder); err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(subs), &c.Subcategories); err != nil {
		return c, fmt.Errorf("decode subcategories of %s: %w", c.ID, err)
	}
	if len(c.Subcategories) == 0 {
		c.Subcategories = nil
	}
	return c, nil
}

func encodeSubcategories(subs []string) (string, error) {
	if subs == nil {
		subs = []string{}
	}
	b, err := json.Marshal(subs)
	if err != nil {
		return "", fmt.Errorf("encode subcategories: %w", err)
	}
	return string(b), nil
}

// ListCategories returns every category ordered for display.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY sort_order, name")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = ?", id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return c, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// CreateCategory inserts c, assigning an id when empty. A zero sort order
// places the category last.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	subs, err := encodeSubcategories(c.Subcategories)
	if err != nil {
		return c, err
	}
	if c.SortOrder == 0 {
		if err := r.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(sort_order), 0) + 1 FROM categories").Scan(&c.SortOrder); err != nil {
			return c, fmt.Errorf("next sort order: %w", err)
		}
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO categories ("+categoryColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		c.ID, c.Name, subs, c.Color, c.Icon, c.SortOrder)
	if err != nil {
		return c, fmt.Errorf("create category: %w", err)
	}
	slog.InfoContext(ctx, "Category created", "category_id", c.ID, "name", c.Name)
	return c, nil
}

// UpdateCategory replaces name, subcategories, color and icon. Sort order is
// changed only through ReorderCategories.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	subs, err := encodeSubcategories(c.Subcategories)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE categories SET name = ?, subcategories = ?, color = ?, icon = ? WHERE id = ?",
		c.Name, subs, c.Color, c.Icon, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

// ReorderCategories sets sort_order to the position of each id in ids.
func (r *SQLiteRepository) ReorderCategories(ctx context.Context, ids []string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "UPDATE categories SET sort_order = ? WHERE id = ?")
		if err != nil {
			return fmt.Errorf("prepare reorder: %w", err)
		}
		defer stmt.Close()
		for i, id := range ids {
			res, err := stmt.ExecContext(ctx, i+1, id)
			if err != nil {
				return fmt.Errorf("reorder %s: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("category %s: %w", id, ErrNotFound)
			}
		}
		return nil
	})
}

// ListGroupAssignments returns the category to group mapping.
func (r *SQLiteRepository) ListGroupAssignments(ctx context.Context) ([]core.GroupAssignment, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT category_id, group_name FROM category_groups ORDER BY category_id")
	if err != nil {
		return nil, fmt.Errorf("list group assignments: %w", err)
	}
	defer rows.Close()

	var out []core.GroupAssignment
	for rows.Next() {
		var g core.GroupAssignment
		if err := rows.Scan(&g.CategoryID, &g.Group); err != nil {
			return nil, fmt.Errorf("scan group assignment: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// AssignGroup moves a category into group, replacing any previous
// assignment. GroupUngrouped removes the assignment.
func (r *SQLiteRepository) AssignGroup(ctx context.Context, categoryID string, group core.GroupName) error {
	if group == core.GroupUngrouped {
		_, err := r.db.ExecContext(ctx, "DELETE FROM category_groups WHERE category_id = ?", categoryID)
		if err != nil {
			return fmt.Errorf("ungroup category: %w", err)
		}
		return nil
	}
	if !group.Valid() {
		return fmt.Errorf("%w: %q", core.ErrUnknownGroup, group)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO category_groups (category_id, group_name) VALUES (?, ?)
		ON CONFLICT(category_id) DO UPDATE SET group_name = excluded.group_name`,
		categoryID, string(group))
	if err != nil {
		return fmt.Errorf("assign group: %w", err)
	}
	return nil
}
