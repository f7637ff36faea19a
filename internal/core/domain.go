package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is one bank-record row. Amount is signed: negative is an outflow.
	Transaction struct {
		ID          string    `json:"id"`
		ExternalID  string    `json:"external_id"` // dedup key, unique across the ledger
		Date        Date      `json:"date"`
		Description string    `json:"description"`
		Amount      Money     `json:"amount"`
		CategoryID  string    `json:"category_id,omitempty"` // empty when uncategorized or split
		Subcategory string    `json:"subcategory,omitempty"`
		Ignored     bool      `json:"ignored"`
		Memo        string    `json:"memo,omitempty"`
		IsSplit     bool      `json:"is_split"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// Split is one part of a split transaction. Amount is always positive and
	// takes the sign of its parent when rolled up.
	Split struct {
		ID            string `json:"id"`
		TransactionID string `json:"transaction_id"`
		CategoryID    string `json:"category_id"`
		Amount        Money  `json:"amount"`
		Memo          string `json:"memo,omitempty"`
	}

	Category struct {
		ID            string   `json:"id"`
		Name          string   `json:"name"`
		Subcategories []string `json:"subcategories,omitempty"`
		Color         string   `json:"color,omitempty"`
		Icon          string   `json:"icon,omitempty"`
		SortOrder     int      `json:"sort_order"`
	}

	GroupName string

	GroupAssignment struct {
		CategoryID string    `json:"category_id"`
		Group      GroupName `json:"group"`
	}

	// MonthlyBudget is an allocation for one category (or one of its
	// subcategories when Subcategory is set) in one month.
	MonthlyBudget struct {
		CategoryID  string `json:"category_id"`
		Subcategory string `json:"subcategory,omitempty"`
		Month       Month  `json:"month"`
		Amount      Money  `json:"amount"`
	}

	// CategoryRule is a user-authored rule matched by substring containment.
	CategoryRule struct {
		ID           string    `json:"id"`
		MatchPattern string    `json:"match_pattern"`
		CategoryID   string    `json:"category_id"`
		Subcategory  string    `json:"subcategory,omitempty"`
		CreatedAt    time.Time `json:"created_at"`
	}

	ImportRecord struct {
		ID                string    `json:"id"`
		Filename          string    `json:"filename"`
		FileHash          string    `json:"file_hash"`
		Imported          int       `json:"imported"`
		DuplicatesSkipped int       `json:"duplicates_skipped"`
		ImportedAt        time.Time `json:"imported_at"`
	}
)

const (
	GroupFixedBills GroupName = "Fixed Bills"
	GroupExpenses   GroupName = "Expenses"
	GroupWants      GroupName = "Wants"
	GroupIncome     GroupName = "Income"
	GroupUngrouped  GroupName = ""
)

// GroupOrder is the display order of the fixed group set.
func GroupOrder() []GroupName {
	return []GroupName{GroupFixedBills, GroupExpenses, GroupWants, GroupIncome}
}

// Valid reports whether g is one of the fixed groups.
func (g GroupName) Valid() bool {
	return slices.Contains(GroupOrder(), g)
}

var (
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrEmptyCategory       = errors.New("empty category")
	ErrEmptyName           = errors.New("empty name")
	ErrEmptyPattern        = errors.New("empty match pattern")
	ErrUnknownSubcategory  = errors.New("subcategory not declared by category")
	ErrInvalidSubcategory  = errors.New("invalid subcategory list")
	ErrUnknownGroup        = errors.New("unknown category group")
	ErrSplitSumMismatch    = errors.New("split amounts do not sum to transaction amount")
	ErrEmptySplits         = errors.New("split needs at least one part")
	ErrDescriptionTooLong  = errors.New("description too long (max 500 characters)")
	ErrTransactionSplit    = errors.New("transaction is split")
	ErrTransactionNotSplit = errors.New("transaction is not split")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// MonthOf returns the calendar month the date falls in.
func (d Date) MonthOf() Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 500 {
		return ErrDescriptionTooLong
	}
	if t.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if t.IsSplit && t.CategoryID != "" {
		return fmt.Errorf("split transaction %s must not carry a category", t.ID)
	}
	return nil
}

// Inflow reports whether the transaction brings money in.
func (t Transaction) Inflow() bool {
	return t.Amount.Cents > 0
}

// HasSubcategory reports whether label is declared by the category.
func (c Category) HasSubcategory(label string) bool {
	return slices.Contains(c.Subcategories, label)
}

// ValidateSubcategory accepts an empty label or one declared by the category.
func (c Category) ValidateSubcategory(label string) error {
	if label == "" || c.HasSubcategory(label) {
		return nil
	}
	return fmt.Errorf("%w: %q not in %s", ErrUnknownSubcategory, label, c.Name)
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	seen := make(map[string]bool, len(c.Subcategories))
	for _, s := range c.Subcategories {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %s has an empty label", ErrInvalidSubcategory, c.Name)
		}
		if seen[s] {
			return fmt.Errorf("%w: %s repeats %q", ErrInvalidSubcategory, c.Name, s)
		}
		seen[s] = true
	}
	return nil
}

func (s Split) Validate() error {
	if strings.TrimSpace(s.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if s.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateSplits checks that parts are well formed and sum to the absolute
// amount of the parent.
func ValidateSplits(parent Transaction, parts []Split) error {
	if len(parts) == 0 {
		return ErrEmptySplits
	}
	var sum int64
	for i, p := range parts {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("split %d: %w", i+1, err)
		}
		sum += p.Amount.Cents
	}
	if want := parent.Amount.Abs().Cents; sum != want {
		return fmt.Errorf("%w: got %s, want %s", ErrSplitSumMismatch, Money{Cents: sum}, Money{Cents: want})
	}
	return nil
}

func (b MonthlyBudget) Validate() error {
	if strings.TrimSpace(b.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if err := b.Month.Validate(); err != nil {
		return err
	}
	if b.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (r CategoryRule) Validate() error {
	if strings.TrimSpace(r.MatchPattern) == "" {
		return ErrEmptyPattern
	}
	if strings.TrimSpace(r.CategoryID) == "" {
		return ErrEmptyCategory
	}
	return nil
}
