// Package memory is an in-process RollupWriter used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"pocketbook/internal/budget"
	"pocketbook/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	base string
	tabs map[string][][]any
}

var _ sheets.RollupWriter = (*Store)(nil)

func New(base string) *Store {
	return &Store{base: base, tabs: make(map[string][][]any)}
}

// WriteRollup replaces the month's tab and returns its name.
func (s *Store) WriteRollup(_ context.Context, r budget.Rollup) (string, error) {
	name := sheets.TabName(s.base, r.Month)
	rows := sheets.RollupRows(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[name] = rows
	return name, nil
}

// Tab returns a copy of the rows written to name.
func (s *Store) Tab(name string) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tabs[name]
	return slices.Clone(rows), ok
}

// Tabs lists the written tab names in sorted order.
func (s *Store) Tabs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tabs))
	for n := range s.tabs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
