package core

import "slices"

// Stable ids of the categories seeded by the initial migration. Rule tables
// and code reference categories by these ids, never by display name.
const (
	CategoryHousing         = "housing"
	CategoryUtilities       = "utilities"
	CategoryFood            = "food"
	CategoryTransportation  = "transportation"
	CategoryInsuranceHealth = "insurance-health"
	CategoryChildFamily     = "child-family"
	CategoryDebt            = "debt"
	CategoryPersonal        = "personal"
	CategoryMisc            = "misc"
	CategoryIncome          = "income"
)

// GroupIndex maps category id to its group. Categories without an
// assignment are absent.
type GroupIndex map[string]GroupName

// NewGroupIndex builds an index from assignments. When a category appears
// twice the last assignment wins.
func NewGroupIndex(assignments []GroupAssignment) GroupIndex {
	idx := make(GroupIndex, len(assignments))
	for _, a := range assignments {
		idx[a.CategoryID] = a.Group
	}
	return idx
}

// IsIncome reports whether the category belongs to the Income group.
func (g GroupIndex) IsIncome(categoryID string) bool {
	return g[categoryID] == GroupIncome
}

// CategoriesIn returns the ids assigned to group.
func (g GroupIndex) CategoriesIn(group GroupName) []string {
	var ids []string
	for id, name := range g {
		if name == group {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
