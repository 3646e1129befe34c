package ledger

import (
	"fmt"
	"slices"
	"strings"

	"alice/internal/core"
)

func (s State) hasBudgetFor(category, exceptID string) bool {
	return slices.ContainsFunc(s.Budgets, func(b core.Budget) bool {
		return b.ID != exceptID && strings.EqualFold(b.Category, category)
	})
}

// AddBudget appends b; categories are unique among budgets.
func (s State) AddBudget(b core.Budget) (State, error) {
	if err := b.Validate(); err != nil {
		return s, err
	}
	if b.ID == "" {
		return s, fmt.Errorf("budget id required")
	}
	if s.hasBudgetFor(b.Category, "") {
		return s, fmt.Errorf("%s: %w", b.Category, core.ErrDuplicateBudget)
	}
	b.Notified80, b.Notified100 = false, false
	s.Budgets = slices.Concat(s.Budgets, []core.Budget{b})
	return s, nil
}

// UpdateBudget changes category and amount. Notification flags are kept so an
// edit never re-arms a threshold within the month.
func (s State) UpdateBudget(id string, patch core.Budget) (State, error) {
	i := slices.IndexFunc(s.Budgets, func(b core.Budget) bool { return b.ID == id })
	if i < 0 {
		return s, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	if err := patch.Validate(); err != nil {
		return s, err
	}
	if s.hasBudgetFor(patch.Category, id) {
		return s, fmt.Errorf("%s: %w", patch.Category, core.ErrDuplicateBudget)
	}
	s.Budgets = slices.Clone(s.Budgets)
	s.Budgets[i].Category = patch.Category
	s.Budgets[i].Amount = patch.Amount
	return s, nil
}

func (s State) DeleteBudget(id string) (State, error) {
	n := len(s.Budgets)
	s.Budgets = slices.DeleteFunc(slices.Clone(s.Budgets), func(b core.Budget) bool { return b.ID == id })
	if len(s.Budgets) == n {
		return s, fmt.Errorf("budget %s: %w", id, core.ErrNotFound)
	}
	return s, nil
}
