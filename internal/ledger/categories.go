package ledger

import (
	"fmt"
	"slices"
	"strings"

	"alice/internal/core"
)

// OtherCategory always closes a combined category list.
const OtherCategory = "Other"

var (
	DefaultExpenseCategories = []string{
		"Rent", "Groceries", "Insurance", "Bill - Electricity", "Bill - Water",
		"Bill - Internet/Phone", "Transport", "Cars", "Leisure", "Sports", "Health",
		"Subscriptions", "Clothing", "Pocket Money", "Fines", "Emergency Aid",
		"Planned Aid", "Tithes", "Donations", SavingsCategory,
	}
	DefaultIncomeCategories = []string{
		"Salary", "Allowances", "Side Income", "Interest", "Freelance", "Donations Received",
	}
)

// CombinedExpenseCategories merges the default expense categories with the
// user's custom ones.
func CombinedExpenseCategories(custom []core.CustomCategory) []string {
	return combine(DefaultExpenseCategories, custom, core.Expense)
}

// CombinedIncomeCategories merges the default income categories with the
// user's custom ones.
func CombinedIncomeCategories(custom []core.CustomCategory) []string {
	return combine(DefaultIncomeCategories, custom, core.Income)
}

func combine(defaults []string, custom []core.CustomCategory, typ core.TransactionType) []string {
	names := slices.Clone(defaults)
	for _, c := range custom {
		if c.Type == typ && strings.TrimSpace(c.Name) != "" {
			names = append(names, c.Name)
		}
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	names = slices.Compact(names)
	return append(names, OtherCategory)
}

func (s State) AddCategory(c core.CustomCategory) (State, error) {
	if err := c.Validate(); err != nil {
		return s, err
	}
	if c.ID == "" {
		return s, fmt.Errorf("category id required")
	}
	s.Categories = slices.Concat(s.Categories, []core.CustomCategory{c})
	return s, nil
}

// UpdateCategory renames a custom category and replaces its icon.
func (s State) UpdateCategory(id, name, icon string) (State, error) {
	if strings.TrimSpace(name) == "" {
		return s, core.ErrEmptyName
	}
	i := slices.IndexFunc(s.Categories, func(c core.CustomCategory) bool { return c.ID == id })
	if i < 0 {
		return s, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	s.Categories = slices.Clone(s.Categories)
	s.Categories[i].Name = name
	s.Categories[i].Icon = icon
	return s, nil
}

func (s State) DeleteCategory(id string) (State, error) {
	n := len(s.Categories)
	s.Categories = slices.DeleteFunc(slices.Clone(s.Categories), func(c core.CustomCategory) bool { return c.ID == id })
	if len(s.Categories) == n {
		return s, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return s, nil
}

func (s State) AddReminder(r core.CustomReminder) (State, error) {
	if err := r.Validate(); err != nil {
		return s, err
	}
	if r.ID == "" {
		return s, fmt.Errorf("reminder id required")
	}
	s.Reminders = slices.Concat(s.Reminders, []core.CustomReminder{r})
	return s, nil
}

func (s State) DeleteReminder(id string) (State, error) {
	n := len(s.Reminders)
	s.Reminders = slices.DeleteFunc(slices.Clone(s.Reminders), func(r core.CustomReminder) bool { return r.ID == id })
	if len(s.Reminders) == n {
		return s, fmt.Errorf("reminder %s: %w", id, core.ErrNotFound)
	}
	return s, nil
}
