package ledger

import (
	"fmt"
	"slices"
	"time"

	"alice/internal/core"

	"github.com/shopspring/decimal"
)

// SavingsCategory is the expense category of goal contributions.
const SavingsCategory = "Savings Goal"

// ContributionID is the id of the planned contribution generated for a goal.
func ContributionID(goalID string) string {
	return "trans-goal-" + goalID
}

// MonthlyContribution splits the goal target over the whole months left between
// now and the target date, with a minimum of one month, rounded to cents.
func MonthlyContribution(g core.SavingsGoal, now time.Time, loc *time.Location) core.Money {
	months := core.MonthOf(now, loc).MonthsUntil(core.MonthOf(g.TargetDate.Time, nil))
	if months < 1 {
		months = 1
	}
	return core.MoneyFromDecimal(g.TargetAmount.Decimal().Div(decimal.NewFromInt(int64(months))))
}

// AddGoal stores g with a zero current amount and prepends its monthly planned
// contribution, dated in the selected month on the target day (at most the 28th).
func (s State) AddGoal(g core.SavingsGoal, selected core.MonthToken, now time.Time, loc *time.Location) (State, error) {
	if err := g.Validate(); err != nil {
		return s, err
	}
	if g.ID == "" {
		return s, fmt.Errorf("goal id required")
	}
	g.CurrentAmount = core.Money{}
	s.Goals = slices.Concat(s.Goals, []core.SavingsGoal{g})

	amount := MonthlyContribution(g, now, loc)
	if amount.Cents <= 0 {
		return s, nil
	}
	contribution := core.Transaction{
		ID:          ContributionID(g.ID),
		Date:        selected.DayIn(g.TargetDate.Day(), loc),
		Description: "Savings for: " + g.Name,
		Amount:      amount,
		Type:        core.Expense,
		Category:    SavingsCategory,
		IsRecurring: true,
		IsPlanned:   true,
		GoalID:      g.ID,
	}
	return s.AddTransaction(contribution)
}

// DeleteGoal removes the goal and every transaction linked to it.
func (s State) DeleteGoal(id string) (State, error) {
	n := len(s.Goals)
	s.Goals = slices.DeleteFunc(slices.Clone(s.Goals), func(g core.SavingsGoal) bool { return g.ID == id })
	if len(s.Goals) == n {
		return s, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	s.Transactions = slices.DeleteFunc(slices.Clone(s.Transactions), func(t core.Transaction) bool { return t.GoalID == id })
	return s, nil
}
