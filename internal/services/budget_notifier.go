package services

import (
	"fmt"
	"time"

	"alice/internal/core"
	"alice/internal/ledger"
)

// Budget thresholds in percent.
const (
	budgetWarningPercent = 80
	budgetLimitPercent   = 100
)

// EvaluateBudgets compares each budget with the real expenses of its category
// in the month containing now. The first time spending reaches 100% a limit
// notification is emitted and notified100 set; otherwise the first time it
// reaches 80% a warning is emitted and notified80 set. Flags are never cleared
// here. The returned slice is a new one only when a flag changed.
func EvaluateBudgets(txns []core.Transaction, budgets []core.Budget, now time.Time, loc *time.Location) ([]core.Budget, []core.Notification) {
	if len(budgets) == 0 {
		return budgets, nil
	}
	spent := ledger.State{Transactions: txns}.SpentByCategory(core.MonthOf(now, loc), loc)

	var (
		out   []core.Budget
		notes []core.Notification
	)
	set := func(i int, b core.Budget) {
		if out == nil {
			out = make([]core.Budget, len(budgets))
			copy(out, budgets)
		}
		out[i] = b
	}

	for i, b := range budgets {
		if b.Amount.Cents <= 0 {
			continue
		}
		s := ledger.SpentFor(spent, b.Category)
		switch {
		case reached(s, b.Amount, budgetLimitPercent) && !b.Notified100:
			b.Notified100 = true
			set(i, b)
			notes = append(notes, core.Notification{
				Kind:      core.KindBudgetLimit,
				Title:     "Budget limit reached",
				Body:      fmt.Sprintf("You have spent €%s of your €%s budget for %s.", s, b.Amount, b.Category),
				CreatedAt: now,
			})
		case reached(s, b.Amount, budgetWarningPercent) && !b.Notified80:
			b.Notified80 = true
			set(i, b)
			notes = append(notes, core.Notification{
				Kind:      core.KindBudgetWarning,
				Title:     "Budget warning",
				Body:      fmt.Sprintf("You have spent €%s of your €%s budget for %s.", s, b.Amount, b.Category),
				CreatedAt: now,
			})
		}
	}
	if out == nil {
		return budgets, nil
	}
	return out, notes
}

// reached reports spent/amount >= percent/100 without leaving integer cents.
func reached(spent, amount core.Money, percent int64) bool {
	return spent.Cents*100 >= amount.Cents*percent
}
