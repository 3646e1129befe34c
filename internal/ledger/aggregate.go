package ledger

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"alice/internal/core"
)

// InMonth returns the transactions dated in month m, in ledger order.
func (s State) InMonth(m core.MonthToken, loc *time.Location) []core.Transaction {
	var out []core.Transaction
	for _, t := range s.Transactions {
		if m.Contains(t.Date, loc) {
			out = append(out, t)
		}
	}
	return out
}

// HasActivity reports whether any transaction is dated in month m.
func (s State) HasActivity(m core.MonthToken, loc *time.Location) bool {
	return slices.ContainsFunc(s.Transactions, func(t core.Transaction) bool {
		return m.Contains(t.Date, loc)
	})
}

// Summary computes the monthly aggregates: realized income, real and planned
// expenses, and the balance income minus real expenses.
func (s State) Summary(m core.MonthToken, loc *time.Location) core.MonthSummary {
	sum := core.MonthSummary{
		Month:       m.String(),
		IncomeTxns:  []core.Transaction{},
		RealTxns:    []core.Transaction{},
		PlannedTxns: []core.Transaction{},
	}
	for _, t := range s.InMonth(m, loc) {
		switch {
		case t.Type == core.Income && !t.IsPlanned:
			sum.IncomeTxns = append(sum.IncomeTxns, t)
			sum.Income = sum.Income.Add(t.Amount)
		case t.IsRealExpense():
			sum.RealTxns = append(sum.RealTxns, t)
			sum.RealExpenses = sum.RealExpenses.Add(t.Amount)
		case t.Type == core.Expense && t.IsPlanned:
			sum.PlannedTxns = append(sum.PlannedTxns, t)
			sum.PlannedExpenses = sum.PlannedExpenses.Add(t.Amount)
		}
	}
	sum.Balance = sum.Income.Sub(sum.RealExpenses)

	byCat := s.SpentByCategory(m, loc)
	sum.ByCategory = make([]core.CategoryAmount, 0, len(byCat))
	for name, amount := range byCat {
		sum.ByCategory = append(sum.ByCategory, core.CategoryAmount{Name: name, Amount: amount})
	}
	slices.SortFunc(sum.ByCategory, func(a, b core.CategoryAmount) int {
		if c := cmp.Compare(b.Amount.Cents, a.Amount.Cents); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return sum
}

// SpentByCategory totals real (non-planned) expenses per category in month m.
func (s State) SpentByCategory(m core.MonthToken, loc *time.Location) map[string]core.Money {
	out := make(map[string]core.Money)
	for _, t := range s.Transactions {
		if t.IsRealExpense() && m.Contains(t.Date, loc) {
			out[t.Category] = out[t.Category].Add(t.Amount)
		}
	}
	return out
}

// SpentFor returns what spent holds for category. Categories are matched
// regardless of case, the same way budget categories are kept unique.
func SpentFor(spent map[string]core.Money, category string) core.Money {
	var total core.Money
	for name, amount := range spent {
		if strings.EqualFold(name, category) {
			total = total.Add(amount)
		}
	}
	return total
}

// UpcomingBills returns unpaid bills due today or later, soonest first, at
// most limit of them (limit <= 0 means all).
func (s State) UpcomingBills(today core.Date, limit int) []core.Transaction {
	var bills []core.Transaction
	for _, t := range s.Transactions {
		if t.IsPendingBill() && !t.DueDate.Before(today.Time) {
			bills = append(bills, t)
		}
	}
	slices.SortStableFunc(bills, func(a, b core.Transaction) int {
		return a.DueDate.Compare(b.DueDate.Time)
	})
	if limit > 0 && len(bills) > limit {
		bills = bills[:limit]
	}
	return bills
}
