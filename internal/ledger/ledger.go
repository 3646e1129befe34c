// Package ledger holds a user's financial collections.
//
// Every mutating method returns a new State built on freshly allocated slices;
// the receiver and any slice previously handed out are never written to, so a
// reader holding an older State always sees a consistent snapshot.
package ledger

import (
	"fmt"
	"slices"

	"alice/internal/core"
)

// State is the in-memory ledger of one user.
type State struct {
	Transactions []core.Transaction
	Goals        []core.SavingsGoal
	Budgets      []core.Budget
	Categories   []core.CustomCategory
	Reminders    []core.CustomReminder
}

// FromUserData assembles a State from the persisted collections.
func FromUserData(d core.UserData, cats []core.CustomCategory, reminders []core.CustomReminder) State {
	return State{
		Transactions: d.Transactions,
		Goals:        d.SavingsGoals,
		Budgets:      d.Budgets,
		Categories:   cats,
		Reminders:    reminders,
	}
}

// UserData returns the part of the state stored under the userData key.
// Nil collections are returned as empty slices so they encode as [].
func (s State) UserData() core.UserData {
	return core.UserData{
		Transactions: nonNil(s.Transactions),
		SavingsGoals: nonNil(s.Goals),
		Budgets:      nonNil(s.Budgets),
	}
}

// AddTransaction validates tx and puts it first; the newest transaction is
// always at index 0.
func (s State) AddTransaction(tx core.Transaction) (State, error) {
	if err := tx.Validate(); err != nil {
		return s, err
	}
	if tx.ID == "" {
		return s, fmt.Errorf("transaction id required")
	}
	out := make([]core.Transaction, 0, len(s.Transactions)+1)
	out = append(out, tx)
	s.Transactions = append(out, s.Transactions...)
	return s, nil
}

// AppendTransactions adds already-built transactions at the end of the ledger.
func (s State) AppendTransactions(txs ...core.Transaction) State {
	if len(txs) == 0 {
		return s
	}
	s.Transactions = slices.Concat(s.Transactions, txs)
	return s
}

// Transaction returns the transaction with the given id.
func (s State) Transaction(id string) (core.Transaction, bool) {
	i := slices.IndexFunc(s.Transactions, func(t core.Transaction) bool { return t.ID == id })
	if i < 0 {
		return core.Transaction{}, false
	}
	return s.Transactions[i], true
}

// UpdateTransaction replaces the editable fields of transaction id with those of
// patch. ID, creation time, goal link and sent reminder flags are kept, and so
// is the date when patch has none.
func (s State) UpdateTransaction(id string, patch core.Transaction) (State, error) {
	i := slices.IndexFunc(s.Transactions, func(t core.Transaction) bool { return t.ID == id })
	if i < 0 {
		return s, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	old := s.Transactions[i]
	patch.ID = old.ID
	if patch.Date.IsZero() {
		patch.Date = old.Date
	}
	patch.CreatedAt = old.CreatedAt
	patch.GoalID = old.GoalID
	patch.RemindersSent = old.RemindersSent
	if err := patch.Validate(); err != nil {
		return s, err
	}
	s.Transactions = slices.Clone(s.Transactions)
	s.Transactions[i] = patch
	return s, nil
}

func (s State) DeleteTransaction(id string) (State, error) {
	n := len(s.Transactions)
	s.Transactions = slices.DeleteFunc(slices.Clone(s.Transactions), func(t core.Transaction) bool { return t.ID == id })
	if len(s.Transactions) == n {
		return s, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return s, nil
}

// BulkDeleteTransactions removes every listed id and reports how many were
// removed. Goal amounts already credited by removed contributions stay as they are.
func (s State) BulkDeleteTransactions(ids []string) (State, int) {
	n := len(s.Transactions)
	s.Transactions = slices.DeleteFunc(slices.Clone(s.Transactions), func(t core.Transaction) bool {
		return slices.Contains(ids, t.ID)
	})
	return s, n - len(s.Transactions)
}

// ConfirmTransaction marks a planned transaction as realized and, when it is a
// goal contribution, credits the goal with its amount. Re-confirming an already
// confirmed contribution credits the goal again.
func (s State) ConfirmTransaction(id string) (State, error) {
	i := slices.IndexFunc(s.Transactions, func(t core.Transaction) bool { return t.ID == id })
	if i < 0 {
		return s, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	tx := s.Transactions[i]
	if tx.GoalID != "" {
		s.Goals = slices.Clone(s.Goals)
		for j := range s.Goals {
			if s.Goals[j].ID == tx.GoalID {
				s.Goals[j].CurrentAmount = s.Goals[j].CurrentAmount.Add(tx.Amount)
			}
		}
	}
	tx.IsPlanned = false
	s.Transactions = slices.Clone(s.Transactions)
	s.Transactions[i] = tx
	return s, nil
}

// WithTransactions returns s with txs as its transaction list.
func (s State) WithTransactions(txs []core.Transaction) State {
	s.Transactions = txs
	return s
}

// WithBudgets returns s with budgets as its budget list.
func (s State) WithBudgets(budgets []core.Budget) State {
	s.Budgets = budgets
	return s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
