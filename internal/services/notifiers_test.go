package services

import (
	"strings"
	"testing"
	"time"

	"alice/internal/core"
)

func grocery(id string, cents int64, date time.Time) core.Transaction {
	return core.Transaction{ID: id, Date: date, Description: "Shop", Amount: core.Money{Cents: cents}, Type: core.Expense, Category: "Groceries"}
}

func TestEvaluateBudgetsGroceriesScenario(t *testing.T) {
	now := at(2025, time.March, 20)
	budgets := []core.Budget{{ID: "b1", Category: "Groceries", Amount: core.Money{Cents: 10000}}}
	txns := []core.Transaction{grocery("g1", 8200, at(2025, time.March, 3))}

	budgets, notes := EvaluateBudgets(txns, budgets, now, time.UTC)
	if len(notes) != 1 || notes[0].Kind != core.KindBudgetWarning {
		t.Fatalf("expected one warning, got %+v", notes)
	}
	if !budgets[0].Notified80 || budgets[0].Notified100 {
		t.Fatalf("unexpected flags: %+v", budgets[0])
	}
	if !strings.Contains(notes[0].Body, "82.00") || !strings.Contains(notes[0].Body, "Groceries") {
		t.Errorf("unexpected body: %q", notes[0].Body)
	}

	if _, again := EvaluateBudgets(txns, budgets, now, time.UTC); len(again) != 0 {
		t.Fatalf("warning must fire once, got %+v", again)
	}

	txns = append([]core.Transaction{grocery("g2", 1900, at(2025, time.March, 19))}, txns...)
	budgets, notes = EvaluateBudgets(txns, budgets, now, time.UTC)
	if len(notes) != 1 || notes[0].Kind != core.KindBudgetLimit {
		t.Fatalf("expected one limit notification, got %+v", notes)
	}
	if !budgets[0].Notified80 || !budgets[0].Notified100 {
		t.Fatalf("notified80 must stay set: %+v", budgets[0])
	}

	if _, again := EvaluateBudgets(txns, budgets, now, time.UTC); len(again) != 0 {
		t.Fatalf("limit must fire once, got %+v", again)
	}
}

func TestEvaluateBudgetsFlagsAreMonotonic(t *testing.T) {
	now := at(2025, time.March, 20)
	budgets := []core.Budget{{ID: "b1", Category: "Groceries", Amount: core.Money{Cents: 10000}, Notified80: true}}

	out, notes := EvaluateBudgets(nil, budgets, now, time.UTC)
	if len(notes) != 0 || !out[0].Notified80 {
		t.Fatalf("reduced spending must not clear flags: %+v %+v", out, notes)
	}
}

func TestEvaluateBudgetsIgnores(t *testing.T) {
	now := at(2025, time.March, 20)
	planned := grocery("p", 50000, at(2025, time.March, 1))
	planned.IsPlanned = true
	lastMonth := grocery("l", 50000, at(2025, time.February, 28))
	income := grocery("i", 50000, at(2025, time.March, 1))
	income.Type = core.Income

	tests := []struct {
		name    string
		txns    []core.Transaction
		budgets []core.Budget
	}{
		{"planned expense", []core.Transaction{planned}, []core.Budget{{ID: "b", Category: "Groceries", Amount: core.Money{Cents: 100}}}},
		{"previous month", []core.Transaction{lastMonth}, []core.Budget{{ID: "b", Category: "Groceries", Amount: core.Money{Cents: 100}}}},
		{"income", []core.Transaction{income}, []core.Budget{{ID: "b", Category: "Groceries", Amount: core.Money{Cents: 100}}}},
		{"zero budget", []core.Transaction{grocery("g", 100, at(2025, time.March, 1))}, []core.Budget{{ID: "b", Category: "Groceries"}}},
		{"other category", []core.Transaction{grocery("g", 100000, at(2025, time.March, 1))}, []core.Budget{{ID: "b", Category: "Rent", Amount: core.Money{Cents: 100}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, notes := EvaluateBudgets(tt.txns, tt.budgets, now, time.UTC)
			if len(notes) != 0 || out[0].Notified80 || out[0].Notified100 {
				t.Fatalf("expected no notification, got %+v", notes)
			}
		})
	}
}

func TestEvaluateBudgetsMatchesCategoryIgnoringCase(t *testing.T) {
	budgets := []core.Budget{{ID: "b", Category: "groceries", Amount: core.Money{Cents: 10000}}}
	out, notes := EvaluateBudgets([]core.Transaction{grocery("g", 8500, at(2025, time.March, 1))}, budgets, at(2025, time.March, 2), time.UTC)
	if len(notes) != 1 || notes[0].Kind != core.KindBudgetWarning || !out[0].Notified80 {
		t.Fatalf("expected a warning for Groceries spend on a groceries budget, got %+v", notes)
	}
}

func TestEvaluateBudgetsJumpStraightToLimit(t *testing.T) {
	budgets := []core.Budget{{ID: "b", Category: "Groceries", Amount: core.Money{Cents: 10000}}}
	out, notes := EvaluateBudgets([]core.Transaction{grocery("g", 15000, at(2025, time.March, 1))}, budgets, at(2025, time.March, 2), time.UTC)
	if len(notes) != 1 || notes[0].Kind != core.KindBudgetLimit {
		t.Fatalf("expected only the limit notification, got %+v", notes)
	}
	if out[0].Notified80 {
		t.Fatalf("warning flag should stay unset when the limit fires first")
	}
}

func bill(due core.Date) core.Transaction {
	return core.Transaction{
		ID: "power", Date: at(2025, time.March, 1), Description: "Power", Amount: core.Money{Cents: 4599},
		Type: core.Expense, Category: "Bills", IsPlanned: true, IsBillReminder: true, DueDate: due,
	}
}

func TestEvaluateBills(t *testing.T) {
	due := core.NewDate(2025, time.March, 15)
	txns := []core.Transaction{bill(due)}

	steps := []struct {
		today core.Date
		want  core.RemindersSent
		fires bool
	}{
		{core.NewDate(2025, time.March, 7), core.RemindersSent{}, false},
		{core.NewDate(2025, time.March, 8), core.RemindersSent{Week: true}, true},
		{core.NewDate(2025, time.March, 8), core.RemindersSent{Week: true}, false},
		{core.NewDate(2025, time.March, 12), core.RemindersSent{Week: true, ThreeDays: true}, true},
		{core.NewDate(2025, time.March, 15), core.RemindersSent{Week: true, ThreeDays: true, Today: true}, true},
		{core.NewDate(2025, time.March, 15), core.RemindersSent{Week: true, ThreeDays: true, Today: true}, false},
	}
	for _, st := range steps {
		var notes []core.Notification
		txns, notes = EvaluateBills(txns, st.today, st.today.Time)
		if (len(notes) == 1) != st.fires || len(notes) > 1 {
			t.Fatalf("%s: unexpected notifications %+v", st.today, notes)
		}
		if txns[0].RemindersSent != st.want {
			t.Fatalf("%s: flags = %+v, want %+v", st.today, txns[0].RemindersSent, st.want)
		}
		if st.fires && (notes[0].Kind != core.KindBillReminder || !strings.Contains(notes[0].Body, "45.99")) {
			t.Fatalf("%s: unexpected notification %+v", st.today, notes[0])
		}
	}
}

func TestEvaluateBillsSkipsPaidBills(t *testing.T) {
	paid := bill(core.NewDate(2025, time.March, 15))
	paid.IsPlanned = false
	noDue := bill(core.Date{})

	out, notes := EvaluateBills([]core.Transaction{paid, noDue}, core.NewDate(2025, time.March, 15), at(2025, time.March, 15))
	if len(notes) != 0 || out[0].RemindersSent.Today {
		t.Fatalf("paid bills must be ignored: %+v", notes)
	}
}

func TestEvaluateCustomAlerts(t *testing.T) {
	now := at(2025, time.March, 20)
	// Dated at midnight on the 1st but entered two seconds ago.
	latest := core.Transaction{ID: "t", Date: at(2025, time.March, 1), CreatedAt: now.Add(-2 * time.Second), Description: "Dinner", Amount: core.Money{Cents: 12000}, Type: core.Expense, Category: "Restaurants"}
	reminders := []core.CustomReminder{
		{ID: "r1", Name: "Eating out", Type: core.ReminderCategory, Category: "Restaurants"},
		{ID: "r2", Name: "Big spend", Type: core.ReminderAmount, Threshold: core.Money{Cents: 10000}},
		{ID: "r3", Name: "Huge spend", Type: core.ReminderAmount, Threshold: core.Money{Cents: 12000}},
		{ID: "r4", Name: "Travel", Type: core.ReminderCategory, Category: "Travel"},
	}

	notes := EvaluateCustomAlerts(latest, reminders, now)
	if len(notes) != 2 {
		t.Fatalf("expected category and amount alerts, got %+v", notes)
	}
	if notes[0].Title != "Alert: Eating out" || notes[1].Title != "Alert: Big spend" {
		t.Fatalf("unexpected titles: %q %q", notes[0].Title, notes[1].Title)
	}

	if again := EvaluateCustomAlerts(latest, reminders, now); len(again) != 2 {
		t.Fatalf("custom alerts carry no dedup state")
	}

	tests := []struct {
		name   string
		mutate func(*core.Transaction)
		now    time.Time
	}{
		{"too old", func(*core.Transaction) {}, now.Add(5 * time.Second)},
		{"planned", func(t *core.Transaction) { t.IsPlanned = true }, now},
		{"created in the future", func(t *core.Transaction) { t.CreatedAt = now.Add(time.Hour) }, now},
		{"no creation time", func(t *core.Transaction) { t.CreatedAt = time.Time{} }, now},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := latest
			tt.mutate(&tx)
			if got := EvaluateCustomAlerts(tx, reminders, tt.now); len(got) != 0 {
				t.Fatalf("expected no alerts, got %+v", got)
			}
		})
	}

	t.Run("income never triggers amount alerts", func(t *testing.T) {
		tx := latest
		tx.Type = core.Income
		tx.Category = "Salary"
		if got := EvaluateCustomAlerts(tx, reminders, now); len(got) != 0 {
			t.Fatalf("expected no alerts, got %+v", got)
		}
	})
}

func TestSchedulerOrderAndTriggers(t *testing.T) {
	var calls []string
	effect := func(name string, on Trigger) Effect {
		return Effect{Name: name, On: on, Run: func(s Snapshot, _ Env) (Snapshot, []core.Notification) {
			calls = append(calls, name)
			return s, []core.Notification{{Kind: core.KindCustomAlert, Title: name}}
		}}
	}
	s := NewScheduler(effect("a", TriggerLogin), effect("b", TriggerLedgerChange))
	s.Register(effect("c", TriggerAll))

	now := at(2025, time.March, 1)
	_, notes := s.Run(TriggerLedgerChange, Snapshot{Email: "a@b.com"}, Env{Now: now})
	if strings.Join(calls, ",") != "b,c" {
		t.Fatalf("calls = %v", calls)
	}
	if len(notes) != 2 || notes[0].Email != "a@b.com" || !notes[1].CreatedAt.Equal(now) {
		t.Fatalf("notifications not stamped: %+v", notes)
	}

	if got := strings.Join(DefaultScheduler().Effects(), ","); got != "rollover,budgets,bills,custom_alerts,carry_over_prompt" {
		t.Fatalf("default order = %s", got)
	}
}
