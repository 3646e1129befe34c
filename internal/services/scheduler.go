package services

import (
	"time"

	"alice/internal/core"
	"alice/internal/ledger"
)

// Trigger is a set of events that cause effects to run.
type Trigger uint8

const (
	TriggerLogin Trigger = 1 << iota
	TriggerLedgerChange
	TriggerMonthChange

	TriggerAll = TriggerLogin | TriggerLedgerChange | TriggerMonthChange
)

// Snapshot is the session state effects read and rewrite.
type Snapshot struct {
	Email    string
	Ledger   ledger.State
	Marker   string
	Selected core.MonthToken
	Prompt   *CarryOverPrompt
	// Dismissed is the month whose carry-over prompt the user declined.
	Dismissed core.MonthToken
	// Rolled is the month the session-start effects last ran for.
	Rolled core.MonthToken
}

// Env carries the clock and id source for one scheduler run.
type Env struct {
	Now   time.Time
	Loc   *time.Location
	NewID core.IDFunc
}

// Today is the calendar day of Now in Loc.
func (e Env) Today() core.Date {
	return core.DateOf(e.Now.In(orUTC(e.Loc)))
}

// Effect is a pure rule evaluated after a committed update.
type Effect struct {
	Name string
	On   Trigger
	Run  func(Snapshot, Env) (Snapshot, []core.Notification)
}

// Scheduler runs effects in registration order.
type Scheduler struct {
	effects []Effect
}

func NewScheduler(effects ...Effect) *Scheduler {
	return &Scheduler{effects: effects}
}

// DefaultScheduler registers the automatic rollover first so that a session
// start synthesis is visible to every later rule, including the prompt.
func DefaultScheduler() *Scheduler {
	return NewScheduler(
		Effect{Name: "rollover", On: TriggerLogin, Run: rolloverEffect},
		Effect{Name: "budgets", On: TriggerLogin | TriggerLedgerChange, Run: budgetEffect},
		Effect{Name: "bills", On: TriggerLogin | TriggerLedgerChange, Run: billEffect},
		Effect{Name: "custom_alerts", On: TriggerLogin | TriggerLedgerChange, Run: customAlertEffect},
		Effect{Name: "carry_over_prompt", On: TriggerAll, Run: promptEffect},
	)
}

func (s *Scheduler) Register(e Effect) {
	s.effects = append(s.effects, e)
}

// Effects returns the registered effect names in order.
func (s *Scheduler) Effects() []string {
	names := make([]string, len(s.effects))
	for i, e := range s.effects {
		names[i] = e.Name
	}
	return names
}

// Run applies every effect subscribed to trigger. Notifications are stamped
// with the snapshot's email and env time when they carry none.
func (s *Scheduler) Run(trigger Trigger, snap Snapshot, env Env) (Snapshot, []core.Notification) {
	var notes []core.Notification
	for _, e := range s.effects {
		if e.On&trigger == 0 {
			continue
		}
		var out []core.Notification
		snap, out = e.Run(snap, env)
		notes = append(notes, out...)
	}
	for i := range notes {
		if notes[i].Email == "" {
			notes[i].Email = snap.Email
		}
		if notes[i].CreatedAt.IsZero() {
			notes[i].CreatedAt = env.Now
		}
	}
	return snap, notes
}

func rolloverEffect(snap Snapshot, env Env) (Snapshot, []core.Notification) {
	res := AutoRollover(snap.Ledger, snap.Marker, env.Now, env.Loc, env.NewID)
	if !res.Changed() {
		return snap, nil
	}
	snap.Ledger = res.State
	snap.Marker = res.Marker
	if len(res.Synthesized) == 0 {
		return snap, nil
	}
	month := core.MonthOf(env.Now, env.Loc)
	return snap, []core.Notification{carryOverNotification(snap.Email, month, len(res.Synthesized), env.Now)}
}

func budgetEffect(snap Snapshot, env Env) (Snapshot, []core.Notification) {
	budgets, notes := EvaluateBudgets(snap.Ledger.Transactions, snap.Ledger.Budgets, env.Now, env.Loc)
	if len(notes) > 0 {
		snap.Ledger = snap.Ledger.WithBudgets(budgets)
	}
	return snap, notes
}

func billEffect(snap Snapshot, env Env) (Snapshot, []core.Notification) {
	txns, notes := EvaluateBills(snap.Ledger.Transactions, env.Today(), env.Now)
	if len(notes) > 0 {
		snap.Ledger = snap.Ledger.WithTransactions(txns)
	}
	return snap, notes
}

func customAlertEffect(snap Snapshot, env Env) (Snapshot, []core.Notification) {
	if len(snap.Ledger.Transactions) == 0 {
		return snap, nil
	}
	return snap, EvaluateCustomAlerts(snap.Ledger.Transactions[0], snap.Ledger.Reminders, env.Now)
}

func promptEffect(snap Snapshot, env Env) (Snapshot, []core.Notification) {
	snap.Prompt = nil
	if snap.Selected.IsZero() || snap.Selected == snap.Dismissed {
		return snap, nil
	}
	if p, ok := PendingCarryOver(snap.Ledger, snap.Selected, env.Now, env.Loc); ok {
		snap.Prompt = &p
	}
	return snap, nil
}
