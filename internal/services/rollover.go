package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alice/internal/core"
	"alice/internal/ledger"
	"alice/internal/log"
	"alice/internal/notify"
	"alice/internal/storage"
)

// ErrLiveSession is returned by the rollover engine for the user recorded as
// logged in. That user's ledger belongs to the server session, which runs the
// rollover itself when the month changes.
var ErrLiveSession = errors.New("user has a live session")

// RolloverResult is the outcome of one automatic rollover evaluation.
type RolloverResult struct {
	State        ledger.State
	Synthesized  []core.Transaction
	BudgetsReset bool
	// Marker is the month key to persist, empty when nothing changed.
	Marker string
	// AlreadyProcessed is set when the stored marker matched the current month.
	AlreadyProcessed bool
}

// Changed reports whether the result must be persisted.
func (r RolloverResult) Changed() bool {
	return len(r.Synthesized) > 0 || r.BudgetsReset
}

// AutoRollover runs the session-start rollover for the month containing now.
// Nothing happens when marker already names the current month. Otherwise the
// previous month's income and recurring expenses are carried into the current
// month unless it already has transactions, and budget notification flags are
// cleared.
func AutoRollover(state ledger.State, marker string, now time.Time, loc *time.Location, newID core.IDFunc) RolloverResult {
	current := core.MonthOf(now, loc)
	res := RolloverResult{State: state}
	if marker == current.Key() {
		res.AlreadyProcessed = true
		return res
	}

	if !state.HasActivity(current, loc) {
		res.Synthesized = CarryOver(state, current.Prev(), current, loc, newID)
		res.State = res.State.AppendTransactions(res.Synthesized...)
	}

	if budgets, reset := resetBudgetFlags(res.State.Budgets); reset {
		res.State = res.State.WithBudgets(budgets)
		res.BudgetsReset = true
	}

	if res.Changed() {
		res.Marker = current.Key()
	}
	return res
}

// CarryOver copies the carry-over eligible transactions of month from into
// month to. Copies get fresh ids and keep their day of month (at most the
// 28th); expenses become planned and income stays realized. Bill due dates
// move by the same number of months and their reminder flags start unsent.
func CarryOver(state ledger.State, from, to core.MonthToken, loc *time.Location, newID core.IDFunc) []core.Transaction {
	if newID == nil {
		newID = core.NewID
	}
	shift := from.MonthsUntil(to)
	var out []core.Transaction
	for _, t := range state.InMonth(from, loc) {
		if !t.IsCarryOverEligible() {
			continue
		}
		c := t
		c.ID = newID("trans")
		c.CreatedAt = time.Time{}
		c.Date = to.DayIn(t.Date.In(orUTC(loc)).Day(), loc)
		c.IsPlanned = t.Type == core.Expense
		if !t.DueDate.IsZero() {
			c.DueDate = shiftDate(t.DueDate, shift)
			c.RemindersSent = core.RemindersSent{}
		}
		out = append(out, c)
	}
	return out
}

// shiftDate moves d by n months, clamping to the last day of the target month.
func shiftDate(d core.Date, n int) core.Date {
	m := core.MonthOf(d.Time, nil).AddMonths(n)
	return core.NewDate(m.Year, m.Month, min(d.Day(), m.DaysIn()))
}

func resetBudgetFlags(budgets []core.Budget) ([]core.Budget, bool) {
	needsReset := false
	for _, b := range budgets {
		if b.Notified80 || b.Notified100 {
			needsReset = true
			break
		}
	}
	if !needsReset {
		return budgets, false
	}
	out := make([]core.Budget, len(budgets))
	for i, b := range budgets {
		b.Notified80, b.Notified100 = false, false
		out[i] = b
	}
	return out, true
}

// CarryOverPrompt is a pending offer to copy the previous month's income and
// recurring expenses into an empty month.
type CarryOverPrompt struct {
	Month core.MonthToken
	From  core.MonthToken
	Count int
}

// PendingCarryOver returns the prompt for the selected month, if any. It is
// offered when the selected month has no transactions, is not before the
// month of today, and the month before it has eligible transactions.
func PendingCarryOver(state ledger.State, selected core.MonthToken, today time.Time, loc *time.Location) (CarryOverPrompt, bool) {
	if selected.Before(core.MonthOf(today, loc)) || state.HasActivity(selected, loc) {
		return CarryOverPrompt{}, false
	}
	prev := selected.Prev()
	count := 0
	for _, t := range state.InMonth(prev, loc) {
		if t.IsCarryOverEligible() {
			count++
		}
	}
	if count == 0 {
		return CarryOverPrompt{}, false
	}
	return CarryOverPrompt{Month: selected, From: prev, Count: count}, true
}

// AcceptCarryOver performs the synthesis offered by p. It does nothing when
// the target month gained transactions since the prompt was computed.
func AcceptCarryOver(state ledger.State, p CarryOverPrompt, loc *time.Location, newID core.IDFunc) (ledger.State, []core.Transaction) {
	if p.Month.IsZero() || state.HasActivity(p.Month, loc) {
		return state, nil
	}
	synthesized := CarryOver(state, p.From, p.Month, loc, newID)
	return state.AppendTransactions(synthesized...), synthesized
}

func carryOverNotification(email string, month core.MonthToken, count int, now time.Time) core.Notification {
	return core.Notification{
		Kind:      core.KindCarryOver,
		Email:     email,
		Title:     "Alice",
		Body:      fmt.Sprintf("%d recurring entries were carried over to %s %d.", count, month.Month, month.Year),
		CreatedAt: now,
	}
}

// RolloverEngine applies the automatic rollover to stored ledgers. It is used
// outside of an interactive session, by the rollover worker and the CLI.
type RolloverEngine struct {
	store    storage.Store
	notifier notify.Notifier
	loc      *time.Location
	newID    core.IDFunc
	timeout  time.Duration
	logger   *log.Logger
}

func NewRolloverEngine(store storage.Store, notifier notify.Notifier, loc *time.Location, logger *log.Logger) *RolloverEngine {
	if logger == nil {
		logger = log.Nop()
	}
	return &RolloverEngine{
		store:    store,
		notifier: notifier,
		loc:      orUTC(loc),
		newID:    core.NewID,
		timeout:  5 * time.Second,
		logger:   logger.WithComponent(log.ComponentRollover),
	}
}

// WithIDs replaces the id generator.
func (e *RolloverEngine) WithIDs(newID core.IDFunc) *RolloverEngine {
	e.newID = newID
	return e
}

// OnSessionStart loads the user's ledger and marker, runs AutoRollover and
// persists the result. A carry-over notification is sent when transactions
// were synthesized. The logged-in user is refused with ErrLiveSession.
func (e *RolloverEngine) OnSessionStart(ctx context.Context, email string, now time.Time) (RolloverResult, error) {
	active, err := e.store.GetLoggedInUser(ctx)
	if err != nil {
		return RolloverResult{}, fmt.Errorf("get logged in user: %w", err)
	}
	if active == email {
		return RolloverResult{}, fmt.Errorf("%s: %w", email, ErrLiveSession)
	}

	data, err := e.store.LoadUserData(ctx, email)
	if err != nil {
		return RolloverResult{}, fmt.Errorf("load user data: %w", err)
	}
	marker, err := e.store.GetCarryOverMarker(ctx, email)
	if err != nil {
		return RolloverResult{}, fmt.Errorf("get carry-over marker: %w", err)
	}

	res := AutoRollover(ledger.FromUserData(data, nil, nil), marker, now, e.loc, e.newID)
	if !res.Changed() {
		e.logger.DebugContext(ctx, "Rollover not needed",
			log.FieldEmail, email,
			log.FieldMonth, core.MonthOf(now, e.loc).String(),
			"already_processed", res.AlreadyProcessed)
		return res, nil
	}

	if err := e.store.SaveUserData(ctx, email, res.State.UserData()); err != nil {
		return res, fmt.Errorf("save user data: %w", err)
	}
	if err := e.store.SetCarryOverMarker(ctx, email, res.Marker); err != nil {
		return res, fmt.Errorf("set carry-over marker: %w", err)
	}

	e.logger.InfoContext(ctx, "Rollover applied",
		log.FieldEmail, email,
		log.FieldMonth, core.MonthOf(now, e.loc).String(),
		log.FieldSynthesized, len(res.Synthesized),
		"budgets_reset", res.BudgetsReset)

	if len(res.Synthesized) > 0 {
		notify.Deliver(ctx, e.notifier, e.timeout, e.logger,
			carryOverNotification(email, core.MonthOf(now, e.loc), len(res.Synthesized), now))
	}
	return res, nil
}

// ProcessAll runs OnSessionStart for every known user and returns how many
// ledgers changed. The logged-in user is skipped. Per-user failures are logged
// and do not stop the pass.
func (e *RolloverEngine) ProcessAll(ctx context.Context, now time.Time) (int, error) {
	users, err := e.store.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	changed := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		res, err := e.OnSessionStart(ctx, u.Email, now)
		if errors.Is(err, ErrLiveSession) {
			e.logger.DebugContext(ctx, "Skipping user with a live session", log.FieldEmail, u.Email)
			continue
		}
		if err != nil {
			e.logger.ErrorContext(ctx, "Rollover failed", log.FieldEmail, u.Email, log.FieldError, err)
			continue
		}
		if res.Changed() {
			changed++
		}
	}
	return changed, nil
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
