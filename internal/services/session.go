package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"alice/internal/core"
	"alice/internal/ledger"
	"alice/internal/log"
	"alice/internal/notify"
	"alice/internal/storage"
)

var (
	ErrNotLoggedIn       = errors.New("no user logged in")
	ErrNoCarryOverPrompt = errors.New("no carry-over pending for the selected month")
)

type SessionOptions struct {
	Location      *time.Location
	Now           func() time.Time
	NewID         core.IDFunc
	Scheduler     *Scheduler
	NotifyTimeout time.Duration
	Logger        *log.Logger
}

// Session owns the ledger of the logged-in user. Every mutation is serialized
// behind one lock; after each committed change the scheduler's effects run,
// the result is persisted and notifications are delivered outside the lock.
// Persistence failures are logged and never undo the in-memory change.
type Session struct {
	store    storage.Store
	notifier notify.Notifier
	sched    *Scheduler
	loc      *time.Location
	now      func() time.Time
	newID    core.IDFunc
	timeout  time.Duration
	logger   *log.Logger

	mu   sync.Mutex
	user *core.User
	snap Snapshot
}

func NewSession(store storage.Store, notifier notify.Notifier, opts SessionOptions) *Session {
	s := &Session{
		store:    store,
		notifier: notifier,
		sched:    opts.Scheduler,
		loc:      orUTC(opts.Location),
		now:      opts.Now,
		newID:    opts.NewID,
		timeout:  opts.NotifyTimeout,
		logger:   opts.Logger,
	}
	if s.sched == nil {
		s.sched = DefaultScheduler()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = core.NewID
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}
	if s.logger == nil {
		s.logger = log.Nop()
	}
	s.logger = s.logger.WithComponent(log.ComponentSession)
	return s
}

// View is a read-only copy of the session state.
type View struct {
	User     core.User
	Ledger   ledger.State
	Selected core.MonthToken
	Prompt   *CarryOverPrompt
	Location *time.Location
	Today    core.Date
}

func (s *Session) env() Env {
	return Env{Now: s.now(), Loc: s.loc, NewID: s.newID}
}

// EnsureTestUser stores the built-in test account when it does not exist yet.
func (s *Session) EnsureTestUser(ctx context.Context) error {
	u := ledger.TestUser()
	_, err := s.store.GetUser(ctx, u.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrUserNotFound) {
		return fmt.Errorf("get test user: %w", err)
	}
	if err := s.store.SaveUser(ctx, u); err != nil {
		return fmt.Errorf("seed test user: %w", err)
	}
	s.logger.InfoContext(ctx, "Seeded test user", log.FieldEmail, u.Email)
	return nil
}

// Restore logs back in the user recorded as logged in, if any.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	email, err := s.store.GetLoggedInUser(ctx)
	if err != nil {
		return false, fmt.Errorf("get logged in user: %w", err)
	}
	if email == "" {
		return false, nil
	}
	if _, err := s.Login(ctx, email); err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			s.logger.WarnContext(ctx, "Stored session refers to an unknown user", log.FieldEmail, email)
			return false, s.store.ClearLoggedInUser(ctx)
		}
		return false, err
	}
	return true, nil
}

// Register stores a new user and logs them in.
func (s *Session) Register(ctx context.Context, u core.User) (core.User, error) {
	u.Email = strings.TrimSpace(u.Email)
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	if _, err := s.store.GetUser(ctx, u.Email); err == nil {
		return core.User{}, core.ErrUserExists
	} else if !errors.Is(err, core.ErrUserNotFound) {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	if !u.DashboardLayout.Valid() {
		u.DashboardLayout = ledger.DefaultLayout()
	}
	if err := s.store.SaveUser(ctx, u); err != nil {
		return core.User{}, fmt.Errorf("save user: %w", err)
	}
	return s.Login(ctx, u.Email)
}

// Login loads the user's ledger, runs the session-start effects and records
// the session. Any previous session is replaced.
func (s *Session) Login(ctx context.Context, email string) (core.User, error) {
	email = strings.TrimSpace(email)
	u, err := s.store.GetUser(ctx, email)
	if err != nil {
		return core.User{}, err
	}
	if !u.DashboardLayout.Valid() {
		u.DashboardLayout = ledger.DefaultLayout()
	}

	data, err := s.store.LoadUserData(ctx, email)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load user data, starting empty", log.FieldEmail, email, log.FieldError, err)
	}
	cats, err := s.store.GetCustomCategories(ctx, email)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load custom categories", log.FieldEmail, email, log.FieldError, err)
	}
	reminders, err := s.store.GetCustomReminders(ctx, email)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load custom reminders", log.FieldEmail, email, log.FieldError, err)
	}
	marker, err := s.store.GetCarryOverMarker(ctx, email)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load carry-over marker", log.FieldEmail, email, log.FieldError, err)
	}

	env := s.env()
	start := Snapshot{
		Email:    email,
		Ledger:   ledger.FromUserData(data, cats, reminders),
		Marker:   marker,
		Selected: core.MonthOf(env.Now, s.loc),
	}

	s.mu.Lock()
	next, notes := s.sched.Run(TriggerLogin, start, env)
	next.Rolled = start.Selected
	s.user = &u
	s.snap = next
	s.persist(ctx, start, next)
	if err := s.store.SetLoggedInUser(ctx, email); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record session", log.FieldEmail, email, log.FieldError, err)
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "User logged in",
		log.FieldEmail, email,
		log.FieldOperation, log.OpLogin,
		"transactions", len(next.Ledger.Transactions))
	notify.Deliver(ctx, s.notifier, s.timeout, s.logger, notes...)
	return u, nil
}

// Logout drops the in-memory state and the stored session.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.user = nil
	s.snap = Snapshot{}
	s.mu.Unlock()
	if err := s.store.ClearLoggedInUser(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// User returns the logged-in user.
func (s *Session) User() (core.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return core.User{}, false
	}
	return *s.user, true
}

// View returns the session state after bringing it up to date with the store
// and the calendar.
func (s *Session) View(ctx context.Context) (View, error) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return View{}, ErrNotLoggedIn
	}
	env := s.env()
	notes := s.refresh(ctx, env)
	v := View{
		User:     *s.user,
		Ledger:   s.snap.Ledger,
		Selected: s.snap.Selected,
		Prompt:   s.snap.Prompt,
		Location: s.loc,
		Today:    env.Today(),
	}
	s.mu.Unlock()

	notify.Deliver(ctx, s.notifier, s.timeout, s.logger, notes...)
	return v, nil
}

// refresh must be called with s.mu held. When another writer advanced the
// stored carry-over marker past the session's own, the ledger is reloaded
// from the store. When the calendar month has moved on since the
// session-start effects last ran, they run again, as for a new session.
func (s *Session) refresh(ctx context.Context, env Env) []core.Notification {
	email := s.snap.Email
	stored, err := s.store.GetCarryOverMarker(ctx, email)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read carry-over marker", log.FieldEmail, email, log.FieldError, err)
	} else if markerAfter(stored, s.snap.Marker) {
		data, err := s.store.LoadUserData(ctx, email)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to reload user data", log.FieldEmail, email, log.FieldError, err)
		} else {
			s.logger.InfoContext(ctx, "Ledger changed by another writer, reloaded",
				log.FieldEmail, email,
				"marker", stored,
				"previous_marker", s.snap.Marker)
			s.snap.Ledger = ledger.FromUserData(data, s.snap.Ledger.Categories, s.snap.Ledger.Reminders)
			s.snap.Marker = stored
		}
	}

	current := core.MonthOf(env.Now, env.Loc)
	if s.snap.Rolled == current {
		return nil
	}
	prev := s.snap
	next, notes := s.sched.Run(TriggerLogin, prev, env)
	next.Rolled = current
	s.snap = next
	s.persist(ctx, prev, next)
	s.logger.InfoContext(ctx, "Session entered a new month",
		log.FieldEmail, email,
		log.FieldMonth, current.String())
	return notes
}

// markerAfter reports whether marker names a later month than own. An
// unreadable marker is never later.
func markerAfter(marker, own string) bool {
	m, err := core.ParseMonthKey(marker)
	if err != nil {
		return false
	}
	o, err := core.ParseMonthKey(own)
	if err != nil {
		return true
	}
	return o.Before(m)
}

// update applies fn to the snapshot, runs the effects subscribed to trigger
// and persists the ledger when it may have changed.
func (s *Session) update(ctx context.Context, trigger Trigger, fn func(Snapshot, Env) (Snapshot, error)) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return ErrNotLoggedIn
	}
	env := s.env()
	notes := s.refresh(ctx, env)
	next, err := fn(s.snap, env)
	if err != nil {
		s.mu.Unlock()
		notify.Deliver(ctx, s.notifier, s.timeout, s.logger, notes...)
		return err
	}
	next, more := s.sched.Run(trigger, next, env)
	notes = append(notes, more...)
	prev := s.snap
	s.snap = next
	if trigger&(TriggerLogin|TriggerLedgerChange) != 0 {
		s.persist(ctx, prev, next)
	}
	s.mu.Unlock()

	notify.Deliver(ctx, s.notifier, s.timeout, s.logger, notes...)
	return nil
}

func (s *Session) persist(ctx context.Context, prev, next Snapshot) {
	email := next.Email
	var errs []error
	if err := s.store.SaveUserData(ctx, email, next.Ledger.UserData()); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.SetCustomCategories(ctx, email, next.Ledger.Categories); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.SetCustomReminders(ctx, email, next.Ledger.Reminders); err != nil {
		errs = append(errs, err)
	}
	if next.Marker != "" && next.Marker != prev.Marker {
		if err := s.store.SetCarryOverMarker(ctx, email, next.Marker); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist session state", log.FieldEmail, email, log.FieldError, err)
	}
}

// AddTransaction records tx with a fresh id. A zero date means now.
func (s *Session) AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	err := s.update(ctx, TriggerLedgerChange, func(snap Snapshot, env Env) (Snapshot, error) {
		tx.ID = env.NewID("trans")
		tx.CreatedAt = env.Now
		if tx.Date.IsZero() {
			tx.Date = env.Now
		}
		tx.GoalID = ""
		tx.RemindersSent = core.RemindersSent{}
		next, err := snap.Ledger.AddTransaction(tx)
		if err != nil {
			return snap, err
		}
		snap.Ledger = next
		return snap, nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	s.logger.InfoContext(ctx, "Transaction added", log.NewFields().
		WithEmail(s.email()).
		WithTransaction(tx.ID, tx.Amount.Cents, tx.Category).
		WithOperation(log.OpCreate).ToSlice()...)
	return tx, nil
}

func (s *Session) UpdateTransaction(ctx context.Context, id string, patch core.Transaction) (core.Transaction, error) {
	var updated core.Transaction
	err := s.update(ctx, TriggerLedgerChange, func(snap Snapshot, _ Env) (Snapshot, error) {
		next, err := snap.Ledger.UpdateTransaction(id, patch)
		if err != nil {
			return snap, err
		}
		snap.Ledger = next
		updated, _ = next.Transaction(id)
		return snap, nil
	})
	return updated, err
}

func (s *Session) DeleteTransaction(ctx context.Context, id string) error {
	return s.update(ctx, TriggerLedgerChange, func(snap Snapshot, _ Env) (Snapshot, error) {
		next, err := snap.Ledger.DeleteTransaction(id)
		if err != nil {
			return snap, err
		}
		snap.Ledger = next
		return snap, nil
	})
}

// BulkDeleteTransactions removes the listed transactions and returns how many
// existed.
func (s *Session) BulkDeleteTransactions(ctx context.Context, ids []string) (int, error) {
	var n int
	err := s.update(ctx, TriggerLedgerChange, func(snap Snapshot, _ Env) (Snapshot, error) {
		snap.Ledger, n = snap.Ledger.BulkDeleteTransactions(ids)
		return snap, nil
	})
	return n, err
}

func (s *Session) ConfirmTransaction(ctx context.Context, id string) (core.Transaction, error) {
	var confirmed core.Transaction
	err := s.update(ctx, TriggerLedgerChange, func(snap Snapshot, _ Env) (Snapshot, error) {
		next, err := snap.Ledger.ConfirmTransaction(id)
		if err != nil {
			return snap, err
		}
		snap.Ledger = next
		confirmed, _ = next.Transaction(id)
		return snap, nil
	})
	if err == nil {
		s.logger.InfoContext(ctx, "Transaction confirmed",
			log.FieldEmail, s.email(),
			log.FieldTransactionID, id,
			log.FieldOperation, log.OpConfirm)
	}
	return confirmed, err
}

// AddGoal stores g and its planned monthly contribution in the selected month.
func (s *Session) AddGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	err := s.update(ctx, TriggerLedgerChange, func(snap Snapshot, env Env) (Snapshot, error) {
		g.ID = env.NewID("goal")
		next, err := snap.Ledger.AddGoal(g, snap.Selected, env.Now, env.Loc)
		if err != nil {
			return snap, err
		}
		g.CurrentAmount = core.Money{}
		snap.Ledger = next
		return snap, nil
	})
	return g, err
}

func (s *Session) DeleteGoal(ctx context.Context, id string) error {
	return s.update(ctx, TriggerLedgerChange, func(snap Snapshot, _ Env) (Snapshot, error) {
		next, err := snap.Ledger.DeleteGoal(id)
		if err != nil {
			return snap, err
		}
		snap.Ledger = next
		return snap, nil
	})
}

func (s *Session) AddBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	err := s.update(ctx, TriggerLedgerChange, func(snap Snapshot, env Env) (Snapshot, error) {
		b.ID = env.NewID("budget")
		b.Notified80, b.Notified100 = false, false
		next, err := snap.Ledger.AddBudget(b)
		if err != nil {
			return snap, err
		}
		snap.Ledger = next
		return snap, nil
	})
	if err != nil {
		return core.Budget{}, err
	}
	return s.budget(b.ID, b), nil
}

func (s *Session) UpdateBudget(ctx context.Context, id string, patch core.Budget) (core.Budget, error) {
	err := s.update(ctx, TriggerLedgerChange, func(snap Snapshot, _ Env) (Snapshot, error) {
		next, err := snap.Ledger.UpdateBudget(id, patch)
		if err != nil {
			return snap, err
		}
		snap.Ledger = next
		return snap, nil
	})
	if err != nil {
		return core.Budget{}, err
	}
	return s.budget(id, patch), nil
}

// budget returns the current version of budget id after effects ran.
func (s *Session) budget(id string, fallback core.Budget) core.Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.snap.Ledger.Budgets {
		if b.ID == id {
			return b
		}
	}
	return fallback
}

func (s *Session) DeleteBudget(ctx context.Context, id string) error {
	return s.update(ctx, TriggerLedgerChange, func(snap Snapshot, _ Env) (Snapshot, error) {
		next, err := snap.Ledger.DeleteBudget(id)
		if err != nil {
			return snap, err
		}
		snap.Ledger = next
		return snap, nil
	})
}

func (s *Session) AddCategory(ctx context.Context, name string, typ core.TransactionType, icon string) (core.CustomCategory, error) {
	c := core.CustomCategory{Name: strings.TrimSpace(name), Type: typ, Icon: icon}
	err := s.update(ctx, TriggerLedgerChange, func(snap Snapshot, env Env) (Snapshot, error) {
		c.ID = env.NewID("cat")
		next, err := snap.Ledger.AddCategory(c)
		if err != nil {
			return snap, err
		}
		snap.Ledger = next
		return snap, nil
	})
	return c, err
}

func (s *Session) UpdateCategory(ctx context.Context, id, name, icon string) error {
	return s.update(ctx, TriggerLedgerChange, func(snap Snapshot, _ Env) (Snapshot, error) {
		next, err := snap.Ledger.UpdateCategory(id, strings.TrimSpace(name), icon)
		if err != nil {
			return snap, err
		}
		snap.Ledger = next
		return snap, nil
	})
}

func (s *Session) DeleteCategory(ctx context.Context, id string) error {
	return s.update(ctx, TriggerLedgerChange, func(snap Snapshot, _ Env) (Snapshot, error) {
		next, err := snap.Ledger.DeleteCategory(id)
		if err != nil {
			return snap, err
		}
		snap.Ledger = next
		return snap, nil
	})
}

func (s *Session) AddReminder(ctx context.Context, r core.CustomReminder) (core.CustomReminder, error) {
	err := s.update(ctx, TriggerLedgerChange, func(snap Snapshot, env Env) (Snapshot, error) {
		r.ID = env.NewID("reminder")
		next, err := snap.Ledger.AddReminder(r)
		if err != nil {
			return snap, err
		}
		snap.Ledger = next
		return snap, nil
	})
	return r, err
}

func (s *Session) DeleteReminder(ctx context.Context, id string) error {
	return s.update(ctx, TriggerLedgerChange, func(snap Snapshot, _ Env) (Snapshot, error) {
		next, err := snap.Ledger.DeleteReminder(id)
		if err != nil {
			return snap, err
		}
		snap.Ledger = next
		return snap, nil
	})
}

// UpdateUser replaces the profile of the logged-in user. The email cannot change.
func (s *Session) UpdateUser(ctx context.Context, u core.User) (core.User, error) {
	return s.saveUser(ctx, func(cur core.User) (core.User, error) {
		u.Email = cur.Email
		if u.DashboardLayout == nil {
			u.DashboardLayout = cur.DashboardLayout
		}
		return u, nil
	})
}

func (s *Session) CompleteOnboarding(ctx context.Context) (core.User, error) {
	return s.saveUser(ctx, func(cur core.User) (core.User, error) {
		cur.HasCompletedOnboarding = true
		return cur, nil
	})
}

func (s *Session) UpdateLayout(ctx context.Context, layout core.DashboardLayout) (core.User, error) {
	return s.saveUser(ctx, func(cur core.User) (core.User, error) {
		if !layout.Valid() {
			return cur, core.ErrInvalidLayout
		}
		cur.DashboardLayout = &layout
		return cur, nil
	})
}

func (s *Session) saveUser(ctx context.Context, fn func(core.User) (core.User, error)) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return core.User{}, ErrNotLoggedIn
	}
	u, err := fn(*s.user)
	if err != nil {
		return core.User{}, err
	}
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	if err := s.store.SaveUser(ctx, u); err != nil {
		return core.User{}, fmt.Errorf("save user: %w", err)
	}
	s.user = &u
	return u, nil
}

// SelectMonth changes the displayed month and re-evaluates the carry-over prompt.
func (s *Session) SelectMonth(ctx context.Context, m core.MonthToken) (*CarryOverPrompt, error) {
	if m.IsZero() {
		return nil, core.ErrInvalidMonth
	}
	var prompt *CarryOverPrompt
	err := s.update(ctx, TriggerMonthChange, func(snap Snapshot, _ Env) (Snapshot, error) {
		if snap.Selected != m {
			snap.Dismissed = core.MonthToken{}
		}
		snap.Selected = m
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	prompt = s.snap.Prompt
	s.mu.Unlock()
	return prompt, nil
}

// AcceptCarryOver copies the previous month's eligible transactions into the
// selected month and returns how many were added. The marker is not touched.
func (s *Session) AcceptCarryOver(ctx context.Context) (int, error) {
	var added []core.Transaction
	err := s.update(ctx, TriggerLedgerChange, func(snap Snapshot, env Env) (Snapshot, error) {
		if snap.Prompt == nil {
			return snap, ErrNoCarryOverPrompt
		}
		snap.Ledger, added = AcceptCarryOver(snap.Ledger, *snap.Prompt, env.Loc, env.NewID)
		return snap, nil
	})
	if err == nil {
		s.logger.InfoContext(ctx, "Carry-over accepted", log.FieldEmail, s.email(), log.FieldSynthesized, len(added))
	}
	return len(added), err
}

// DismissCarryOver hides the prompt until another month is selected.
func (s *Session) DismissCarryOver(ctx context.Context) error {
	return s.update(ctx, TriggerMonthChange, func(snap Snapshot, _ Env) (Snapshot, error) {
		snap.Dismissed = snap.Selected
		return snap, nil
	})
}

func (s *Session) email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Email
}
