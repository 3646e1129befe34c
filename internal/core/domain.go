package core

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

const (
	ModeIndividual AppMode = "individual"
	ModeFamily     AppMode = "family"
)

const (
	ReminderAmount   ReminderKind = "amount"
	ReminderCategory ReminderKind = "category"
)

type (
	TransactionType string
	AppMode         string
	ReminderKind    string

	// Date is a calendar day. The time part is always midnight UTC.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	RemindersSent struct {
		Week      bool `json:"week"`
		ThreeDays bool `json:"threeDays"`
		Today     bool `json:"today"`
	}

	Transaction struct {
		ID             string          `json:"id"`
		Date           time.Time       `json:"date"`
		Description    string          `json:"description"`
		Amount         Money           `json:"amount"`
		Type           TransactionType `json:"type"`
		Category       string          `json:"category"`
		IsRecurring    bool            `json:"isRecurring"`
		IsPlanned      bool            `json:"isPlanned"`
		GoalID         string          `json:"goalId,omitempty"`
		IsBillReminder bool            `json:"isBillReminder"`
		DueDate        Date            `json:"dueDate,omitzero"`
		RemindersSent  RemindersSent   `json:"remindersSent"`
		// CreatedAt is when the user entered the transaction; zero for
		// carried-over copies and goal contributions.
		CreatedAt time.Time `json:"createdAt,omitzero"`
	}

	SavingsGoal struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		TargetAmount  Money  `json:"targetAmount"`
		CurrentAmount Money  `json:"currentAmount"`
		TargetDate    Date   `json:"targetDate,omitzero"`
	}

	Budget struct {
		ID          string `json:"id"`
		Category    string `json:"category"`
		Amount      Money  `json:"amount"`
		Notified80  bool   `json:"notified80"`
		Notified100 bool   `json:"notified100"`
	}

	CustomCategory struct {
		ID   string          `json:"id"`
		Name string          `json:"name"`
		Type TransactionType `json:"type"`
		Icon string          `json:"icon,omitempty"`
	}

	CustomReminder struct {
		ID        string       `json:"id"`
		Name      string       `json:"name"`
		Type      ReminderKind `json:"type"`
		Threshold Money        `json:"threshold,omitzero"`
		Category  string       `json:"category,omitempty"`
	}

	FamilyComposition struct {
		Adults   int `json:"adults"`
		Teens    int `json:"teens"`
		Children int `json:"children"`
	}

	DashboardWidget struct {
		ID        string `json:"id"`
		Component string `json:"component"`
		Column    string `json:"column"`
		Order     int    `json:"order"`
		Visible   bool   `json:"visible"`
	}

	DashboardLayout struct {
		Main  []DashboardWidget `json:"main"`
		Aside []DashboardWidget `json:"aside"`
	}

	User struct {
		Email                  string             `json:"email"`
		Mode                   AppMode            `json:"mode"`
		FirstName              string             `json:"firstName,omitempty"`
		FamilyName             string             `json:"familyName,omitempty"`
		FamilyComposition      *FamilyComposition `json:"familyComposition,omitempty"`
		HasCompletedOnboarding bool               `json:"hasCompletedOnboarding"`
		DashboardLayout        *DashboardLayout   `json:"dashboardLayout,omitempty"`
	}

	// UserData is the per-email financial record persisted under the userData key.
	UserData struct {
		Transactions []Transaction `json:"transactions"`
		SavingsGoals []SavingsGoal `json:"savingsGoals"`
		Budgets      []Budget      `json:"budgets"`
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrDescriptionLength = errors.New("description too long (max 200 characters)")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrEmptyDescription  = errors.New("empty description")
	ErrEmptyCategory     = errors.New("empty category")
	ErrEmptyName         = errors.New("empty name")
	ErrRecurringIncome   = errors.New("only expenses can be recurring")
	ErrInvalidTargetDate = errors.New("invalid target date")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidMode       = errors.New("invalid mode")
	ErrInvalidReminder   = errors.New("invalid reminder")
	ErrInvalidLayout     = errors.New("dashboard layout needs main and aside columns")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidDate       = errors.New("invalid date")
	ErrNotFound          = errors.New("not found")
	ErrDuplicateBudget   = errors.New("a budget already exists for this category")
	ErrUserExists        = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
)

// IsValidationError reports whether err is one of the input validation errors.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrDescriptionLength, ErrInvalidType, ErrEmptyDescription, ErrEmptyCategory,
		ErrEmptyName, ErrRecurringIncome, ErrInvalidTargetDate, ErrInvalidEmail,
		ErrInvalidMode, ErrInvalidReminder, ErrInvalidLayout, ErrInvalidMonth, ErrInvalidDate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (m AppMode) Valid() bool {
	return m == ModeIndividual || m == ModeFamily
}

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// In returns midnight of the calendar day in loc.
func (d Date) In(loc *time.Location) time.Time {
	y, m, day := d.Time.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

// AddDays returns the calendar day n days later (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrDescriptionLength
	}
	if t.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.IsRecurring && t.Type != Expense {
		return ErrRecurringIncome
	}
	return nil
}

// IsRealExpense reports whether t counts towards spent totals.
func (t Transaction) IsRealExpense() bool {
	return t.Type == Expense && !t.IsPlanned
}

// IsCarryOverEligible reports whether t is duplicated into the following month
// by a carry-over.
func (t Transaction) IsCarryOverEligible() bool {
	return t.Type == Income || (t.Type == Expense && t.IsRecurring)
}

// IsPendingBill reports whether t is an unpaid bill with a due date.
func (t Transaction) IsPendingBill() bool {
	return t.IsBillReminder && !t.DueDate.IsZero() && t.IsPlanned
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if g.TargetAmount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if g.TargetDate.IsZero() {
		return ErrInvalidTargetDate
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	return b.Amount.Validate()
}

func (c CustomCategory) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (r CustomReminder) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	switch r.Type {
	case ReminderAmount:
		if r.Threshold.Cents <= 0 {
			return ErrInvalidReminder
		}
	case ReminderCategory:
		if strings.TrimSpace(r.Category) == "" {
			return ErrInvalidReminder
		}
	default:
		return ErrInvalidReminder
	}
	return nil
}

func (u User) Validate() error {
	addr, err := mail.ParseAddress(u.Email)
	if err != nil || addr.Address != u.Email {
		return ErrInvalidEmail
	}
	if !u.Mode.Valid() {
		return ErrInvalidMode
	}
	return nil
}

// DisplayName is the first name for individuals and the family name for families.
func (u User) DisplayName() string {
	if u.Mode == ModeIndividual {
		return u.FirstName
	}
	return u.FamilyName
}

// Valid reports whether both layout columns are present.
func (l *DashboardLayout) Valid() bool {
	return l != nil && l.Main != nil && l.Aside != nil
}
