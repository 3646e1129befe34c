package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"alice/internal/core"

	"github.com/shopspring/decimal"
)

// DecodeReport records what the validated decode repaired or discarded.
type DecodeReport struct {
	Corrupt   bool // the blob itself was unreadable and defaults were used
	Dropped   int  // null or unusable elements removed
	Repaired  int  // fields coerced or defaulted
	Generated int  // ids created for elements without one
	Problems  []string
}

// Clean reports whether the data decoded without any repair.
func (r DecodeReport) Clean() bool {
	return !r.Corrupt && r.Dropped == 0 && r.Repaired == 0 && r.Generated == 0
}

func (r DecodeReport) String() string {
	return fmt.Sprintf("corrupt=%t dropped=%d repaired=%d generated=%d", r.Corrupt, r.Dropped, r.Repaired, r.Generated)
}

const maxProblems = 20

func (r *DecodeReport) note(counter *int, format string, args ...any) {
	if counter != nil {
		*counter++
	}
	if len(r.Problems) < maxProblems {
		r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
	}
}

func (r *DecodeReport) corrupt(format string, args ...any) {
	r.Corrupt = true
	r.note(nil, format, args...)
}

// object is one decoded JSON object with lazily interpreted fields.
type object map[string]json.RawMessage

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeObjects(raw json.RawMessage, what string, r *DecodeReport) []object {
	if isNull(raw) {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		r.corrupt("%s: not an array", what)
		return nil
	}
	out := make([]object, 0, len(elems))
	for i, e := range elems {
		if isNull(e) {
			r.note(&r.Dropped, "%s[%d]: null entry", what, i)
			continue
		}
		var o object
		if err := json.Unmarshal(e, &o); err != nil {
			r.note(&r.Dropped, "%s[%d]: not an object", what, i)
			continue
		}
		out = append(out, o)
	}
	return out
}

func (o object) str(key string) string {
	var s string
	if raw, ok := o[key]; ok && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

func (o object) boolean(key string) bool {
	var b bool
	if raw, ok := o[key]; ok && json.Unmarshal(raw, &b) == nil {
		return b
	}
	return false
}

func (o object) has(key string) bool {
	raw, ok := o[key]
	return ok && !isNull(raw)
}

// id returns the element id, generating one with prefix when absent.
func (o object) id(prefix, where string, r *DecodeReport) string {
	if id := o.str("id"); id != "" {
		return id
	}
	r.note(&r.Generated, "%s: missing id", where)
	return core.NewID(prefix)
}

// money reads a numeric field. Strings holding a number are accepted; missing,
// non-numeric and negative values become 0.
func (o object) money(key, where string, r *DecodeReport) core.Money {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		r.note(&r.Repaired, "%s.%s: missing, using 0", where, key)
		return core.Money{}
	}
	raw = bytes.TrimSpace(raw)
	var d decimal.Decimal
	switch raw[0] {
	case '"':
		var s string
		_ = json.Unmarshal(raw, &s)
		m, err := core.ParseAmount(s)
		if err != nil {
			r.note(&r.Repaired, "%s.%s: %q is not a number, using 0", where, key, s)
			return core.Money{}
		}
		r.note(&r.Repaired, "%s.%s: numeric string converted", where, key)
		return m
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var err error
		if d, err = decimal.NewFromString(string(raw)); err != nil {
			r.note(&r.Repaired, "%s.%s: unreadable number, using 0", where, key)
			return core.Money{}
		}
	default:
		r.note(&r.Repaired, "%s.%s: not a number, using 0", where, key)
		return core.Money{}
	}
	if d.IsNegative() {
		r.note(&r.Repaired, "%s.%s: negative, using 0", where, key)
		return core.Money{}
	}
	return core.MoneyFromDecimal(d)
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// DecodeUserData validates a persisted {transactions, savingsGoals, budgets}
// record. It never fails: unusable parts are dropped or defaulted and listed
// in the report.
func DecodeUserData(raw []byte) (core.UserData, DecodeReport) {
	var r DecodeReport
	data := core.UserData{
		Transactions: []core.Transaction{},
		SavingsGoals: []core.SavingsGoal{},
		Budgets:      []core.Budget{},
	}
	if isNull(raw) {
		return data, r
	}
	var top object
	if err := json.Unmarshal(raw, &top); err != nil {
		r.corrupt("userData: not an object")
		return data, r
	}

	for i, o := range decodeObjects(top["transactions"], "transactions", &r) {
		if tx, ok := decodeTransaction(o, fmt.Sprintf("transactions[%d]", i), &r); ok {
			data.Transactions = append(data.Transactions, tx)
		}
	}
	for i, o := range decodeObjects(top["savingsGoals"], "savingsGoals", &r) {
		data.SavingsGoals = append(data.SavingsGoals, decodeGoal(o, fmt.Sprintf("savingsGoals[%d]", i), &r))
	}
	for i, o := range decodeObjects(top["budgets"], "budgets", &r) {
		data.Budgets = append(data.Budgets, decodeBudget(o, fmt.Sprintf("budgets[%d]", i), &r))
	}
	return data, r
}

func decodeTransaction(o object, where string, r *DecodeReport) (core.Transaction, bool) {
	typ := core.TransactionType(o.str("type"))
	if !typ.Valid() {
		r.note(&r.Dropped, "%s: invalid type %q", where, typ)
		return core.Transaction{}, false
	}
	date, err := parseTimestamp(o.str("date"))
	if err != nil {
		r.note(&r.Dropped, "%s: invalid date", where)
		return core.Transaction{}, false
	}
	tx := core.Transaction{
		ID:             o.id("trans", where, r),
		Date:           date,
		Description:    o.str("description"),
		Amount:         o.money("amount", where, r),
		Type:           typ,
		Category:       o.str("category"),
		IsRecurring:    o.boolean("isRecurring"),
		IsPlanned:      o.boolean("isPlanned"),
		GoalID:         o.str("goalId"),
		IsBillReminder: o.boolean("isBillReminder"),
	}
	if s := o.str("createdAt"); s != "" {
		if created, err := time.Parse(time.RFC3339Nano, s); err == nil {
			tx.CreatedAt = created
		} else {
			r.note(&r.Repaired, "%s: invalid createdAt %q cleared", where, s)
		}
	}
	if s := o.str("dueDate"); s != "" {
		if due, err := core.ParseDate(s); err == nil {
			tx.DueDate = due
		} else {
			r.note(&r.Repaired, "%s: invalid dueDate %q cleared", where, s)
		}
	}
	if o.has("remindersSent") {
		var sent object
		if json.Unmarshal(o["remindersSent"], &sent) == nil {
			tx.RemindersSent = core.RemindersSent{
				Week:      sent.boolean("week"),
				ThreeDays: sent.boolean("threeDays"),
				Today:     sent.boolean("today"),
			}
		} else {
			r.note(&r.Repaired, "%s: remindersSent reset", where)
		}
	} else {
		r.note(&r.Repaired, "%s: remindersSent defaulted", where)
	}
	return tx, true
}

func decodeGoal(o object, where string, r *DecodeReport) core.SavingsGoal {
	g := core.SavingsGoal{
		ID:            o.id("goal", where, r),
		Name:          o.str("name"),
		TargetAmount:  o.money("targetAmount", where, r),
		CurrentAmount: o.money("currentAmount", where, r),
	}
	if s := o.str("targetDate"); s != "" {
		if d, err := core.ParseDate(s); err == nil {
			g.TargetDate = d
		} else {
			r.note(&r.Repaired, "%s: invalid targetDate %q cleared", where, s)
		}
	}
	return g
}

func decodeBudget(o object, where string, r *DecodeReport) core.Budget {
	return core.Budget{
		ID:          o.id("budget", where, r),
		Category:    o.str("category"),
		Amount:      o.money("amount", where, r),
		Notified80:  o.boolean("notified80"),
		Notified100: o.boolean("notified100"),
	}
}

// DecodeCategories validates a persisted custom category list.
func DecodeCategories(raw []byte) ([]core.CustomCategory, DecodeReport) {
	var r DecodeReport
	out := []core.CustomCategory{}
	for i, o := range decodeObjects(raw, "customCategories", &r) {
		where := fmt.Sprintf("customCategories[%d]", i)
		typ := core.TransactionType(o.str("type"))
		name := strings.TrimSpace(o.str("name"))
		if !typ.Valid() || name == "" {
			r.note(&r.Dropped, "%s: missing name or type", where)
			continue
		}
		out = append(out, core.CustomCategory{
			ID:   o.id("cat", where, &r),
			Name: name,
			Type: typ,
			Icon: o.str("icon"),
		})
	}
	return out, r
}

// DecodeReminders validates a persisted custom reminder list.
func DecodeReminders(raw []byte) ([]core.CustomReminder, DecodeReport) {
	var r DecodeReport
	out := []core.CustomReminder{}
	for i, o := range decodeObjects(raw, "customReminders", &r) {
		where := fmt.Sprintf("customReminders[%d]", i)
		rem := core.CustomReminder{
			Name:     o.str("name"),
			Type:     core.ReminderKind(o.str("type")),
			Category: o.str("category"),
		}
		switch rem.Type {
		case core.ReminderAmount:
			rem.Threshold = o.money("threshold", where, &r)
		case core.ReminderCategory:
		default:
			r.note(&r.Dropped, "%s: invalid type %q", where, rem.Type)
			continue
		}
		rem.ID = o.id("reminder", where, &r)
		out = append(out, rem)
	}
	return out, r
}

// DecodeUsers validates the persisted email -> user map. Records that cannot
// be read are dropped.
func DecodeUsers(raw []byte) (map[string]core.User, DecodeReport) {
	var r DecodeReport
	users := make(map[string]core.User)
	if isNull(raw) {
		return users, r
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		r.corrupt("users: not an object")
		return users, r
	}
	for email, rec := range top {
		u, err := DecodeUser(rec)
		if err != nil {
			r.note(&r.Dropped, "users[%s]: %v", email, err)
			continue
		}
		if u.Email == "" {
			u.Email = email
			r.note(&r.Repaired, "users[%s]: email filled from key", email)
		}
		users[email] = u
	}
	return users, r
}

// DecodeUser reads a single user record.
func DecodeUser(raw []byte) (core.User, error) {
	if isNull(raw) {
		return core.User{}, fmt.Errorf("empty user record")
	}
	var u core.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return core.User{}, fmt.Errorf("decode user: %w", err)
	}
	if u.Mode != "" && !u.Mode.Valid() {
		return core.User{}, core.ErrInvalidMode
	}
	return u, nil
}
