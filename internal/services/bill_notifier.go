package services

import (
	"fmt"
	"time"

	"alice/internal/core"
)

type billReminder struct {
	daysBefore int
	sent       func(*core.RemindersSent) *bool
	when       string
}

var billReminders = []billReminder{
	{7, func(r *core.RemindersSent) *bool { return &r.Week }, "is due in one week"},
	{3, func(r *core.RemindersSent) *bool { return &r.ThreeDays }, "is due in 3 days"},
	{0, func(r *core.RemindersSent) *bool { return &r.Today }, "is due today"},
}

// EvaluateBills emits the reminders of unpaid bills whose reminder day is
// today: one week, three days and zero days before the due date. Each reminder
// is sent once per bill; the flags are never reset. The returned slice is a
// new one only when a flag changed.
func EvaluateBills(txns []core.Transaction, today core.Date, now time.Time) ([]core.Transaction, []core.Notification) {
	var (
		out   []core.Transaction
		notes []core.Notification
	)
	for i, t := range txns {
		if !t.IsPendingBill() {
			continue
		}
		changed := false
		for _, r := range billReminders {
			flag := r.sent(&t.RemindersSent)
			if *flag || !t.DueDate.AddDays(-r.daysBefore).Equal(today.Time) {
				continue
			}
			*flag = true
			changed = true
			notes = append(notes, core.Notification{
				Kind:      core.KindBillReminder,
				Title:     "Bill reminder",
				Body:      fmt.Sprintf("%q %s. Amount: €%s.", t.Description, r.when, t.Amount),
				CreatedAt: now,
			})
		}
		if !changed {
			continue
		}
		if out == nil {
			out = make([]core.Transaction, len(txns))
			copy(out, txns)
		}
		out[i] = t
	}
	if out == nil {
		return txns, nil
	}
	return out, notes
}
