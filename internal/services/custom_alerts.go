package services

import (
	"fmt"
	"time"

	"alice/internal/core"
)

// CustomAlertWindow is how recent the newest transaction must be for custom
// alerts to consider it.
const CustomAlertWindow = 5 * time.Second

// EvaluateCustomAlerts checks the newest transaction against the user's
// reminders. Category reminders fire on an equal category and amount reminders
// on an expense strictly above the threshold. Recency is measured from the
// moment the transaction was entered, not from its date: planned transactions,
// transactions without a creation time and those created more than
// CustomAlertWindow ago are ignored. Alerts carry no state and fire again for
// every matching transaction.
func EvaluateCustomAlerts(latest core.Transaction, reminders []core.CustomReminder, now time.Time) []core.Notification {
	if latest.ID == "" || latest.IsPlanned || latest.CreatedAt.IsZero() || len(reminders) == 0 {
		return nil
	}
	if age := now.Sub(latest.CreatedAt); age < 0 || age >= CustomAlertWindow {
		return nil
	}

	var notes []core.Notification
	for _, r := range reminders {
		var body string
		switch {
		case r.Type == core.ReminderCategory && r.Category == latest.Category:
			body = fmt.Sprintf("New %s transaction: %s (€%s).", r.Category, latest.Description, latest.Amount)
		case r.Type == core.ReminderAmount && latest.Type == core.Expense &&
			r.Threshold.Cents > 0 && latest.Amount.Cents > r.Threshold.Cents:
			body = fmt.Sprintf("%s (€%s) is above your €%s alert.", latest.Description, latest.Amount, r.Threshold)
		default:
			continue
		}
		notes = append(notes, core.Notification{
			Kind:      core.KindCustomAlert,
			Title:     "Alert: " + r.Name,
			Body:      body,
			CreatedAt: now,
		})
	}
	return notes
}
