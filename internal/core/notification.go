package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	KindBudgetWarning NotificationKind = "budget_warning"
	KindBudgetLimit   NotificationKind = "budget_limit"
	KindBillReminder  NotificationKind = "bill_reminder"
	KindCustomAlert   NotificationKind = "custom_alert"
	KindCarryOver     NotificationKind = "carry_over"
)

// Notification is a request to the platform notification collaborator.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Email     string           `json:"email,omitempty"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Icon      string           `json:"icon,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// IDFunc generates identifiers such as "trans-<uuid>".
type IDFunc func(prefix string) string

// NewID returns prefix-<random uuid>.
func NewID(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "-")
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "-" + uuid.NewString()
}
