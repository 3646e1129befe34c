// Package storage persists per-user state in a key-value layout:
//
//	users                      email -> user record
//	userData                   email -> {transactions, savingsGoals, budgets}
//	customCategories_<email>   custom categories
//	customReminders_<email>    custom reminders
//	lastAutoCarryOver_<email>  "<year>-<monthIndex>" of the last processed month
//	loggedInUser               email of the active session
//
// Loads never fail because of missing or malformed data; they fall back to
// empty collections and log what was repaired.
package storage

import (
	"context"
	"strings"

	"alice/internal/core"
)

const (
	KeyUsers        = "users"
	KeyUserData     = "userData"
	KeyLoggedInUser = "loggedInUser"
)

func CategoriesKey(email string) string { return "customCategories_" + email }
func RemindersKey(email string) string  { return "customReminders_" + email }
func MarkerKey(email string) string     { return "lastAutoCarryOver_" + email }

// SharedKey reports whether key can be written by more than one process (the
// server, the rollover worker and alicectl). Shared keys are never served from
// a process-local cache.
func SharedKey(key string) bool {
	switch key {
	case KeyUsers, KeyUserData, KeyLoggedInUser:
		return true
	}
	return strings.HasPrefix(key, MarkerKey(""))
}

// Store is the persistence port used by the services.
type Store interface {
	LoadUserData(ctx context.Context, email string) (core.UserData, error)
	SaveUserData(ctx context.Context, email string, data core.UserData) error

	GetCarryOverMarker(ctx context.Context, email string) (string, error)
	SetCarryOverMarker(ctx context.Context, email, monthKey string) error

	GetCustomCategories(ctx context.Context, email string) ([]core.CustomCategory, error)
	SetCustomCategories(ctx context.Context, email string, cats []core.CustomCategory) error
	GetCustomReminders(ctx context.Context, email string) ([]core.CustomReminder, error)
	SetCustomReminders(ctx context.Context, email string, reminders []core.CustomReminder) error

	GetUser(ctx context.Context, email string) (core.User, error)
	SaveUser(ctx context.Context, u core.User) error
	ListUsers(ctx context.Context) ([]core.User, error)

	GetLoggedInUser(ctx context.Context) (string, error)
	SetLoggedInUser(ctx context.Context, email string) error
	ClearLoggedInUser(ctx context.Context) error
}

// KV is a string key-value backend.
type KV interface {
	// Get returns ok=false when the key does not exist.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Update replaces the value of key with the result of fn, atomically with
	// respect to every other writer of the backend. Nothing is written when
	// fn fails.
	Update(ctx context.Context, key string, fn func(old string, ok bool) (string, error)) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
