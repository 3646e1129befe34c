package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"alice/internal/backend"
	"alice/internal/config"
	"alice/internal/core"
	"alice/internal/log"
	"alice/internal/services"
	"alice/internal/storage"
	"alice/internal/storage/memory"
)

const testEmail = "ada@example.com"

func seededStore(t *testing.T) *storage.KVStore {
	t.Helper()
	ctx := context.Background()
	store := storage.NewKVStore(memory.New(), nil)
	if err := store.SaveUser(ctx, core.User{Email: testEmail, Mode: core.ModeIndividual, FirstName: "Ada"}); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	data := core.UserData{
		Transactions: []core.Transaction{
			{
				ID: "trans-rent", Date: time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC),
				Description: "Rent", Amount: core.Money{Cents: 80000}, Type: core.Expense,
				Category: "Rent", IsRecurring: true,
			},
			{
				ID: "trans-shop", Date: time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC),
				Description: "Market", Amount: core.Money{Cents: 4550}, Type: core.Expense,
				Category: "Groceries",
			},
		},
		Budgets: []core.Budget{{ID: "budget-1", Category: "Groceries", Amount: core.Money{Cents: 10000}}},
	}
	if err := store.SaveUserData(ctx, testEmail, data); err != nil {
		t.Fatalf("SaveUserData: %v", err)
	}
	return store
}

func run(t *testing.T, store *storage.KVStore, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"ALICE_CONFIG_FILE", "AMQP_URL", "LOG_FORMAT", "TIMEZONE"} {
		t.Setenv(key, "")
	}
	t.Setenv("DATA_BACKEND", "memory")

	d := deps{
		open: func(context.Context, *config.Config, *log.Logger) (*backend.BackendResult, error) {
			return &backend.BackendResult{Store: store, Cleanup: func() error { return nil }}, nil
		},
		now: func() time.Time { return time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC) },
	}
	cmd := newRootCmd(d)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestUsersCommand(t *testing.T) {
	out, err := run(t, seededStore(t), "users")
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if !strings.Contains(out, testEmail) || !strings.Contains(out, "individual") || !strings.Contains(out, "1 user(s)") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = run(t, storage.NewKVStore(memory.New(), nil), "users")
	if err != nil {
		t.Fatalf("users on empty store: %v", err)
	}
	if !strings.Contains(out, "No users registered.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRolloverCommand(t *testing.T) {
	store := seededStore(t)

	out, err := run(t, store, "rollover", "--email", testEmail)
	if err != nil {
		t.Fatalf("rollover: %v", err)
	}
	if !strings.Contains(out, "1 transaction(s) carried into 2025-04") {
		t.Errorf("unexpected output: %q", out)
	}

	data, err := store.LoadUserData(context.Background(), testEmail)
	if err != nil {
		t.Fatal(err)
	}
	if len(data.Transactions) != 3 {
		t.Fatalf("expected the rent to be carried over, have %d transactions", len(data.Transactions))
	}

	out, err = run(t, store, "rollover", "--email", testEmail)
	if err != nil {
		t.Fatalf("second rollover: %v", err)
	}
	if !strings.Contains(out, "already processed for 2025-04") {
		t.Errorf("unexpected output: %q", out)
	}

	out, err = run(t, store, "rollover", "--all")
	if err != nil {
		t.Fatalf("rollover --all: %v", err)
	}
	if !strings.Contains(out, "0 ledger(s) changed") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestRolloverRefusesLoggedInUser(t *testing.T) {
	store := seededStore(t)
	if err := store.SetLoggedInUser(context.Background(), testEmail); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, store, "rollover", "--email", testEmail); !errors.Is(err, services.ErrLiveSession) {
		t.Fatalf("expected ErrLiveSession, got %v", err)
	}
	out, err := run(t, store, "rollover", "--all")
	if err != nil {
		t.Fatalf("rollover --all: %v", err)
	}
	if !strings.Contains(out, "0 ledger(s) changed") {
		t.Errorf("unexpected output: %q", out)
	}
	if data, _ := store.LoadUserData(context.Background(), testEmail); len(data.Transactions) != 2 {
		t.Fatalf("logged-in ledger was rewritten: %d transactions", len(data.Transactions))
	}
}

func TestRolloverFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no target", args: []string{"rollover"}},
		{name: "both targets", args: []string{"rollover", "--email", testEmail, "--all"}},
		{name: "unknown user", args: []string{"rollover", "--email", "nobody@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, seededStore(t), tt.args...); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestSummaryCommand(t *testing.T) {
	store := seededStore(t)

	out, err := run(t, store, "summary", "--email", testEmail, "--month", "2025-03")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	for _, want := range []string{"Ada", "March 2025", "€845.50", "Groceries", "€45.50", "45%"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, store, "summary", "--email", testEmail, "--month", "March"); !errors.Is(err, core.ErrInvalidMonth) {
		t.Errorf("bad month error = %v", err)
	}
	if _, err := run(t, store, "summary", "--email", "nobody@example.com"); !errors.Is(err, core.ErrUserNotFound) {
		t.Errorf("unknown user error = %v", err)
	}
	if _, err := run(t, store, "summary"); err == nil {
		t.Error("expected --email to be required")
	}
}

func TestExportCommand(t *testing.T) {
	store := seededStore(t)
	if err := store.SetCarryOverMarker(context.Background(), testEmail, "2025-2"); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, store, "export", "--email", testEmail)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var doc exportDocument
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode export: %v\n%s", err, out)
	}
	if doc.User.Email != testEmail || len(doc.Data.Transactions) != 2 || len(doc.Data.Budgets) != 1 {
		t.Errorf("unexpected export: %+v", doc)
	}
	if doc.CarryOverMarker != "2025-2" {
		t.Errorf("marker = %q, want 2025-2", doc.CarryOverMarker)
	}
}

func TestNotificationsTailNeedsBroker(t *testing.T) {
	_, err := run(t, seededStore(t), "notifications", "tail")
	if err == nil || !strings.Contains(err.Error(), "AMQP_URL") {
		t.Fatalf("expected a missing broker error, got %v", err)
	}
}
