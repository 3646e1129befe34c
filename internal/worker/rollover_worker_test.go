package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"alice/internal/core"
	"alice/internal/services"
	"alice/internal/storage"
	"alice/internal/storage/memory"
)

func seededStore(t *testing.T, users int) *storage.KVStore {
	t.Helper()
	ctx := context.Background()
	store := storage.NewKVStore(memory.New(), nil)
	for i := range users {
		email := string(rune('a'+i)) + "@example.com"
		if err := store.SaveUser(ctx, core.User{Email: email, Mode: core.ModeIndividual, FirstName: "U"}); err != nil {
			t.Fatalf("save user: %v", err)
		}
		data := core.UserData{Transactions: []core.Transaction{{
			ID: "salary", Date: time.Date(2025, time.February, 1, 9, 0, 0, 0, time.UTC), Description: "Salary",
			Amount: core.Money{Cents: 100000}, Type: core.Income, Category: "Salary",
		}}}
		if err := store.SaveUserData(ctx, email, data); err != nil {
			t.Fatalf("save data: %v", err)
		}
	}
	return store
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Interval != time.Hour {
		t.Errorf("expected Interval 1h, got %v", cfg.Interval)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("expected Concurrency 4, got %d", cfg.Concurrency)
	}
	if cfg.Now == nil {
		t.Error("expected a default clock")
	}
}

func TestRunOnceProcessesEveryUser(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t, 6)
	w := NewRolloverWorker(services.NewRolloverEngine(store, nil, time.UTC, nil), store, Config{Concurrency: 3}, nil)
	now := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)

	res, err := w.RunOnce(ctx, now)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Users != 6 || res.Changed != 6 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	// Concurrent saves to the shared blob must not lose any user.
	users, _ := store.ListUsers(ctx)
	for _, u := range users {
		data, _ := store.LoadUserData(ctx, u.Email)
		if len(data.Transactions) != 2 {
			t.Fatalf("%s has %d transactions, want 2", u.Email, len(data.Transactions))
		}
	}

	res, err = w.RunOnce(ctx, now.Add(time.Hour))
	if err != nil || res.Changed != 0 {
		t.Fatalf("second pass should change nothing: %+v %v", res, err)
	}
}

func TestRunOnceSkipsLoggedInUser(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t, 3)
	if err := store.SetLoggedInUser(ctx, "b@example.com"); err != nil {
		t.Fatal(err)
	}
	w := NewRolloverWorker(services.NewRolloverEngine(store, nil, time.UTC, nil), store, Config{}, nil)

	res, err := w.RunOnce(ctx, time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Users != 3 || res.Changed != 2 || res.Skipped != 1 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if data, _ := store.LoadUserData(ctx, "b@example.com"); len(data.Transactions) != 1 {
		t.Fatalf("logged-in user was rolled over: %+v", data.Transactions)
	}
}

type failingUsers struct{ *storage.KVStore }

func (failingUsers) ListUsers(context.Context) ([]core.User, error) {
	return nil, errors.New("backend down")
}

func TestRunOnceListFailure(t *testing.T) {
	store := failingUsers{seededStore(t, 1)}
	w := NewRolloverWorker(services.NewRolloverEngine(store, nil, nil, nil), store, DefaultConfig(), nil)
	if _, err := w.RunOnce(context.Background(), time.Now()); err == nil {
		t.Fatal("expected list error")
	}
}

func TestRolloverWorkerLifecycle(t *testing.T) {
	store := seededStore(t, 1)
	w := NewRolloverWorker(services.NewRolloverEngine(store, nil, nil, nil), store, Config{Interval: 50 * time.Millisecond}, nil)

	if w.IsRunning() {
		t.Fatal("worker should not be running initially")
	}
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.Start(ctx); err == nil {
		t.Fatal("second Start should fail")
	}
	if !w.IsRunning() {
		t.Fatal("worker should be running")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if w.IsRunning() {
		t.Fatal("worker should be stopped")
	}
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("stopping twice should be a no-op: %v", err)
	}
}
