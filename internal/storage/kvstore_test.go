package storage_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"alice/internal/cache"
	"alice/internal/core"
	"alice/internal/storage"
	"alice/internal/storage/memory"
)

func sampleData() core.UserData {
	return core.UserData{
		Transactions: []core.Transaction{{
			ID:             "trans-1",
			Date:           time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
			Description:    "Power",
			Amount:         core.Money{Cents: 4599},
			Type:           core.Expense,
			Category:       "Bill - Electricity",
			IsPlanned:      true,
			IsBillReminder: true,
			DueDate:        core.NewDate(2025, 3, 15),
			RemindersSent:  core.RemindersSent{Week: true},
		}},
		SavingsGoals: []core.SavingsGoal{{ID: "goal-1", Name: "Car", TargetAmount: core.Money{Cents: 120000}, TargetDate: core.NewDate(2025, 7, 1)}},
		Budgets:      []core.Budget{{ID: "budget-1", Category: "Groceries", Amount: core.Money{Cents: 10000}, Notified80: true}},
	}
}

func TestUserDataRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := storage.NewKVStore(memory.New(), nil)

	if err := s.SaveUserData(ctx, "a@b.com", sampleData()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveUserData(ctx, "c@d.com", core.UserData{}); err != nil {
		t.Fatalf("save other: %v", err)
	}
	got, err := s.LoadUserData(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := sampleData()
	if len(got.Transactions) != 1 || len(got.SavingsGoals) != 1 || len(got.Budgets) != 1 {
		t.Fatalf("unexpected data: %+v", got)
	}
	tx := got.Transactions[0]
	if tx.ID != "trans-1" || tx.Amount != want.Transactions[0].Amount || !tx.Date.Equal(want.Transactions[0].Date) {
		t.Fatalf("transaction mismatch: %+v", tx)
	}
	if !tx.DueDate.Equal(want.Transactions[0].DueDate.Time) || tx.RemindersSent != want.Transactions[0].RemindersSent {
		t.Fatalf("bill fields mismatch: %+v", tx)
	}
	if got.Budgets[0] != want.Budgets[0] {
		t.Fatalf("budget mismatch: %+v", got.Budgets[0])
	}

	other, err := s.LoadUserData(ctx, "c@d.com")
	if err != nil || other.Transactions == nil || len(other.Transactions) != 0 {
		t.Fatalf("other user: %+v %v", other, err)
	}
}

func TestLoadUserDataToleratesCorruption(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := storage.NewKVStore(kv, nil)

	_ = kv.Set(ctx, storage.KeyUserData, `{"a@b.com":{"transactions":[null,{"id":"x","date":"2025-01-01","amount":"9","type":"EXPENSE","category":"Rent"}]}}`)
	data, err := s.LoadUserData(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(data.Transactions) != 1 || data.Transactions[0].Amount.Cents != 900 {
		t.Fatalf("unexpected: %+v", data.Transactions)
	}

	_ = kv.Set(ctx, storage.KeyUserData, `not json`)
	data, err = s.LoadUserData(ctx, "a@b.com")
	if err != nil || len(data.Transactions) != 0 {
		t.Fatalf("corrupt blob should load empty: %+v %v", data, err)
	}
	if err := s.SaveUserData(ctx, "a@b.com", sampleData()); err != nil {
		t.Fatalf("save over corrupt blob: %v", err)
	}

	_ = kv.Set(ctx, storage.CategoriesKey("a@b.com"), `{{`)
	cats, err := s.GetCustomCategories(ctx, "a@b.com")
	if err != nil || cats == nil || len(cats) != 0 {
		t.Fatalf("corrupt categories: %+v %v", cats, err)
	}
}

func TestMarkerCategoriesReminders(t *testing.T) {
	ctx := context.Background()
	s := storage.NewKVStore(memory.New(), nil)

	if m, err := s.GetCarryOverMarker(ctx, "a@b.com"); err != nil || m != "" {
		t.Fatalf("missing marker: %q %v", m, err)
	}
	_ = s.SetCarryOverMarker(ctx, "a@b.com", "2025-2")
	if m, _ := s.GetCarryOverMarker(ctx, "a@b.com"); m != "2025-2" {
		t.Fatalf("marker: %q", m)
	}

	_ = s.SetCustomCategories(ctx, "a@b.com", []core.CustomCategory{{ID: "c1", Name: "Pets", Type: core.Expense}})
	cats, _ := s.GetCustomCategories(ctx, "a@b.com")
	if len(cats) != 1 || cats[0].Name != "Pets" {
		t.Fatalf("categories: %+v", cats)
	}

	_ = s.SetCustomReminders(ctx, "a@b.com", []core.CustomReminder{{ID: "r1", Name: "Big", Type: core.ReminderAmount, Threshold: core.Money{Cents: 5000}}})
	rems, _ := s.GetCustomReminders(ctx, "a@b.com")
	if len(rems) != 1 || rems[0].Threshold.Cents != 5000 {
		t.Fatalf("reminders: %+v", rems)
	}
	if rems, _ := s.GetCustomReminders(ctx, "nobody@b.com"); rems == nil || len(rems) != 0 {
		t.Fatalf("missing reminders should be empty")
	}
}

func TestUsersAndSession(t *testing.T) {
	ctx := context.Background()
	s := storage.NewKVStore(memory.New(), nil)

	if _, err := s.GetUser(ctx, "a@b.com"); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := s.SaveUser(ctx, core.User{Email: "bad", Mode: core.ModeFamily}); !errors.Is(err, core.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	for _, email := range []string{"z@b.com", "a@b.com"} {
		if err := s.SaveUser(ctx, core.User{Email: email, Mode: core.ModeIndividual, FirstName: "X"}); err != nil {
			t.Fatalf("save user: %v", err)
		}
	}
	users, err := s.ListUsers(ctx)
	if err != nil || len(users) != 2 || users[0].Email != "a@b.com" {
		t.Fatalf("list: %+v %v", users, err)
	}

	_ = s.SetLoggedInUser(ctx, "a@b.com")
	if e, _ := s.GetLoggedInUser(ctx); e != "a@b.com" {
		t.Fatalf("logged in: %q", e)
	}
	_ = s.ClearLoggedInUser(ctx)
	if e, _ := s.GetLoggedInUser(ctx); e != "" {
		t.Fatalf("expected cleared session, got %q", e)
	}
}

func TestConcurrentSavesKeepEveryUser(t *testing.T) {
	ctx := context.Background()
	s := storage.NewKVStore(memory.New(), nil)

	emails := []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com", "e@x.com", "f@x.com"}
	var wg sync.WaitGroup
	for _, e := range emails {
		wg.Add(1)
		go func(email string) {
			defer wg.Done()
			_ = s.SaveUserData(ctx, email, sampleData())
		}(e)
	}
	wg.Wait()

	for _, e := range emails {
		d, _ := s.LoadUserData(ctx, e)
		if len(d.Transactions) != 1 {
			t.Fatalf("%s lost its data", e)
		}
	}
}

type failingKV struct{ *memory.KV }

func (failingKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func TestLoadReportsBackendErrors(t *testing.T) {
	s := storage.NewKVStore(failingKV{memory.New()}, nil)
	data, err := s.LoadUserData(context.Background(), "a@b.com")
	if err == nil {
		t.Fatalf("expected backend error")
	}
	if data.Transactions == nil {
		t.Fatalf("empty collections expected alongside the error")
	}
}

func TestCachedKV(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	c := cache.NewLRUCache[string](10, time.Minute)
	kv := storage.NewCachedKV(backend, c)

	_ = kv.Set(ctx, "k", "v1")
	if v, ok, _ := kv.Get(ctx, "k"); !ok || v != "v1" {
		t.Fatalf("get: %q %v", v, ok)
	}
	// Served from cache even if the backend changes underneath.
	_ = backend.Set(ctx, "k", "v2")
	if v, _, _ := kv.Get(ctx, "k"); v != "v1" {
		t.Fatalf("expected cached value, got %q", v)
	}

	_ = kv.Delete(ctx, "k")
	if _, ok, _ := kv.Get(ctx, "k"); ok {
		t.Fatalf("deleted key still visible")
	}
	if _, ok, _ := kv.Get(ctx, "missing"); ok {
		t.Fatalf("missing key reported present")
	}
	if c.Size() != 0 {
		t.Fatalf("misses should not be cached, size=%d", c.Size())
	}
}

func TestCachedKVSharedKeysReadThrough(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	c := cache.NewLRUCache[string](10, time.Minute)
	kv := storage.NewCachedKV(backend, c)

	for _, key := range []string{storage.KeyUserData, storage.KeyUsers, storage.KeyLoggedInUser, storage.MarkerKey("a@b.com")} {
		_ = kv.Set(ctx, key, "mine")
		// Another process writes the same key.
		_ = backend.Set(ctx, key, "theirs")
		if v, _, _ := kv.Get(ctx, key); v != "theirs" {
			t.Errorf("%s: got %q, want the backend value", key, v)
		}
	}
	if c.Size() != 0 {
		t.Fatalf("shared keys must not be cached, size=%d", c.Size())
	}

	if err := kv.Update(ctx, "k", func(old string, ok bool) (string, error) {
		if ok {
			t.Errorf("unexpected old value %q", old)
		}
		return "v1", nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if v, ok := c.Get("k"); !ok || v != "v1" {
		t.Fatalf("updated value not cached: %q %v", v, ok)
	}
}

func TestUpdateFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	_ = kv.Set(ctx, "k", "v1")

	boom := errors.New("boom")
	err := kv.Update(ctx, "k", func(string, bool) (string, error) { return "v2", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if v, _, _ := kv.Get(ctx, "k"); v != "v1" {
		t.Fatalf("value changed to %q", v)
	}
}

func TestSaveUserDataKeepsOtherWritersRecords(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	// Two processes with their own caches over one database.
	server := storage.NewKVStore(storage.NewCachedKV(backend, cache.NewLRUCache[string](10, time.Minute)), nil)
	worker := storage.NewKVStore(storage.NewCachedKV(backend, cache.NewLRUCache[string](10, time.Minute)), nil)

	if err := server.SaveUserData(ctx, "a@x.com", sampleData()); err != nil {
		t.Fatal(err)
	}
	if _, err := server.LoadUserData(ctx, "a@x.com"); err != nil {
		t.Fatal(err)
	}
	if err := worker.SaveUserData(ctx, "b@x.com", sampleData()); err != nil {
		t.Fatal(err)
	}
	if err := server.SaveUserData(ctx, "a@x.com", core.UserData{}); err != nil {
		t.Fatal(err)
	}

	if d, _ := worker.LoadUserData(ctx, "b@x.com"); len(d.Transactions) != 1 {
		t.Fatalf("the server's save dropped b's record: %+v", d)
	}
	if d, _ := server.LoadUserData(ctx, "b@x.com"); len(d.Transactions) != 1 {
		t.Fatalf("the server does not see b's record: %+v", d)
	}
}
