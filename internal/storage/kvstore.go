package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"alice/internal/core"
	"alice/internal/log"
)

// KVStore implements Store over any KV backend.
// The users and userData keys hold one record per email and are rewritten
// through KV.Update, so concurrent writers for different users do not drop
// each other's records.
type KVStore struct {
	kv     KV
	logger *log.Logger
}

var _ Store = (*KVStore)(nil)

func NewKVStore(kv KV, logger *log.Logger) *KVStore {
	if logger == nil {
		logger = log.Nop()
	}
	return &KVStore{kv: kv, logger: logger.WithComponent(log.ComponentStorage)}
}

func (s *KVStore) Ping(ctx context.Context) error { return s.kv.Ping(ctx) }
func (s *KVStore) Close() error                   { return s.kv.Close() }

func (s *KVStore) get(ctx context.Context, key string) ([]byte, error) {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return []byte(v), nil
}

func (s *KVStore) setJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) report(ctx context.Context, key string, r DecodeReport) {
	if r.Clean() {
		return
	}
	s.logger.WarnContext(ctx, "Persisted data repaired on load",
		log.FieldKey, key,
		log.FieldOperation, log.OpDecode,
		"corrupt", r.Corrupt,
		"dropped", r.Dropped,
		"repaired", r.Repaired,
		"generated", r.Generated,
		"problems", strings.Join(r.Problems, "; "))
}

// userDataMap reads the shared userData blob as raw per-email records.
func (s *KVStore) userDataMap(ctx context.Context) (map[string]json.RawMessage, error) {
	raw, err := s.get(ctx, KeyUserData)
	if err != nil {
		return nil, err
	}
	return s.parseUserDataMap(ctx, raw), nil
}

// parseUserDataMap splits the userData blob. Corruption yields an empty map.
func (s *KVStore) parseUserDataMap(ctx context.Context, raw []byte) map[string]json.RawMessage {
	m := make(map[string]json.RawMessage)
	if isNull(raw) {
		return m
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		s.report(ctx, KeyUserData, DecodeReport{Corrupt: true, Problems: []string{"userData: not an object"}})
		return make(map[string]json.RawMessage)
	}
	return m
}

func (s *KVStore) LoadUserData(ctx context.Context, email string) (core.UserData, error) {
	m, err := s.userDataMap(ctx)
	if err != nil {
		empty, _ := DecodeUserData(nil)
		return empty, err
	}
	data, r := DecodeUserData(m[email])
	s.report(ctx, KeyUserData+"/"+email, r)
	return data, nil
}

func (s *KVStore) SaveUserData(ctx context.Context, email string, data core.UserData) error {
	rec, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode user data: %w", err)
	}
	return s.updateJSON(ctx, KeyUserData, func(old []byte) (any, error) {
		m := s.parseUserDataMap(ctx, old)
		m[email] = rec
		return m, nil
	})
}

// updateJSON rewrites key with the JSON encoding of what fn builds from the
// current value.
func (s *KVStore) updateJSON(ctx context.Context, key string, fn func(old []byte) (any, error)) error {
	err := s.kv.Update(ctx, key, func(old string, _ bool) (string, error) {
		v, err := fn([]byte(old))
		if err != nil {
			return "", err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", key, err)
		}
		return string(b), nil
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) GetCarryOverMarker(ctx context.Context, email string) (string, error) {
	raw, err := s.get(ctx, MarkerKey(email))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func (s *KVStore) SetCarryOverMarker(ctx context.Context, email, monthKey string) error {
	if err := s.kv.Set(ctx, MarkerKey(email), monthKey); err != nil {
		return fmt.Errorf("set carry-over marker: %w", err)
	}
	return nil
}

func (s *KVStore) GetCustomCategories(ctx context.Context, email string) ([]core.CustomCategory, error) {
	raw, err := s.get(ctx, CategoriesKey(email))
	if err != nil {
		return []core.CustomCategory{}, err
	}
	cats, r := DecodeCategories(raw)
	s.report(ctx, CategoriesKey(email), r)
	return cats, nil
}

func (s *KVStore) SetCustomCategories(ctx context.Context, email string, cats []core.CustomCategory) error {
	if cats == nil {
		cats = []core.CustomCategory{}
	}
	return s.setJSON(ctx, CategoriesKey(email), cats)
}

func (s *KVStore) GetCustomReminders(ctx context.Context, email string) ([]core.CustomReminder, error) {
	raw, err := s.get(ctx, RemindersKey(email))
	if err != nil {
		return []core.CustomReminder{}, err
	}
	reminders, r := DecodeReminders(raw)
	s.report(ctx, RemindersKey(email), r)
	return reminders, nil
}

func (s *KVStore) SetCustomReminders(ctx context.Context, email string, reminders []core.CustomReminder) error {
	if reminders == nil {
		reminders = []core.CustomReminder{}
	}
	return s.setJSON(ctx, RemindersKey(email), reminders)
}

func (s *KVStore) users(ctx context.Context) (map[string]core.User, error) {
	raw, err := s.get(ctx, KeyUsers)
	if err != nil {
		return nil, err
	}
	users, r := DecodeUsers(raw)
	s.report(ctx, KeyUsers, r)
	return users, nil
}

func (s *KVStore) GetUser(ctx context.Context, email string) (core.User, error) {
	users, err := s.users(ctx)
	if err != nil {
		return core.User{}, err
	}
	u, ok := users[email]
	if !ok {
		return core.User{}, fmt.Errorf("%s: %w", email, core.ErrUserNotFound)
	}
	return u, nil
}

func (s *KVStore) SaveUser(ctx context.Context, u core.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	return s.updateJSON(ctx, KeyUsers, func(old []byte) (any, error) {
		users, r := DecodeUsers(old)
		s.report(ctx, KeyUsers, r)
		users[u.Email] = u
		return users, nil
	})
}

// ListUsers returns every stored user ordered by email.
func (s *KVStore) ListUsers(ctx context.Context) ([]core.User, error) {
	users, err := s.users(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.User, 0, len(users))
	for _, u := range users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b core.User) int { return strings.Compare(a.Email, b.Email) })
	return out, nil
}

func (s *KVStore) GetLoggedInUser(ctx context.Context) (string, error) {
	raw, err := s.get(ctx, KeyLoggedInUser)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func (s *KVStore) SetLoggedInUser(ctx context.Context, email string) error {
	if err := s.kv.Set(ctx, KeyLoggedInUser, email); err != nil {
		return fmt.Errorf("set logged in user: %w", err)
	}
	return nil
}

func (s *KVStore) ClearLoggedInUser(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyLoggedInUser); err != nil {
		return fmt.Errorf("clear logged in user: %w", err)
	}
	return nil
}
