// Package memory is an in-process KV backend.
package memory

import (
	"context"
	"maps"
	"sync"
)

type KV struct {
	mu   sync.RWMutex
	data map[string]string
}

func New() *KV {
	return &KV{data: make(map[string]string)}
}

func (m *KV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *KV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *KV) Update(_ context.Context, key string, fn func(string, bool) (string, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.data[key]
	v, err := fn(old, ok)
	if err != nil {
		return err
	}
	m.data[key] = v
	return nil
}

func (m *KV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *KV) Ping(context.Context) error { return nil }
func (m *KV) Close() error               { return nil }

// Snapshot returns a copy of all keys and values.
func (m *KV) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.data)
}
