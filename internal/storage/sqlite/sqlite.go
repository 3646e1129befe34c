// Package sqlite is a KV backend on a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const upsert = `
	INSERT INTO kv (key, value, updated_at)
	VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

type KV struct {
	db *sql.DB
}

// Open creates the database file if needed, migrates it and returns the backend.
func Open(dbPath string) (*KV, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &KV{db: db}, nil
}

func (k *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := k.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return v, true, nil
}

func (k *KV) Set(ctx context.Context, key, value string) error {
	if _, err := k.db.ExecContext(ctx, upsert, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Update runs the read and the write in one immediate transaction, so the
// database write lock is held from the read on.
func (k *KV) Update(ctx context.Context, key string, fn func(string, bool) (string, error)) error {
	tx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update %s: %w", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	var old string
	ok := true
	if err := tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&old); errors.Is(err, sql.ErrNoRows) {
		ok = false
	} else if err != nil {
		return fmt.Errorf("select %s: %w", key, err)
	}

	value, err := fn(old, ok)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, upsert, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return tx.Commit()
}

func (k *KV) Delete(ctx context.Context, key string) error {
	if _, err := k.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (k *KV) Ping(ctx context.Context) error {
	return k.db.PingContext(ctx)
}

func (k *KV) Close() error {
	if k.db != nil {
		return k.db.Close()
	}
	return nil
}
