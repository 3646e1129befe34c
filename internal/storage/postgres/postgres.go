// Package postgres is a KV backend on a PostgreSQL table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsert = `
	INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

type KV struct {
	pool *pgxpool.Pool
}

// Open connects to url and ensures the kv table exists.
func Open(ctx context.Context, url string) (*KV, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &KV{pool: pool}, nil
}

func (k *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := k.pool.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return v, true, nil
}

func (k *KV) Set(ctx context.Context, key, value string) error {
	if _, err := k.pool.Exec(ctx, upsert, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Update holds a transaction-scoped advisory lock on key while it reads and
// writes, which also covers a key that does not exist yet.
func (k *KV) Update(ctx context.Context, key string, fn func(string, bool) (string, error)) error {
	return pgx.BeginFunc(ctx, k.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		var old string
		ok := true
		if err := tx.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&old); errors.Is(err, pgx.ErrNoRows) {
			ok = false
		} else if err != nil {
			return fmt.Errorf("select %s: %w", key, err)
		}
		value, err := fn(old, ok)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, upsert, key, value); err != nil {
			return fmt.Errorf("upsert %s: %w", key, err)
		}
		return nil
	})
}

func (k *KV) Delete(ctx context.Context, key string) error {
	if _, err := k.pool.Exec(ctx, `DELETE FROM kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (k *KV) Ping(ctx context.Context) error {
	return k.pool.Ping(ctx)
}

func (k *KV) Close() error {
	k.pool.Close()
	return nil
}
