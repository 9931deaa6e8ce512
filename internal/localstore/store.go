// Package localstore persists the offline progress cache, the pending sync
// queue and the client identity in a SQLite key/value table
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/tildaslashalef/farmboard/internal/database"
)

// ErrLocalStorage marks failures of the local durable store. It is kept
// distinct from remote failures because it breaks the offline guarantee.
var ErrLocalStorage = errors.New("local storage failure")

const kvTable = "kv"

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store is the key/value table shared by the cache, the queue and the identity
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a store over an already migrated client database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func storageErr(op, key string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrLocalStorage, op, key, err)
}

// Get returns the raw value stored under key
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	return s.get(ctx, s.db, key)
}

// Put overwrites the value stored under key
func (s *Store) Put(ctx context.Context, key, value string) error {
	return s.put(ctx, s.db, key, value)
}

// Update runs a read-modify-write of key inside one transaction. fn receives
// the current value (found=false when absent) and returns the value to store;
// write=false leaves the row untouched.
func (s *Store) Update(ctx context.Context, key string, fn func(current string, found bool) (next string, write bool, err error)) error {
	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		current, found, err := s.get(ctx, tx, key)
		if err != nil {
			return err
		}
		next, write, err := fn(current, found)
		if err != nil || !write {
			return err
		}
		return s.put(ctx, tx, key, next)
	})
	if err != nil && !errors.Is(err, ErrLocalStorage) {
		return storageErr("updating", key, err)
	}
	return err
}

func (s *Store) get(ctx context.Context, q queryer, key string) (string, bool, error) {
	query, args, err := squirrel.Select("value").From(kvTable).Where(squirrel.Eq{"key": key}).ToSql()
	if err != nil {
		return "", false, fmt.Errorf("building get kv query: %w", err)
	}

	var value string
	if err := q.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, storageErr("reading", key, err)
	}
	return value, true, nil
}

func (s *Store) put(ctx context.Context, e execer, key, value string) error {
	query, args, err := squirrel.Insert(kvTable).
		Columns("key", "value", "updated_at").
		Values(key, value, s.now().UTC()).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building put kv query: %w", err)
	}

	if _, err := e.ExecContext(ctx, query, args...); err != nil {
		return storageErr("writing", key, err)
	}
	return nil
}
