// Package store is the C1 Node Store API: a typed surface over the
// persisted node model that the walker, editor, conflict engine,
// layer replacer and bump engine use exclusively to read and mutate
// working-copy state. No component outside this package issues SQL.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Store is a handle onto a single working copy's node database,
// scoped to one wc_id. All operations execute against a caller-owned
// *sql.Tx: the store never opens its own transaction, since the
// resolver's entire drive must be one atomic unit (spec.md §5).
type Store struct {
	db   *sql.DB
	wcID int64
}

// DefaultBusyTimeoutMS is the busy_timeout pragma Open applies when a
// caller has no configured lock timeout of its own (tests, and any
// other caller not threading a config.Config through).
const DefaultBusyTimeoutMS = 5000

// Open creates or opens a SQLite database at path for the given
// working-copy id, with SQLite's busy_timeout pragma set to
// busyTimeoutMS. Applies pragmas and schema migrations.
func Open(path string, wcID int64, busyTimeoutMS int) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open node store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect node store: %w", err)
	}

	// SQLite has one writer; the resolver never wants concurrent
	// writers against the same working copy anyway (spec.md §5).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db, busyTimeoutMS); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, wcID: wcID}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WCID returns the working-copy id this store is scoped to.
func (s *Store) WCID() int64 { return s.wcID }

// Begin opens a new transaction. The entire resolution drive runs
// inside one such transaction; callers must Commit or Rollback it
// explicitly.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

func applyPragmas(db *sql.DB, busyTimeoutMS int) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS),
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}
