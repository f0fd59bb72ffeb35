package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/abelbrown/dealfeed/internal/rotation"
)

// SQLite stores rotation rows in a SQLite database.
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SQLite struct {
	db    *sql.DB
	mu    sync.RWMutex
	scope string
}

// OpenSQLite opens (or creates) the database at dbPath and applies migrations.
// Rows are partitioned by scope so several feeds can share one file.
// Uses WAL mode for file-based databases.
func OpenSQLite(ctx context.Context, dbPath, scope string) (*SQLite, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	if err := migrate(ctx, db, goose.DialectSQLite3, "sqlite"); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db, scope: scope}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// LoadAll reads every row for the store's scope.
func (s *SQLite) LoadAll(ctx context.Context) (rotation.Map, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT identity_key, last_shown_at FROM rotation WHERE scope = ?`, s.scope)
	if err != nil {
		return nil, sqliteErr("load", err)
	}
	defer rows.Close()

	m := rotation.Map{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, sqliteErr("load", err)
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			// Skip unreadable rows rather than failing the whole load.
			continue
		}
		m[key] = t
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteErr("load", err)
	}
	return m, nil
}

// Persist replaces all rows for the scope with m in one transaction.
func (s *SQLite) Persist(ctx context.Context, m rotation.Map) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sqliteErr("persist", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rotation WHERE scope = ?`, s.scope); err != nil {
		return sqliteErr("persist", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rotation (scope, identity_key, last_shown_at) VALUES (?, ?, ?)`)
	if err != nil {
		return sqliteErr("persist", err)
	}
	defer stmt.Close()

	for key, t := range m {
		if _, err := stmt.ExecContext(ctx, s.scope, key, t.UTC().Format(time.RFC3339Nano)); err != nil {
			return sqliteErr("persist", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return sqliteErr("persist", err)
	}
	return nil
}

func sqliteErr(op string, err error) error {
	return &rotation.PersistenceError{Op: op, Backend: "sqlite", Err: err}
}
