package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/abelbrown/dealfeed/internal/rotation"
)

// Postgres stores rotation rows in a Postgres table.
type Postgres struct {
	Pool  *pgxpool.Pool
	scope string
}

// ConnectPostgres opens a pool, pings it and applies migrations.
func ConnectPostgres(ctx context.Context, url, scope string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 4
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if err := migrate(ctx, db, goose.DialectPostgres, "postgres"); err != nil {
		pool.Close()
		return nil, err
	}

	return &Postgres{Pool: pool, scope: scope}, nil
}

func (p *Postgres) Close() { p.Pool.Close() }

// LoadAll reads every row for the store's scope.
func (p *Postgres) LoadAll(ctx context.Context) (rotation.Map, error) {
	rows, err := p.Pool.Query(ctx,
		`SELECT identity_key, last_shown_at FROM rotation WHERE scope = $1`, p.scope)
	if err != nil {
		return nil, pgErr("load", err)
	}
	defer rows.Close()

	m := rotation.Map{}
	for rows.Next() {
		var key string
		var t time.Time
		if err := rows.Scan(&key, &t); err != nil {
			return nil, pgErr("load", err)
		}
		m[key] = t
	}
	if err := rows.Err(); err != nil {
		return nil, pgErr("load", err)
	}
	return m, nil
}

// Persist replaces the scope's rows with m: delete then COPY, in one transaction.
func (p *Postgres) Persist(ctx context.Context, m rotation.Map) error {
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return pgErr("persist", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM rotation WHERE scope = $1`, p.scope); err != nil {
		return pgErr("persist", err)
	}

	rows := make([][]any, 0, len(m))
	for key, t := range m {
		rows = append(rows, []any{p.scope, key, t.UTC()})
	}
	if len(rows) > 0 {
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"rotation"},
			[]string{"scope", "identity_key", "last_shown_at"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return pgErr("persist", err)
		}
		if int(n) != len(rows) {
			return pgErr("persist", fmt.Errorf("copied %d of %d rows", n, len(rows)))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return pgErr("persist", err)
	}
	return nil
}

func pgErr(op string, err error) error {
	return &rotation.PersistenceError{Op: op, Backend: "postgres", Err: err}
}
