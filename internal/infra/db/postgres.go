package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/acme/crm-pro/internal/config"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS campaign_runs (
	id            UUID PRIMARY KEY,
	segment       JSONB NOT NULL DEFAULT '{}'::jsonb,
	template      TEXT NOT NULL,
	requested_by  TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL,
	total         INTEGER NOT NULL DEFAULT 0,
	sent          INTEGER NOT NULL DEFAULT 0,
	success_count INTEGER NOT NULL DEFAULT 0,
	error_count   INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	started_at    TIMESTAMPTZ,
	completed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS campaign_runs_created_at_idx ON campaign_runs (created_at DESC);
`

// Postgres wraps a sqlx DB instance backed by pgx.
type Postgres struct {
	pool *pgxpool.Pool
	db   *sqlx.DB
}

// NewPostgres creates a new connection pool.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig) (*Postgres, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}

	db := sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")

	if err := db.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	p := &Postgres{pool: pool, db: db}
	if cfg.InitSchema {
		if err := p.EnsureSchema(ctx); err != nil {
			_ = p.Close()
			return nil, err
		}
	}
	return p, nil
}

// EnsureSchema creates the run history table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// DB exposes the sqlx handle.
func (p *Postgres) DB() *sqlx.DB {
	return p.db
}

// Ping checks connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close drains the pool and releases resources.
func (p *Postgres) Close() error {
	var err error
	if p.db != nil {
		err = p.db.Close()
	}
	if p.pool != nil {
		p.pool.Close()
	}
	return err
}
