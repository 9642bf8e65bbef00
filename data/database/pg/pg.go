package pg

import (
	"context"
	"errors"
	"time"

	"PShop/logger"
	"PShop/tools/errs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Config represents the Postgres configuration.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

func (c *Config) ValidateAndSetDefaults() error {
	if c.DSN == "" {
		return errs.ErrArgs.WrapMsg("postgres dsn is required")
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 20
	}
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	return nil
}

// NewPool parses cfg, opens the pool and pings it once.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("parse postgres dsn", "err", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime

	cctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(cctx, pc)
	if err != nil {
		return nil, errs.WrapMsg(err, "open postgres pool")
	}
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, errs.WrapMsg(err, "ping postgres", "host", pc.ConnConfig.Host)
	}
	logger.Info("[pg] connected", zap.String("host", pc.ConnConfig.Host), zap.String("db", pc.ConnConfig.Database))
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         UUID PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	password   TEXT NOT NULL,
	full_name  TEXT NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	roles      TEXT[] NOT NULL DEFAULT ARRAY['user'],
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	id          UUID PRIMARY KEY,
	title       TEXT NOT NULL UNIQUE,
	price       NUMERIC(12,2) NOT NULL DEFAULT 0,
	description TEXT,
	slug        TEXT NOT NULL UNIQUE,
	stock       INTEGER NOT NULL DEFAULT 0,
	sizes       TEXT[] NOT NULL DEFAULT '{}',
	gender      TEXT NOT NULL,
	tags        TEXT[] NOT NULL DEFAULT '{}',
	user_id     UUID REFERENCES users(id) ON DELETE SET NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS product_images (
	id         BIGSERIAL PRIMARY KEY,
	product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	url        TEXT NOT NULL,
	position   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS product_images_product_idx ON product_images(product_id, position);
`

// Bootstrap creates the schema; safe to run on every start.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return errs.WrapMsg(err, "bootstrap schema")
	}
	return nil
}

// Querier is what stores need; both the pool and a tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InTx runs fn in a transaction, rolling back on error or panic.
func InTx(ctx context.Context, pool *pgxpool.Pool, fn func(q Querier) error) (err error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return errs.WrapMsg(err, "begin tx")
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return errs.WrapMsg(err, "commit tx")
	}
	return nil
}

const uniqueViolation = "23505"

// MapError turns driver errors into code errors: no rows → RecordNotFound,
// unique violation → DuplicateKey.
func MapError(err error, what string, kv ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrRecordNotFound.WrapMsg(what, kv...)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errs.ErrDuplicateKey.WrapMsg(what+": "+pgErr.Detail, kv...)
	}
	return errs.WrapMsg(err, what, kv...)
}
