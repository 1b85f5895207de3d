package postgres

import (
	"context"
	"embed"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/stratmarket/engine/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ storage.Store = (*Backend)(nil)

const defaultTimeout = 10 * time.Second

// Backend is the pgx-backed Store. The pool is created and migrated here;
// callers own Close.
type Backend struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

func NewBackend(ctx context.Context, dsn string, logger *logrus.Logger) (*Backend, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	// Numeric columns scan into shopspring decimals.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	backend := &Backend{
		pool:   pool,
		logger: logger.WithField("pkg", "postgres.Backend").Logger,
	}
	if err := backend.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return backend, nil
}

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

func (b *Backend) Pool() *pgxpool.Pool {
	return b.pool
}

func (b *Backend) migrate() error {
	b.logger.Info("Starting database migration...")
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(b.pool)
	defer func() {
		_ = db.Close()
	}()
	if err := goose.Up(db, "migrations", goose.WithAllowMissing()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	b.logger.Info("Database migration completed successfully")
	return nil
}
