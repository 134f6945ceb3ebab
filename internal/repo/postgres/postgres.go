// Package postgres implements the repo package's contracts against
// PostgreSQL with the pgvector extension, following the teacher's
// storage.DB connection-pool pattern: pgxpool for ordinary queries, with
// pgvector types registered on every new connection via AfterConnect.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// DB wraps a pgxpool.Pool shared by every repository implementation in
// this package.
type DB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a connection pool against dsn and verifies connectivity.
// pgvector type registration is best-effort: if the extension hasn't been
// created yet, connections still succeed and registration is retried on
// each new physical connection.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
			logger.Debug("postgres: pgvector types not registered (extension may not exist yet)", "error", err)
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping pool: %w", err)
	}

	return &DB{pool: pool, logger: logger}, nil
}

// Pool returns the underlying pgxpool.Pool for the repository
// constructors in this package.
func (db *DB) Pool() *pgxpool.Pool { return db.pool }

// Close shuts down the connection pool.
func (db *DB) Close() { db.pool.Close() }

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error { return db.pool.Ping(ctx) }
