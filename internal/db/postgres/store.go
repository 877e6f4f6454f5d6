// Package postgres implements the relational store client over database/sql
// with sqlx struct scanning. Each call runs as its own implicit transaction:
// single statements either commit fully or roll back on failure.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// Config holds connection parameters for the product store.
type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Store wraps a pooled Postgres connection.
type Store struct {
	db *sqlx.DB
}

// Open creates a Store. The connection is established lazily; call
// WaitForReady to verify connectivity.
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	return &Store{db: db}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady polls Ping until the store responds or the timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// FetchOne scans a single row into dest. A missing row is not an error:
// it returns (false, nil) and leaves dest untouched.
func (s *Store) FetchOne(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	err := s.db.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fetch one: %w", err)
	}
	return true, nil
}

// FetchAll scans all rows into dest (a pointer to a slice).
func (s *Store) FetchAll(ctx context.Context, dest any, query string, args ...any) error {
	if err := s.db.SelectContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("fetch all: %w", err)
	}
	return nil
}

// Execute runs a statement without returning rows. Returns the number of
// affected rows when the driver reports it.
func (s *Store) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("execute: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // drivers without RowsAffected support
	}
	return n, nil
}

// In expands a query with IN-clause bind parameters and rebinds the
// placeholders for Postgres.
func (s *Store) In(query string, args ...any) (string, []any, error) {
	q, expanded, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, fmt.Errorf("expand in clause: %w", err)
	}
	return s.db.Rebind(q), expanded, nil
}
