// Package db provides PostgreSQL storage for harvested catalog records.
// Every write follows a create-or-update discipline so repeated runs
// converge instead of duplicating rows.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DomainTag groups the spec categories this harvester owns.
const DomainTag = "GPU Specs"

// DB wraps a PostgreSQL connection pool. Each storage call checks out its
// own connection, so concurrent workers never share a statement handle.
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool and verifies it.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping verifies the pool is still usable.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// StorageError wraps any transactional failure with the identity of the
// offending unit of work. Callers log it and continue with the next unit.
type StorageError struct {
	Op   string
	Unit string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("storage error in %s (%s): %v", e.Op, e.Unit, e.Err)
	}
	return fmt.Sprintf("storage error in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op, unit string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Unit: unit, Err: err}
}
