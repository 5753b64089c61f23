package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS attendance_slots (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// slotLockID keys the advisory lock that serializes writers across processes.
const slotLockID int64 = 0x61747464

// Postgres stores slots in a single PostgreSQL table.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dbURL, verifies the connection and creates the slot table if needed.
func OpenPostgres(ctx context.Context, dbURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info("Successfully connected to the database!")
	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing pool. The slot table must already exist.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Ping checks the database connection.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

// View runs fn in a read-only transaction.
func (s *Postgres) View(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&postgresTx{tx: tx, readOnly: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update runs fn in a read-write transaction holding the slot advisory lock.
func (s *Postgres) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", slotLockID); err != nil {
		return fmt.Errorf("failed to acquire slot lock: %w", err)
	}

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx       pgx.Tx
	readOnly bool
}

func (t *postgresTx) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := t.tx.QueryRow(ctx, "SELECT value FROM attendance_slots WHERE key = $1", key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read slot %q: %w", key, err)
	}
	return value, true, nil
}

func (t *postgresTx) Set(ctx context.Context, key string, value []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	query := `
		INSERT INTO attendance_slots (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := t.tx.Exec(ctx, query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to write slot %q: %w", key, err)
	}
	return nil
}

func (t *postgresTx) Has(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM attendance_slots WHERE key = $1)", key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check slot %q: %w", key, err)
	}
	return exists, nil
}
