package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS attendance_slots (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)
`

// SQLite stores slots in a local SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	// immediate transactions take the write lock up front, so read-then-write updates
	// from separate processes serialize instead of failing on upgrade
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// View runs fn in a read-only transaction.
func (s *SQLite) View(ctx context.Context, fn func(Tx) error) error {
	return s.run(ctx, true, fn)
}

// Update runs fn in a transaction and commits its writes if fn succeeds.
func (s *SQLite) Update(ctx context.Context, fn func(Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *SQLite) run(ctx context.Context, readOnly bool, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx, readOnly: readOnly}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type sqliteTx struct {
	tx       *sql.Tx
	readOnly bool
}

func (t *sqliteTx) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := t.tx.QueryRowContext(ctx, "SELECT value FROM attendance_slots WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read slot %q: %w", key, err)
	}
	return value, true, nil
}

func (t *sqliteTx) Set(ctx context.Context, key string, value []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO attendance_slots (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("write slot %q: %w", key, err)
	}
	return nil
}

func (t *sqliteTx) Has(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM attendance_slots WHERE key = ?)", key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot %q: %w", key, err)
	}
	return exists, nil
}
