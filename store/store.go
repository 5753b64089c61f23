// Package store provides the durable slot storage the attendance manager runs on.
package store

import (
	"context"
	"errors"
)

// ErrReadOnly is returned when a write is attempted inside a View transaction.
var ErrReadOnly = errors.New("store: write in read-only transaction")

// Tx reads and writes named slots. A Tx is only valid inside the callback it was passed to.
type Tx interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Has(ctx context.Context, key string) (bool, error)
}

// Store runs callbacks inside transactions. Update commits every Set made by fn
// when fn returns nil and discards all of them otherwise.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}
