package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store. It is used for local runs and tests.
type Memory struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{slots: make(map[string][]byte)}
}

type memoryTx struct {
	slots    map[string][]byte
	pending  map[string][]byte
	readOnly bool
}

func (tx *memoryTx) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if v, ok := tx.pending[key]; ok {
		return clone(v), true, nil
	}
	v, ok := tx.slots[key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (tx *memoryTx) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx.readOnly {
		return ErrReadOnly
	}
	tx.pending[key] = clone(value)
	return nil
}

func (tx *memoryTx) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := tx.Get(ctx, key)
	return ok, err
}

// View runs fn against a consistent snapshot of the slots.
func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memoryTx{slots: m.slots, readOnly: true})
}

// Update runs fn and applies its writes only if it succeeds.
func (m *Memory) Update(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{slots: m.slots, pending: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for k, v := range tx.pending {
		m.slots[k] = v
	}
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
