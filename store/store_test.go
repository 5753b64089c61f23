package store

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init("store-test", false, false, io.Discard)
	os.Exit(m.Run())
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	stores := map[string]Store{"memory": NewMemory()}

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "slots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	stores["sqlite"] = sqlite

	if dbURL := os.Getenv("TEST_DATABASE_URL"); dbURL != "" {
		pg, err := OpenPostgres(context.Background(), dbURL)
		require.NoError(t, err)
		_, err = pg.pool.Exec(context.Background(), "TRUNCATE attendance_slots")
		require.NoError(t, err)
		t.Cleanup(func() { pg.Close() })
		stores["postgres"] = pg
	}
	return stores
}

func TestStore_SetGetHas(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Update(ctx, func(tx Tx) error {
				ok, err := tx.Has(ctx, "admin")
				require.NoError(t, err)
				assert.False(t, ok)
				return tx.Set(ctx, "admin", []byte(`"0xabc"`))
			})
			require.NoError(t, err)

			err = s.View(ctx, func(tx Tx) error {
				v, ok, err := tx.Get(ctx, "admin")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, `"0xabc"`, string(v))

				ok, err = tx.Has(ctx, "admin")
				require.NoError(t, err)
				assert.True(t, ok)

				_, ok, err = tx.Get(ctx, "missing")
				require.NoError(t, err)
				assert.False(t, ok)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_UpdateOverwrites(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Update(ctx, func(tx Tx) error { return tx.Set(ctx, "code", []byte("a")) }))
			require.NoError(t, s.Update(ctx, func(tx Tx) error { return tx.Set(ctx, "code", []byte("b")) }))

			require.NoError(t, s.View(ctx, func(tx Tx) error {
				v, _, err := tx.Get(ctx, "code")
				require.NoError(t, err)
				assert.Equal(t, "b", string(v))
				return nil
			}))
		})
	}
}

func TestStore_FailedUpdateCommitsNothing(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Update(ctx, func(tx Tx) error {
				require.NoError(t, tx.Set(ctx, "start_time", []byte("1")))
				require.NoError(t, tx.Set(ctx, "end_time", []byte("2")))
				return boom
			})
			require.ErrorIs(t, err, boom)

			require.NoError(t, s.View(ctx, func(tx Tx) error {
				for _, key := range []string{"start_time", "end_time"} {
					ok, err := tx.Has(ctx, key)
					require.NoError(t, err)
					assert.False(t, ok, key)
				}
				return nil
			}))
		})
	}
}

func TestStore_UpdateReadsOwnWrites(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Update(ctx, func(tx Tx) error {
				require.NoError(t, tx.Set(ctx, "attendees", []byte(`["x"]`)))
				v, ok, err := tx.Get(ctx, "attendees")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, `["x"]`, string(v))
				return nil
			}))
		})
	}
}

func TestStore_ViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.View(ctx, func(tx Tx) error {
				return tx.Set(ctx, "admin", []byte("x"))
			})
			assert.ErrorIs(t, err, ErrReadOnly)
		})
	}
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Update(ctx, func(tx Tx) error { return tx.Set(ctx, "k", []byte("abc")) }))

	require.NoError(t, m.View(ctx, func(tx Tx) error {
		v, _, _ := tx.Get(ctx, "k")
		v[0] = 'z'
		return nil
	}))
	require.NoError(t, m.View(ctx, func(tx Tx) error {
		v, _, _ := tx.Get(ctx, "k")
		assert.Equal(t, "abc", string(v))
		return nil
	}))
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	assert.Error(t, err)
}
