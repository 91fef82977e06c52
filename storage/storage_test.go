package storage

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/trust-rotation-backend/interfaces"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.GetItem(ctx, "trust:acme:state")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	require.NoError(t, store.SetItem(ctx, "trust:acme:state", []byte("v1")))
	value, err := store.GetItem(ctx, "trust:acme:state")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), value)

	// Mutating the returned slice must not affect the stored value.
	value[0] = 'x'
	again, err := store.GetItem(ctx, "trust:acme:state")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), again)

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"trust:acme:state"}, keys)

	require.NoError(t, store.RemoveItem(ctx, "trust:acme:state"))
	_, err = store.GetItem(ctx, "trust:acme:state")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	// Removing an absent key is not an error.
	assert.NoError(t, store.RemoveItem(ctx, "trust:acme:state"))
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), slog.Default())
	require.NoError(t, err)

	_, err = store.GetItem(ctx, "trust:acme:state")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	require.NoError(t, store.SetItem(ctx, "trust:acme:state", []byte(`{"v":1}`)))
	value, err := store.GetItem(ctx, "trust:acme:state")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":1}`), value)

	// Overwrite replaces the value.
	require.NoError(t, store.SetItem(ctx, "trust:acme:state", []byte(`{"v":2}`)))
	value, err = store.GetItem(ctx, "trust:acme:state")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":2}`), value)

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"trust:acme:state"}, keys)

	require.NoError(t, store.RemoveItem(ctx, "trust:acme:state"))
	assert.NoError(t, store.RemoveItem(ctx, "trust:acme:state"))
}

func TestStoreFromURI(t *testing.T) {
	store, err := StoreFromURI("memory://", slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = StoreFromURI("file://"+t.TempDir(), slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	_, err = StoreFromURI("redis://localhost:6379", slog.Default())
	assert.ErrorIs(t, err, interfaces.ErrInvalidStorageURI)

	_, err = StoreFromURI("vault://vault.example.com:8200/onlymount", slog.Default())
	assert.ErrorIs(t, err, interfaces.ErrInvalidStorageURI)
}
