package keystore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(t.TempDir(), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	material := []byte("very secret bytes")
	put, err := store.Put(ctx, "backup-signing", "ed25519", material)
	require.NoError(t, err)
	assert.NotEmpty(t, put.ID)
	assert.False(t, put.CreatedAt.IsZero())

	got, err := store.Get(ctx, "backup-signing")
	require.NoError(t, err)
	assert.Equal(t, put.ID, got.ID)
	assert.Equal(t, "ed25519", got.Algorithm)
	assert.Equal(t, material, got.Material)
}

func TestPutReplacesExisting(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.Put(ctx, "rotating", "ed25519", []byte("v1"))
	require.NoError(t, err)
	second, err := store.Put(ctx, "rotating", "ed25519", []byte("v2"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID, "a put assigns a fresh id")

	got, err := store.Get(ctx, "rotating")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got.Material)

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestPutRejectsEmptyName(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Put(context.Background(), "", "ed25519", []byte("x"))
	require.Error(t, err)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrInvalidName, se.Code)
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.True(t, IsNotFound(err))
}

func TestList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	names := []string{"alpha", "bravo", "charlie"}
	for _, name := range names {
		_, err := store.Put(ctx, name, "ed25519", []byte(name))
		require.NoError(t, err)
	}

	keys, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, len(names))
	for i, key := range keys {
		assert.Equal(t, names[i], key.Name, "badger iterates in key order")
	}
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "doomed", "ed25519", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "doomed"))
	assert.True(t, IsNotFound(store.Delete(ctx, "doomed")))

	_, err = store.Get(ctx, "doomed")
	assert.True(t, IsNotFound(err))
}

func TestInMemoryStore(t *testing.T) {
	store, err := Open("", true)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Put(context.Background(), "scratch", "", []byte("x"))
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "scratch")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got.Material)
}

func TestCancelledContext(t *testing.T) {
	store := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Put(ctx, "x", "", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.Get(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
