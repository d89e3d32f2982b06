package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "acme.com:classification:v1", []byte(`{"domain":"acme.com"}`), time.Hour))

	data, err := st.Get(ctx, "acme.com:classification:v1")
	require.NoError(t, err)
	assert.Equal(t, `{"domain":"acme.com"}`, string(data))
}

func TestSQLite_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	data, err := st.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLite_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Set with already-expired TTL (-1 hour in the past).
	require.NoError(t, st.Set(ctx, "expired", []byte("old data"), -1*time.Hour))

	data, err := st.Get(ctx, "expired")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLite_Overwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "k", []byte("v1"), -1*time.Hour))
	require.NoError(t, st.Set(ctx, "k", []byte("v2"), time.Hour))

	data, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestSQLite_NoExpiry(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "embedding:model:v1", []byte("jina-embeddings-v3"), 0))
	data, err := st.Get(ctx, "embedding:model:v1")
	require.NoError(t, err)
	assert.Equal(t, "jina-embeddings-v3", string(data))
}

func TestSQLite_DeleteAndPurge(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "live", []byte("1"), time.Hour))
	require.NoError(t, st.Set(ctx, "dead-1", []byte("2"), -time.Minute))
	require.NoError(t, st.Set(ctx, "dead-2", []byte("3"), -time.Hour))
	require.NoError(t, st.Set(ctx, "forever", []byte("4"), 0))

	n, err := st.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, st.Delete(ctx, "live"))
	data, err := st.Get(ctx, "live")
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = st.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "4", string(data))
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}
