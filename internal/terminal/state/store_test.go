package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFileStore(filepath.Join(dir, "files"))
	require.NoError(t, err)
	db, err := NewSQLiteStore(filepath.Join(dir, "state.db"))
	require.NoError(t, err)

	stores := map[string]Store{
		"file":   file,
		"sqlite": db,
		"memory": NewMemoryStore(),
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Load(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			s := sample()
			require.NoError(t, store.Save(ctx, s))

			loaded, err := store.Load(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, s, loaded)

			s.Title = "htop"
			require.NoError(t, store.Save(ctx, s))
			loaded, err = store.Load(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, "htop", loaded.Title)

			other := sample()
			other.ID = "term_other"
			require.NoError(t, store.Save(ctx, other))

			all, err := store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)

			require.NoError(t, store.Delete(ctx, s.ID))
			require.NoError(t, store.Delete(ctx, s.ID))
			_, err = store.Load(ctx, s.ID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFileStoreSkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(ctx, sample()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken"+fileSuffix), []byte("not zstd"), 0o644))

	_, err = store.Load(ctx, "broken")
	assert.ErrorIs(t, err, ErrInvalid)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFileStoreRejectsUnsafeID(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSQLiteStoreRejectsInvalidRecord(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.ExecContext(ctx,
		`INSERT INTO session_state (id, data, updated_at) VALUES (?, ?, 0)`, "bad", []byte(`{"id":"bad"}`))
	require.NoError(t, err)

	_, err = store.Load(ctx, "bad")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMemoryStoreRejectsInvalidRecord(t *testing.T) {
	store := NewMemoryStore()
	store.Put("bad", []byte(`{"id":"bad","cwd":"/"}`))

	_, err := store.Load(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{BackendFile, BackendSQLite, BackendMemory} {
		store, err := Open(backend, filepath.Join(dir, backend))
		require.NoError(t, err, backend)
		require.NoError(t, store.Close())
	}

	_, err := Open("redis", dir)
	assert.Error(t, err)
}
