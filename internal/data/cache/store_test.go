package cache

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "cache.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestKey(t *testing.T) {
	src := []byte("let a = 1;")
	k := Key("javascript", src, "0.3.0")

	assert.Len(t, k, 64)
	assert.Equal(t, k, Key("javascript", src, "0.3.0"))
	assert.NotEqual(t, k, Key("typescript", src, "0.3.0"))
	assert.NotEqual(t, k, Key("javascript", src, "0.3.1"))
	assert.NotEqual(t, k, Key("javascript", []byte("let a = 2;"), "0.3.0"))
	// separators keep field boundaries distinct
	assert.NotEqual(t, Key("ab", []byte("c"), "v"), Key("a", []byte("bc"), "v"))
}

func TestStore_PutGet(t *testing.T) {
	store := openTestStore(t)

	key := Key("javascript", []byte("o.*x"), "0.3.0")
	_, ok, err := store.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(Entry{
		Key:       key,
		Path:      "src/a.js",
		Language:  "javascript",
		Version:   "0.3.0",
		Code:      []byte("o[_x];"),
		Bindings:  1,
		BuildID:   "b1",
		UpdatedAt: when,
	}))

	got, ok, err := store.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "src/a.js", got.Path)
	assert.Equal(t, "javascript", got.Language)
	assert.Equal(t, "0.3.0", got.Version)
	assert.Equal(t, []byte("o[_x];"), got.Code)
	assert.Equal(t, 1, got.Bindings)
	assert.Equal(t, "b1", got.BuildID)
	assert.True(t, got.UpdatedAt.Equal(when))
}

func TestStore_PutRefreshesExisting(t *testing.T) {
	store := openTestStore(t)
	key := Key("javascript", []byte("x"), "v")

	require.NoError(t, store.Put(Entry{Key: key, Path: "a.js", Code: []byte("x"), BuildID: "old"}))
	require.NoError(t, store.Put(Entry{Key: key, Path: "b.js", Code: []byte("x"), BuildID: "new"}))

	got, ok, err := store.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b.js", got.Path)
	assert.Equal(t, "new", got.BuildID)
}

func TestStore_PutRejectsEmptyKey(t *testing.T) {
	store := openTestStore(t)
	assert.Error(t, store.Put(Entry{Path: "a.js"}))
}

func TestStore_Prune(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put(Entry{Key: "old", Code: []byte("1"), UpdatedAt: base}))
	require.NoError(t, store.Put(Entry{Key: "new", Code: []byte("2"), UpdatedAt: base.Add(48 * time.Hour)}))

	removed, err := store.Prune(base.Add(24 * time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, ok, err := store.Get("old")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.Get("new")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_Builds(t *testing.T) {
	store := openTestStore(t)

	id, err := store.BeginBuild("0.3.0")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	require.NoError(t, store.FinishBuild(id, 4, 1, 2))
	assert.Error(t, store.FinishBuild("missing", 0, 0, 0))

	builds, err := store.Builds(10)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	b := builds[0]
	assert.Equal(t, id, b.ID)
	assert.Equal(t, "0.3.0", b.Version)
	assert.Equal(t, 4, b.Units)
	assert.Equal(t, 1, b.Failures)
	assert.Equal(t, 2, b.CacheHits)
	assert.False(t, b.FinishedAt.IsZero())
	assert.False(t, b.FinishedAt.Before(b.StartedAt))
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open("  ", time.Second)
	assert.Error(t, err)

	_, err = Open(t.TempDir(), time.Second)
	assert.ErrorContains(t, err, "is a directory")
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := Open(path, 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path, 0)
	require.NoError(t, err)
	defer store.Close()

	db, err := sql.Open(driverName, "file:"+path)
	require.NoError(t, err)
	defer db.Close()

	var version int
	require.NoError(t, db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version))
	assert.Equal(t, SchemaVersion, version)
}

func TestEnsureSchema_RejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	db, err := sql.Open(driverName, "file:"+path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, EnsureSchema(db))
	_, err = db.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1)
	require.NoError(t, err)

	assert.ErrorContains(t, EnsureSchema(db), "newer than supported")
}

func TestIsCorruptError(t *testing.T) {
	assert.False(t, IsCorruptError(nil))
	assert.False(t, IsCorruptError(sql.ErrConnDone))
	assert.True(t, isLockError(errString("database is locked")))
	assert.True(t, IsCorruptError(errString("file is not a database")))
}

type errString string

func (e errString) Error() string { return string(e) }

func TestStore_Ping(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Ping(context.Background()))

	var nilStore *Store
	assert.Error(t, nilStore.Ping(context.Background()))
}
