package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()

	dir := t.TempDir()
	file, err := NewFile(filepath.Join(dir, "kv"))
	require.NoError(t, err)

	lite, err := OpenSQLite(filepath.Join(dir, "storage.db"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	stores := map[string]Storage{
		"memory": NewMemory(),
		"file":   file,
		"sqlite": lite,
		"redis":  NewRedis(rdb, "test"),
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStorage_Contract(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "userInfo")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "userInfo", []byte(`{"_id":"u1"}`)))
			require.NoError(t, s.Set(ctx, "userInfo", []byte(`{"_id":"u2"}`)))

			got, err := s.Get(ctx, "userInfo")
			require.NoError(t, err)
			assert.JSONEq(t, `{"_id":"u2"}`, string(got))

			require.NoError(t, s.Remove(ctx, "userInfo"))
			require.NoError(t, s.Remove(ctx, "userInfo"), "removing twice is fine")

			_, err = s.Get(ctx, "userInfo")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFile_UsesOwnerOnlyPermissions(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)

	require.NoError(t, f.Set(context.Background(), "userInfo", []byte("{}")))

	info, err := os.Stat(filepath.Join(dir, "userInfo.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFile_RejectsPathKeys(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	err = f.Set(context.Background(), "../escape", []byte("x"))
	assert.Error(t, err)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storage.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "userInfo", []byte("persisted")))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "userInfo")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got))
}

func TestOpen_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, Config{Backend: "file", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	mr := miniredis.RunT(t)
	s, err = Open(ctx, Config{Backend: "redis", RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Backend: "etcd"})
	assert.Error(t, err)
}
