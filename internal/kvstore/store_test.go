// ABOUTME: Tests for the key-value store factory and drivers
// ABOUTME: Exercises memory and sqlite drivers against the same contract

package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-widget/internal/config"
)

func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got, "missing keys return nil without error")

	require.NoError(t, s.Set(ctx, "settings", []byte(`{"v":1}`)))
	got, err = s.Get(ctx, "settings")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(got))

	require.NoError(t, s.Set(ctx, "settings", []byte(`{"v":2}`)))
	got, err = s.Get(ctx, "settings")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got), "last writer wins")

	require.NoError(t, s.Delete(ctx, "settings"))
	got, err = s.Get(ctx, "settings")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Delete(ctx, "settings"), "deleting twice is fine")
}

func TestMemoryStore(t *testing.T) {
	s, err := NewStore(StoreTypeMemory)
	require.NoError(t, err)
	defer s.Close()

	testStoreContract(t, s)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "widget.db")
	s, err := NewStore(StoreTypeSQLite, WithSQLitePath(path))
	require.NoError(t, err)
	defer s.Close()

	testStoreContract(t, s)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widget.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "widget_settings_cache", []byte(`{"theme":{}}`)))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "widget_settings_cache")
	require.NoError(t, err)
	assert.Equal(t, `{"theme":{}}`, string(got))
}

func TestNewStore_InvalidConfig(t *testing.T) {
	_, err := NewStore(StoreTypeSQLite)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewStore(StoreTypeRedis)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewStore("etcd")
	assert.ErrorIs(t, err, ErrInvalidStoreType)
}

func TestNewStore_Redis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	s, err := NewStore(StoreTypeRedis, WithRedisClient(client), WithRedisPrefix("test:"))
	require.NoError(t, err)
	defer s.Close()

	rs, ok := s.(*RedisStore)
	require.True(t, ok)
	assert.Equal(t, "test:widget_settings_cache", rs.key("widget_settings_cache"))
}

func TestFromConfig(t *testing.T) {
	s, err := FromConfig(config.StorageConfig{Driver: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = FromConfig(config.StorageConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "widget.db"),
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	s, err = FromConfig(config.StorageConfig{
		Driver: "redis",
		Redis:  config.RedisConfig{Addr: "127.0.0.1:0", Prefix: "tenant-a:"},
	}, nil)
	require.NoError(t, err)
	rs, ok := s.(*RedisStore)
	require.True(t, ok)
	assert.Equal(t, "tenant-a:k", rs.key("k"))
	require.NoError(t, s.Close())

	_, err = FromConfig(config.StorageConfig{Driver: "sqlite"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
