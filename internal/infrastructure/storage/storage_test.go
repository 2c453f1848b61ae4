package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"portfolio_tracker/internal/infrastructure/configloader"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorage_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	s, err := NewFileStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, found, err := s.Load(ctx, "portfolio")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save(ctx, "portfolio", []byte(`{"state":{},"version":0}`)))
	require.NoError(t, s.Save(ctx, "portfolio", []byte(`{"state":{"tokens":{}},"version":0}`)))

	data, found, err := s.Load(ctx, "portfolio")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"state":{"tokens":{}},"version":0}`, string(data))

	_, err = os.Stat(filepath.Join(dir, "portfolio.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStorage_KeysAreIndependent(t *testing.T) {
	s, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "token-update-bookkeeping", []byte(`{"state":{"lastUpdated":{}},"version":0}`)))

	_, found, err := s.Load(ctx, "portfolio")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStorage_RejectsPathKeys(t *testing.T) {
	s, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "..", "../etc/passwd", `a\b`} {
		err := s.Save(context.Background(), key, []byte("{}"))
		assert.Error(t, err, key)
	}
}

func TestNewFileStorage_EmptyDir(t *testing.T) {
	_, err := NewFileStorage(" ")
	assert.Error(t, err)
}

func newTestRedisStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStorageFromClient(client, "portfolio_tracker:")
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStorage_SaveLoad(t *testing.T) {
	s, mr := newTestRedisStorage(t)
	ctx := context.Background()

	_, found, err := s.Load(ctx, "portfolio")
	require.NoError(t, err)
	assert.False(t, found)

	payload := []byte(`{"state":{"tokens":{},"groups":{}},"version":0}`)
	require.NoError(t, s.Save(ctx, "portfolio", payload))

	stored, err := mr.Get("portfolio_tracker:portfolio")
	require.NoError(t, err)
	assert.Equal(t, string(payload), stored)
	assert.Zero(t, mr.TTL("portfolio_tracker:portfolio"))

	data, found, err := s.Load(ctx, "portfolio")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload, data)
}

func TestRedisStorage_ConnectionError(t *testing.T) {
	s, mr := newTestRedisStorage(t)
	mr.Close()

	_, _, err := s.Load(context.Background(), "portfolio")
	assert.Error(t, err)
}

func TestNewRedisStorage_Ping(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := NewRedisStorage(context.Background(), RedisOptions{Addr: mr.Addr(), KeyPrefix: "p:"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(context.Background(), "k", []byte("v")))
	assert.True(t, mr.Exists("p:k"))
}

func TestNewFromConfig(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	fileStore, closeFile, err := NewFromConfig(context.Background(), configloader.StorageConfig{Backend: "file", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStorage{}, fileStore)
	assert.NoError(t, closeFile())

	redisStore, closeRedis, err := NewFromConfig(context.Background(), configloader.StorageConfig{
		Backend: "redis",
		Redis:   configloader.RedisConfig{Addr: mr.Addr(), KeyPrefix: "x:"},
	})
	require.NoError(t, err)
	assert.IsType(t, &RedisStorage{}, redisStore)
	assert.NoError(t, closeRedis())

	_, _, err = NewFromConfig(context.Background(), configloader.StorageConfig{Backend: "s3"})
	assert.Error(t, err)
}
