package redisstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real server: REDIS_TEST_ADDR=127.0.0.1:6379 go test ./...
func TestStoreAgainstRedis(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	s, err := Dial(ctx, addr, "", 0)
	require.NoError(t, err)
	defer s.Close()
	s.prefix = "chat-relay-test:" + uuid.NewString() + ":"

	_, ok, err := s.Get(ctx, "kai_theme")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "kai_theme", []byte("dark")))
	v, ok, err := s.Get(ctx, "kai_theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", string(v))

	require.NoError(t, s.Delete(ctx, "kai_theme"))
	_, ok, err = s.Get(ctx, "kai_theme")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDialUnreachable(t *testing.T) {
	_, err := Dial(context.Background(), "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
