package filestore

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	s := New(fs, "/home/u/.kai")

	_, ok, err := s.Get(ctx, "kai_theme")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "kai_theme", []byte("dark")))
	require.NoError(t, s.Put(ctx, "kai_theme", []byte("light")))
	v, ok, err := s.Get(ctx, "kai_theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "light", string(v))

	exists, err := afero.Exists(fs, "/home/u/.kai/kai_theme.tmp")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Delete(ctx, "kai_theme"))
	require.NoError(t, s.Delete(ctx, "kai_theme"))
	_, ok, err = s.Get(ctx, "kai_theme")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreRejectsPathKeys(t *testing.T) {
	s := New(afero.NewMemMapFs(), "/data")
	assert.Error(t, s.Put(context.Background(), "../escape", []byte("x")))
	_, _, err := s.Get(context.Background(), "")
	assert.Error(t, err)
}
