package localstate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *Store {
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestStore_AuthToken(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	token, err := s.AuthToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, s.SetAuthToken(ctx, "first"))
	require.NoError(t, s.SetAuthToken(ctx, "second"))

	token, err = s.AuthToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", token)

	require.NoError(t, s.ClearAuthToken(ctx))
	require.NoError(t, s.ClearAuthToken(ctx))

	token, err = s.AuthToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestStore_HasLoggedInBefore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := Open("sqlite://" + path)
	require.NoError(t, err)

	ok, err := s.HasLoggedInBefore(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.MarkHasLoggedInBefore(ctx))
	require.NoError(t, s.Close())

	// survives reopening
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	ok, err = s.HasLoggedInBefore(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, s.Ping(ctx))
}

func TestOpen_Empty(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
