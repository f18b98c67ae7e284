package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	w, err := s.Create(ctx, "snapshots/latest")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello blob"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := s.Open(ctx, "snapshots/latest")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "hello blob", string(data))
}

func TestLocalStore_OpenMissing(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Open(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_UnclosedWriteIsInvisible(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStore(root)
	require.NoError(t, err)

	w, err := s.Create(ctx, "partial")
	require.NoError(t, err)
	_, err = w.Write([]byte("half"))
	require.NoError(t, err)

	// Not closed yet: the blob must not be visible.
	_, err = s.Open(ctx, "partial")
	assert.ErrorIs(t, err, ErrNotFound)

	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, w.Close())

	_, err = os.Stat(filepath.Join(root, "partial"))
	assert.NoError(t, err)
}

func TestLocalStore_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"snap/b", "snap/a", "other/c"} {
		w, err := s.Create(ctx, name)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	names, err := s.List(ctx, "snap/")
	require.NoError(t, err)
	assert.Equal(t, []string{"snap/a", "snap/b"}, names)

	require.NoError(t, s.Delete(ctx, "snap/a"))
	require.NoError(t, s.Delete(ctx, "snap/a")) // missing is fine

	names, err = s.List(ctx, "snap/")
	require.NoError(t, err)
	assert.Equal(t, []string{"snap/b"}, names)
}
