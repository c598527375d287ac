package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/ragbook/blob"
	"github.com/poiesic/ragbook/core"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "uploads")
	s, err := newStore(root)
	require.NoError(t, err)
	assert.Equal(t, "local", s.Name())

	key := blob.Key("doc1", "notes.txt")
	location, err := s.Put(ctx, key, strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "doc1", "notes.txt"), location)

	r, err := s.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// No temporary files are left behind.
	entries, err := os.ReadDir(filepath.Join(root, "doc1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	t.Run("size mismatch", func(t *testing.T) {
		_, err := s.Put(ctx, "doc1/short.txt", strings.NewReader("abc"), 10, "")
		assert.ErrorIs(t, err, core.ErrExternal)
		_, err = os.Stat(filepath.Join(root, "doc1", "short.txt"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("unknown size", func(t *testing.T) {
		_, err := s.Put(ctx, "doc1/any.txt", strings.NewReader("abc"), -1, "")
		assert.NoError(t, err)
	})

	t.Run("invalid keys", func(t *testing.T) {
		_, err := s.Put(ctx, "../escape.txt", strings.NewReader("x"), 1, "")
		assert.ErrorIs(t, err, blob.ErrInvalidKey)
		_, err = s.Get(ctx, "/etc/passwd")
		assert.ErrorIs(t, err, blob.ErrInvalidKey)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "doc1/any.txt"))
		require.NoError(t, s.Delete(ctx, "doc1/any.txt"))
		_, err := s.Get(ctx, "doc1/any.txt")
		assert.ErrorIs(t, err, blob.ErrNotFound)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("delete prefix", func(t *testing.T) {
		require.NoError(t, s.DeletePrefix(ctx, blob.DocumentPrefix("doc1")))
		_, err := os.Stat(filepath.Join(root, "doc1"))
		assert.True(t, os.IsNotExist(err))
		require.NoError(t, s.DeletePrefix(ctx, blob.DocumentPrefix("doc1")))
		_, err = os.Stat(root)
		assert.NoError(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Put(cctx, "doc2/x.txt", strings.NewReader("x"), 1, "")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewRequiresRoot(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrRootRequired)
}
