// Package docstoretest holds a behavioural test suite every docstore.Store
// backend must pass.
package docstoretest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/quizbank/internal/docstore"
)

// Run exercises s against the Store contract. s must start empty.
func Run(t *testing.T, s docstore.Store) {
	ctx := context.Background()

	t.Run("create then read", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, "bank/Basic/1_go.md", "hello"))
		got, err := s.Read(ctx, "bank/Basic/1_go.md")
		require.NoError(t, err)
		assert.Equal(t, "hello", got)
	})

	t.Run("create existing fails", func(t *testing.T) {
		err := s.Create(ctx, "bank/Basic/1_go.md", "again")
		assert.ErrorIs(t, err, docstore.ErrExists)
		got, err := s.Read(ctx, "bank/Basic/1_go.md")
		require.NoError(t, err)
		assert.Equal(t, "hello", got, "failed create must not touch the document")
	})

	t.Run("modify", func(t *testing.T) {
		require.NoError(t, s.Modify(ctx, "/bank/Basic/1_go.md", "changed"))
		got, err := s.Read(ctx, "bank/Basic/1_go.md")
		require.NoError(t, err)
		assert.Equal(t, "changed", got)
	})

	t.Run("modify missing fails", func(t *testing.T) {
		assert.ErrorIs(t, s.Modify(ctx, "bank/missing.md", "x"), docstore.ErrNotFound)
	})

	t.Run("put creates and modifies", func(t *testing.T) {
		require.NoError(t, docstore.Put(ctx, s, "bank/Extra/2_x.md", "one"))
		require.NoError(t, docstore.Put(ctx, s, "bank/Extra/2_x.md", "two"))
		got, err := s.Read(ctx, "bank/Extra/2_x.md")
		require.NoError(t, err)
		assert.Equal(t, "two", got)
	})

	t.Run("list by prefix", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, "bankrupt.md", "not under bank/"))
		infos, err := s.List(ctx, "bank")
		require.NoError(t, err)
		var paths []string
		for _, info := range infos {
			paths = append(paths, info.Path)
			assert.False(t, info.ModTime.IsZero(), "mod time for %s", info.Path)
		}
		assert.Equal(t, []string{"bank/Basic/1_go.md", "bank/Extra/2_x.md"}, paths)

		all, err := s.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("stat", func(t *testing.T) {
		info, err := s.Stat(ctx, "bank/Extra/2_x.md")
		require.NoError(t, err)
		assert.Equal(t, "bank/Extra/2_x.md", info.Path)
		ok, err := docstore.Exists(ctx, s, "bank/none.md")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "bank/Extra/2_x.md"))
		_, err := s.Read(ctx, "bank/Extra/2_x.md")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "bank/Extra/2_x.md"), docstore.ErrNotFound)
	})

	t.Run("escaping paths rejected", func(t *testing.T) {
		assert.ErrorIs(t, s.Create(ctx, "../outside.md", "x"), docstore.ErrInvalidPath)
		_, err := s.Read(ctx, "bank/../../etc/passwd")
		assert.ErrorIs(t, err, docstore.ErrInvalidPath)
	})
}
