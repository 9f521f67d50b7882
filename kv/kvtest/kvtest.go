// Package kvtest holds the conformance checks shared by kv backends.
package kvtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cytomine/cbir/kv"
)

// Run exercises the kv.Backend contract against b, which must start empty.
func Run(t *testing.T, b kv.Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := b.Get(ctx, "missing")
		assert.ErrorIs(t, err, kv.ErrNotFound)

		ok, err := b.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SetGetOverwrite", func(t *testing.T) {
		require.NoError(t, b.Set(ctx, "a:b:name.png", "3"))
		v, err := b.Get(ctx, "a:b:name.png")
		require.NoError(t, err)
		assert.Equal(t, "3", v)

		require.NoError(t, b.Set(ctx, "a:b:name.png", "4"))
		v, err = b.Get(ctx, "a:b:name.png")
		require.NoError(t, err)
		assert.Equal(t, "4", v)

		ok, err := b.Exists(ctx, "a:b:name.png")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("EmptyValue", func(t *testing.T) {
		require.NoError(t, b.Set(ctx, "empty", ""))
		v, err := b.Get(ctx, "empty")
		require.NoError(t, err)
		assert.Equal(t, "", v)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, b.Set(ctx, "gone", "x"))
		require.NoError(t, b.Delete(ctx, "gone"))
		_, err := b.Get(ctx, "gone")
		assert.ErrorIs(t, err, kv.ErrNotFound)

		require.NoError(t, b.Delete(ctx, "never-set"))
	})
}
