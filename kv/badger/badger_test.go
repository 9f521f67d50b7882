package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cytomine/cbir/kv/kvtest"
)

func TestBackend_InMemory(t *testing.T) {
	b, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	defer b.Close()

	kvtest.Run(t, b)
}

func TestBackend_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "s:i:last_id", "5"))
	require.NoError(t, b.Close())

	b, err = Open(Options{Dir: dir})
	require.NoError(t, err)
	defer b.Close()

	v, err := b.Get(ctx, "s:i:last_id")
	require.NoError(t, err)
	assert.Equal(t, "5", v)
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}
