package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cytomine/cbir/resource"
)

func testStoreLifecycle(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()

	ok, err := Exists(ctx, store, "images/index")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Open(ctx, "images/index")
	assert.ErrorIs(t, err, ErrNotFound)

	data := []byte("hello world, this is a test blob")
	require.NoError(t, store.Put(ctx, "images/index", data))

	blob, err := store.Open(ctx, "images/index")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))

	all, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, data, all)
	require.NoError(t, blob.Close())

	require.NoError(t, store.Put(ctx, "images/index", []byte("v2")))
	got, err := Get(ctx, store, "images/index")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	require.NoError(t, store.Put(ctx, "images/other", []byte("x")))
	require.NoError(t, store.Put(ctx, "slides/index", []byte("y")))

	names, err := store.List(ctx, "images/")
	require.NoError(t, err)
	assert.Equal(t, []string{"images/index", "images/other"}, names)

	require.NoError(t, store.Delete(ctx, "images/other"))
	require.NoError(t, store.Delete(ctx, "images/other"))

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"images/index", "slides/index"}, names)
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	store := NewMemoryStore()
	testStoreLifecycle(t, store)
	assert.Equal(t, 4, store.Puts())
}

func TestLocalStore_Lifecycle(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "images"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "slides"), 0o755))

	store := NewLocalStore(root, WithResourceController(resource.NewController(resource.Config{
		IOLimitBytesPerSec: 1 << 20,
	})))
	testStoreLifecycle(t, store)

	_, err := os.Stat(filepath.Join(root, "images", "index"))
	require.NoError(t, err)
}

func TestLocalStore_MissingStorageDirectory(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	err := store.Put(context.Background(), "nope/index", []byte("x"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "absent"))

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_EmptyBlob(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "empty", nil))
	got, err := Get(ctx, store, "empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_PutCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", data))
	data[0] = 'z'

	got, err := Get(ctx, store, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, store.Put(canceled, "k", data), context.Canceled)
}

func TestKeyspace(t *testing.T) {
	for _, root := range []Keyspace{"cbir", "cbir/"} {
		assert.Equal(t, "cbir/images/index", root.Key("images/index"))
		assert.Equal(t, "images/index", root.Name("cbir/images/index"))
		assert.Equal(t, "", root.Name("other/images/index"))
		assert.Equal(t, "", root.Name("cbirx/images/index"))
	}

	var none Keyspace
	assert.Equal(t, "images/index", none.Key("images/index"))
	assert.Equal(t, "images/index", none.Name("images/index"))
}
