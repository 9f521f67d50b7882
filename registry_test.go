package cbir

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cytomine/cbir/blobstore"
	"github.com/cytomine/cbir/kv"
	"github.com/cytomine/cbir/persistence"
)

func TestRegistry_OpenIsCached(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(blobstore.NewMemoryStore(), kv.NewMemory(), WithDimension(4))
	defer reg.Close()

	a, err := reg.Open(ctx, "s", "")
	require.NoError(t, err)
	b, err := reg.Open(ctx, "s", DefaultIndex)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, "s", a.Storage())
	assert.Equal(t, DefaultIndex, a.Index())
	assert.Equal(t, "s:index", a.Identity().Prefix())
	assert.Equal(t, 4, a.Indexer().Dimension())

	c, err := reg.Open(ctx, "s", "other")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Len(t, reg.Collections(), 2)
}

func TestRegistry_RequiresStorage(t *testing.T) {
	reg := NewRegistry(blobstore.NewMemoryStore(), kv.NewMemory(), WithDimension(4))
	_, err := reg.Open(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRegistry_NewCollectionNeedsDimension(t *testing.T) {
	reg := NewRegistry(blobstore.NewMemoryStore(), kv.NewMemory())
	_, err := reg.Open(context.Background(), "s", "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRegistry_ReopenAfterClose(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	backend := kv.NewMemory()
	ext := lookupExtractor(scenario)

	reg := NewRegistry(blobs, backend, WithDimension(4), WithCompression(persistence.CompressionZSTD))
	c, err := reg.Open(ctx, "s", "")
	require.NoError(t, err)
	_, err = c.Retrieval().IndexImage(ctx, ext, []byte("B"), "b.png")
	require.NoError(t, err)
	require.NoError(t, reg.Close())
	require.NoError(t, reg.Close())

	_, err = reg.Open(ctx, "s", "")
	assert.ErrorIs(t, err, ErrClosed)

	reg = NewRegistry(blobs, backend)
	defer reg.Close()
	c, err = reg.Open(ctx, "s", "")
	require.NoError(t, err)
	assert.Equal(t, 4, c.Indexer().Dimension())

	matches, err := c.Retrieval().Search(ctx, ext, []byte("Q"), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b.png", matches[0].Name)
}

func TestRegistry_Accelerated(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(blobstore.NewMemoryStore(), kv.NewMemory(), WithDimension(4), WithAccelerated(true))
	defer reg.Close()

	c, err := reg.Open(ctx, "s", "")
	require.NoError(t, err)
	assert.True(t, c.Indexer().Accelerated())

	ext := lookupExtractor(scenario)
	_, err = c.Retrieval().IndexImage(ctx, ext, []byte("A"), "a.png")
	require.NoError(t, err)
	_, err = c.Retrieval().IndexImage(ctx, ext, []byte("B"), "b.png")
	require.NoError(t, err)
	_, err = c.Retrieval().RemoveImage(ctx, "a.png")
	require.NoError(t, err)

	matches, err := c.Retrieval().Search(ctx, ext, []byte("Q"), 2)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b.png", matches[0].Name)
	assert.Equal(t, float32(2), matches[0].Distance)
}

func TestRegistry_ConcurrentIndexing(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(blobstore.NewMemoryStore(), kv.NewMemory(), WithDimension(4))
	defer reg.Close()
	c, err := reg.Open(ctx, "s", "")
	require.NoError(t, err)
	ext := lookupExtractor(scenario)

	const n = 16
	errs := make(chan error, n)
	for i := range n {
		go func() {
			_, err := c.Retrieval().IndexImage(ctx, ext, []byte("C"), "img-"+string(rune('a'+i))+".png")
			errs <- err
		}()
	}
	for range n {
		require.NoError(t, <-errs)
	}

	next, err := c.Identity().NextLabel(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), next)
	assert.Equal(t, n, c.Indexer().Len())
}

// gatedStore blocks opens of one blob until gate is closed.
type gatedStore struct {
	blobstore.BlobStore
	slow  string
	gate  chan struct{}
	opens atomic.Int32
}

func (s *gatedStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	s.opens.Add(1)
	if name == s.slow {
		<-s.gate
	}
	return s.BlobStore.Open(ctx, name)
}

func TestRegistry_ConcurrentOpen(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{BlobStore: blobstore.NewMemoryStore(), slow: "slow/index", gate: make(chan struct{})}
	reg := NewRegistry(store, kv.NewMemory(), WithDimension(2))
	defer reg.Close()

	var wg sync.WaitGroup
	got := make([]*Collection, 4)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := reg.Open(ctx, "slow", "")
			assert.NoError(t, err)
			got[i] = c
		}()
	}
	require.Eventually(t, func() bool { return store.opens.Load() == 1 }, time.Second, time.Millisecond)

	// Another collection is not held up by the pending load.
	fast, err := reg.Open(ctx, "fast", "")
	require.NoError(t, err)
	assert.Equal(t, "fast", fast.Storage())

	close(store.gate)
	wg.Wait()
	require.NotNil(t, got[0])
	for _, c := range got {
		assert.Same(t, got[0], c)
	}
	assert.Equal(t, int32(2), store.opens.Load())
	assert.Len(t, reg.Collections(), 2)
}

func TestRegistry_OpenCanceledWhileLoading(t *testing.T) {
	store := &gatedStore{BlobStore: blobstore.NewMemoryStore(), slow: "slow/index", gate: make(chan struct{})}
	reg := NewRegistry(store, kv.NewMemory(), WithDimension(2))
	defer reg.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := reg.Open(ctx, "slow", "")
		done <- err
	}()
	require.Eventually(t, func() bool { return store.opens.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(store.gate)
	c, err := reg.Open(context.Background(), "slow", "")
	require.NoError(t, err)
	assert.Equal(t, "slow", c.Storage())
}
