package cbir

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/cytomine/cbir/blobstore"
	"github.com/cytomine/cbir/extractor"
	"github.com/cytomine/cbir/identity"
	"github.com/cytomine/cbir/indexer"
	"github.com/cytomine/cbir/kv"
)

// Collection is one opened (storage, index) pair.
type Collection struct {
	storage   string
	index     string
	ix        *indexer.Indexer
	identity  *identity.Store
	retrieval *Retrieval
}

// Storage returns the storage name.
func (c *Collection) Storage() string { return c.storage }

// Index returns the index name.
func (c *Collection) Index() string { return c.index }

// Indexer returns the collection's vector indexer.
func (c *Collection) Indexer() *indexer.Indexer { return c.ix }

// Identity returns the collection's identity namespace.
func (c *Collection) Identity() *identity.Store { return c.identity }

// Retrieval returns the collection's orchestrator.
func (c *Collection) Retrieval() *Retrieval { return c.retrieval }

type collectionKey struct {
	storage, index string
}

func (k collectionKey) String() string { return k.storage + "/" + k.index }

// Registry opens each collection at most once per process and shares one
// blob store and one identity backend between them.
type Registry struct {
	store   blobstore.BlobStore
	backend kv.Backend
	opts    options
	optFns  []Option

	flights     singleflight.Group
	mu          sync.Mutex
	collections map[collectionKey]*Collection
	closed      bool
}

// NewRegistry creates a registry. The mutation lock is on unless disabled
// with WithMutationLock(false).
func NewRegistry(store blobstore.BlobStore, backend kv.Backend, optFns ...Option) *Registry {
	return &Registry{
		store:       store,
		backend:     backend,
		opts:        applyOptions(options{mutationLock: true}, optFns),
		optFns:      optFns,
		collections: make(map[collectionKey]*Collection),
	}
}

// Open returns the collection (storage, indexName), loading its index on first
// use. An empty indexName selects DefaultIndex. Concurrent opens of the same
// collection share one load; loads of different collections run in parallel.
func (r *Registry) Open(ctx context.Context, storage, indexName string) (*Collection, error) {
	if storage == "" {
		return nil, fmt.Errorf("%w: storage is required", ErrInvalidArgument)
	}
	if indexName == "" {
		indexName = DefaultIndex
	}
	key := collectionKey{storage, indexName}
	if c, err := r.cached(key); c != nil || err != nil {
		return c, err
	}

	// The load outlives a canceled caller so waiters on the same key still get it.
	ch := r.flights.DoChan(key.String(), func() (any, error) {
		return r.load(context.WithoutCancel(ctx), key)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Collection), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) cached(key collectionKey) (*Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	return r.collections[key], nil
}

func (r *Registry) load(ctx context.Context, key collectionKey) (*Collection, error) {
	if c, err := r.cached(key); c != nil || err != nil {
		return c, err
	}

	ix, err := indexer.Open(ctx, r.store, key.storage, key.index, r.opts.indexOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	ids := identity.New(r.backend, key.storage, key.index)
	c := &Collection{
		storage:   key.storage,
		index:     key.index,
		ix:        ix,
		identity:  ids,
		retrieval: NewRetrieval(ids, ix, append([]Option{WithMutationLock(true)}, r.optFns...)...),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.Join(ErrClosed, ix.Close())
	}
	r.collections[key] = c
	r.opts.logger.WithCollection(key.storage, key.index).InfoContext(ctx, "collection opened",
		"vectors", ix.Len(),
		"dimension", ix.Dimension(),
		"accelerated", ix.Accelerated(),
	)
	return c, nil
}

// Collections returns the opened collections ordered by storage then index.
func (r *Registry) Collections() []*Collection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Collection, 0, len(r.collections))
	for _, c := range r.collections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].storage != out[j].storage {
			return out[i].storage < out[j].storage
		}
		return out[i].index < out[j].index
	})
	return out
}

// MultiSearch searches the DefaultIndex of each storage with one shared
// extractor and merges the results.
func (r *Registry) MultiSearch(ctx context.Context, ext extractor.Extractor, image []byte, k int, storages []string) ([]Match, error) {
	targets := make([]StorageTarget, len(storages))
	for i, s := range storages {
		targets[i] = StorageTarget{Storage: s, Extractor: ext}
	}
	return r.MultiSearchTargets(ctx, image, k, targets)
}

// StorageTarget names a storage's DefaultIndex and the extractor it was built with.
type StorageTarget struct {
	Storage   string
	Extractor extractor.Extractor
}

// MultiSearchTargets searches the DefaultIndex of each storage with its own
// extractor and merges the results.
func (r *Registry) MultiSearchTargets(ctx context.Context, image []byte, k int, targets []StorageTarget) ([]Match, error) {
	colls := make([]Target, 0, len(targets))
	for _, t := range targets {
		c, err := r.Open(ctx, t.Storage, DefaultIndex)
		if err != nil {
			return nil, err
		}
		colls = append(colls, Target{Retrieval: c.Retrieval(), Extractor: t.Extractor})
	}
	return MultiSearchTargets(ctx, image, k, colls, r.optFns...)
}

// Close releases every opened index. The identity backend is left open.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var errs []error
	for _, c := range r.collections {
		errs = append(errs, c.ix.Close())
	}
	r.collections = nil
	return errors.Join(errs...)
}
