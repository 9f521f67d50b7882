// Package indexer binds one collection's VectorIndex to its blob name and
// allocates consecutive labels for each added batch.
package indexer

import (
	"context"
	"fmt"
	"path"

	"github.com/cytomine/cbir/blobstore"
	"github.com/cytomine/cbir/index"
)

// BlobName returns the blob holding the index of (storage, indexName).
func BlobName(storage, indexName string) string {
	return path.Join(storage, indexName)
}

// Indexer is the per-collection facade over a VectorIndex.
type Indexer struct {
	storage string
	name    string
	vi      *index.VectorIndex
}

// Open loads the collection's index, or starts an empty one when its blob
// does not exist. Accelerated mode is fixed here for the Indexer's lifetime.
func Open(ctx context.Context, store blobstore.BlobStore, storage, indexName string, optFns ...func(*index.Options)) (*Indexer, error) {
	if storage == "" || indexName == "" {
		return nil, fmt.Errorf("%w: storage and index names are required", index.ErrInvalidArgument)
	}
	vi, err := index.Open(ctx, store, BlobName(storage, indexName), optFns...)
	if err != nil {
		return nil, err
	}
	return &Indexer{storage: storage, name: indexName, vi: vi}, nil
}

// Storage returns the storage name.
func (ix *Indexer) Storage() string { return ix.storage }

// Index returns the index name.
func (ix *Indexer) Index() string { return ix.name }

// Dimension returns the vector length.
func (ix *Indexer) Dimension() int { return ix.vi.Dimension() }

// Accelerated reports whether the index is device resident.
func (ix *Indexer) Accelerated() bool { return ix.vi.Accelerated() }

// Len returns the number of indexed vectors.
func (ix *Indexer) Len() int { return ix.vi.Len() }

// Add stores vectors under labels next, next+1, ... and returns them once
// the index blob has been written.
func (ix *Indexer) Add(ctx context.Context, next int64, vectors [][]float32) ([]int64, error) {
	if next < 0 {
		return nil, fmt.Errorf("%w: negative first label %d", index.ErrInvalidArgument, next)
	}
	labels := make([]int64, len(vectors))
	for i := range labels {
		labels[i] = next + int64(i)
	}
	if err := ix.vi.Add(ctx, vectors, labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// Remove deletes label. An absent label is a no-op.
func (ix *Indexer) Remove(ctx context.Context, label int64) error {
	return ix.vi.Remove(ctx, label)
}

// Search returns at most k neighbours, closest first.
func (ix *Indexer) Search(ctx context.Context, vector []float32, k int) ([]index.Neighbor, error) {
	return ix.vi.Search(ctx, vector, k)
}

// Contains reports whether label is indexed.
func (ix *Indexer) Contains(ctx context.Context, label int64) (bool, error) {
	return ix.vi.Contains(ctx, label)
}

// Save rewrites the index blob.
func (ix *Indexer) Save(ctx context.Context) error { return ix.vi.Save(ctx) }

// Close releases the index.
func (ix *Indexer) Close() error { return ix.vi.Close() }
