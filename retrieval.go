package cbir

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cytomine/cbir/extractor"
	"github.com/cytomine/cbir/identity"
	"github.com/cytomine/cbir/indexer"
)

// Match is one retrieved image.
type Match struct {
	Name     string
	Label    int64
	Distance float32

	// Storage and Index identify the collection the match came from.
	Storage string
	Index   string
}

// NamedImage is an encoded image and the name it is indexed under.
type NamedImage struct {
	Name string
	Data []byte
}

// Retrieval orchestrates one collection: feature extraction, the vector
// index and the name <-> label mapping.
type Retrieval struct {
	store   *identity.Store
	ix      *indexer.Indexer
	logger  *Logger
	metrics MetricsCollector
	mu      *sync.Mutex // nil without WithMutationLock
}

// NewRetrieval binds store and ix, which must describe the same collection.
func NewRetrieval(store *identity.Store, ix *indexer.Indexer, optFns ...Option) *Retrieval {
	o := applyOptions(options{}, optFns)
	r := &Retrieval{
		store:   store,
		ix:      ix,
		logger:  o.logger.WithCollection(ix.Storage(), ix.Index()),
		metrics: o.metrics,
	}
	if o.mutationLock {
		r.mu = new(sync.Mutex)
	}
	return r
}

// Store returns the identity namespace.
func (r *Retrieval) Store() *identity.Store { return r.store }

// Indexer returns the vector indexer.
func (r *Retrieval) Indexer() *indexer.Indexer { return r.ix }

func (r *Retrieval) lock() func() {
	if r.mu == nil {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

// validateName rejects names that would collide with the counter or label keys.
func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidArgument)
	case name == identity.LastIDKey:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidArgument, name)
	case strings.Trim(name, "0123456789") == "":
		return fmt.Errorf("%w: all-digit name %q", ErrInvalidArgument, name)
	}
	return nil
}

// IndexImage extracts the features of image and indexes them under name.
// It returns the allocated labels.
func (r *Retrieval) IndexImage(ctx context.Context, ext extractor.Extractor, image []byte, name string) ([]int64, error) {
	return r.IndexImages(ctx, ext, []NamedImage{{Name: name, Data: image}})
}

// IndexImages indexes a batch with a single index write. Any invalid or
// duplicate name rejects the whole batch before anything is written.
func (r *Retrieval) IndexImages(ctx context.Context, ext extractor.Extractor, images []NamedImage) (labels []int64, err error) {
	start := time.Now()
	names := make([]string, len(images))
	for i, img := range images {
		names[i] = img.Name
	}
	defer func() {
		r.metrics.RecordIndex(len(images), time.Since(start), err)
		r.logger.LogIndex(ctx, names, labels, err)
	}()

	if len(images) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(images))
	for _, name := range names {
		if err := validateName(name); err != nil {
			return nil, err
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q repeated in batch", ErrDuplicateName, name)
		}
		seen[name] = struct{}{}
	}

	unlock := r.lock()
	defer unlock()

	for _, name := range names {
		ok, err := r.store.Contains(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}

	vectors := make([][]float32, len(images))
	for i, img := range images {
		v, err := ext.Extract(ctx, img.Data)
		if err != nil {
			return nil, fmt.Errorf("extract %q: %w", img.Name, err)
		}
		vectors[i] = v
	}

	next, err := r.store.NextLabel(ctx)
	if err != nil {
		return nil, err
	}
	labels, err = r.ix.Add(ctx, next, vectors)
	if err != nil {
		return nil, err
	}

	// The vectors are durable; finish the mapping even if ctx is canceled.
	wctx := context.WithoutCancel(ctx)
	for i, l := range labels {
		if err := r.store.Bind(wctx, names[i], l); err != nil {
			return nil, err
		}
	}
	if err := r.store.SetNextLabel(wctx, labels[len(labels)-1]+1); err != nil {
		return nil, err
	}
	return labels, nil
}

// RemoveImage deletes name from the index and returns its label.
func (r *Retrieval) RemoveImage(ctx context.Context, name string) (label int64, err error) {
	start := time.Now()
	defer func() {
		r.metrics.RecordRemove(time.Since(start), err)
		r.logger.LogRemove(ctx, name, label, err)
	}()

	unlock := r.lock()
	defer unlock()

	label, ok, err := r.store.LabelOf(ctx, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err := r.ix.Remove(ctx, label); err != nil {
		return 0, err
	}
	if err := r.store.Unbind(context.WithoutCancel(ctx), name, label); err != nil {
		return 0, err
	}
	return label, nil
}

// Search returns the k images closest to image, closest first.
func (r *Retrieval) Search(ctx context.Context, ext extractor.Extractor, image []byte, k int) ([]Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, k)
	}
	v, err := ext.Extract(ctx, image)
	if err != nil {
		return nil, err
	}
	return r.SearchVector(ctx, v, k)
}

// SearchVector is Search for an already extracted query vector.
// Labels without a name binding are dropped.
func (r *Retrieval) SearchVector(ctx context.Context, query []float32, k int) (matches []Match, err error) {
	start := time.Now()
	dropped := 0
	defer func() {
		r.metrics.RecordSearch(k, len(matches), time.Since(start), err)
		r.logger.LogSearch(ctx, k, len(matches), dropped, err)
	}()

	neighbors, err := r.ix.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	matches = make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		name, ok, err := r.store.NameOf(ctx, n.Label)
		if err != nil {
			return nil, err
		}
		if !ok {
			dropped++
			continue
		}
		matches = append(matches, Match{
			Name:     name,
			Label:    n.Label,
			Distance: n.Distance,
			Storage:  r.ix.Storage(),
			Index:    r.ix.Index(),
		})
	}
	return matches, nil
}

// Contains reports whether name is indexed.
func (r *Retrieval) Contains(ctx context.Context, name string) (bool, error) {
	return r.store.Contains(ctx, name)
}

// LabelOf returns the label of name, or ErrNotFound.
func (r *Retrieval) LabelOf(ctx context.Context, name string) (int64, error) {
	l, ok, err := r.store.LabelOf(ctx, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return l, nil
}

// NameOf returns the name bound to label, or ErrNotFound.
func (r *Retrieval) NameOf(ctx context.Context, label int64) (string, error) {
	name, ok, err := r.store.NameOf(ctx, label)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: label %d", ErrNotFound, label)
	}
	return name, nil
}
