package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cytomine/cbir/blobstore"
	"github.com/cytomine/cbir/internal/accel"
	"github.com/cytomine/cbir/internal/flat"
	"github.com/cytomine/cbir/persistence"
)

// Neighbor is one search hit.
type Neighbor struct {
	Label    int64
	Distance float32
}

// VectorIndex is a persisted flat index keyed by int64 labels.
// It is safe for concurrent use; mutations are serialized internally.
type VectorIndex struct {
	mu     sync.RWMutex
	store  blobstore.BlobStore
	name   string
	opts   Options
	logger *slog.Logger

	host     *flat.IDMap    // live index in host mode
	resident accel.Resident // live index in accelerated mode
	closed   bool
}

// New creates an empty index bound to blob name. Nothing is read or written.
func New(store blobstore.BlobStore, name string, optFns ...func(*Options)) (*VectorIndex, error) {
	opts := applyOptions(optFns)
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidArgument, opts.Dimension)
	}
	m, err := flat.New(opts.Dimension, opts.Metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	v := &VectorIndex{
		store:  store,
		name:   name,
		opts:   opts,
		logger: opts.Logger.With("index", name),
	}
	if err := v.install(context.Background(), m); err != nil {
		return nil, err
	}
	return v, nil
}

// Open loads the blob if it exists and otherwise creates an empty index.
func Open(ctx context.Context, store blobstore.BlobStore, name string, optFns ...func(*Options)) (*VectorIndex, error) {
	opts := applyOptions(optFns)
	v := &VectorIndex{
		store:  store,
		name:   name,
		opts:   opts,
		logger: opts.Logger.With("index", name),
	}

	err := v.Load(ctx)
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, blobstore.ErrNotFound):
		v.logger.DebugContext(ctx, "index blob not found, starting empty")
		return New(store, name, optFns...)
	default:
		return nil, err
	}
}

// Name returns the blob name.
func (v *VectorIndex) Name() string { return v.name }

// Dimension returns the vector length.
func (v *VectorIndex) Dimension() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.opts.Dimension
}

// Accelerated reports whether the live index is device resident.
func (v *VectorIndex) Accelerated() bool { return v.opts.Accelerated }

// Len returns the number of stored vectors.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	switch {
	case v.resident != nil:
		return v.resident.Len()
	case v.host != nil:
		return v.host.Len()
	default:
		return 0
	}
}

// Contains reports whether label is stored.
func (v *VectorIndex) Contains(ctx context.Context, label int64) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	m, err := v.hostView(ctx)
	if err != nil {
		return false, err
	}
	return m.Contains(label), nil
}

// Load replaces the live index with the persisted blob.
func (v *VectorIndex) Load(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}

	data, err := blobstore.Get(ctx, v.store, v.name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return fmt.Errorf("%w: %s: %w", ErrPersistence, v.name, err)
		}
		return fmt.Errorf("%w: read %s: %w", ErrPersistence, v.name, err)
	}

	m, h, err := persistence.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrPersistence, v.name, err)
	}
	if v.opts.Dimension != 0 && int(h.Dimension) != v.opts.Dimension {
		return &ErrDimensionMismatch{Expected: v.opts.Dimension, Actual: int(h.Dimension)}
	}
	v.opts.Dimension = int(h.Dimension)

	if err := v.install(ctx, m); err != nil {
		return err
	}
	v.logger.InfoContext(ctx, "index loaded",
		"count", m.Len(),
		"dimension", m.Dimension(),
		"compression", h.Compression.String(),
		"accelerated", v.opts.Accelerated,
	)
	return nil
}

// Save writes the live index to its blob.
func (v *VectorIndex) Save(ctx context.Context) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return ErrClosed
	}
	m, err := v.hostView(ctx)
	if err != nil {
		return err
	}
	return v.persist(ctx, m)
}

// Add stores vectors under labels and persists before returning. A label
// that is already stored has its vector replaced.
func (v *VectorIndex) Add(ctx context.Context, vectors [][]float32, labels []int64) error {
	if err := v.validateAdd(vectors, labels); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}

	next, err := v.mutableCopy(ctx)
	if err != nil {
		return err
	}
	if err := next.AddWithIDs(vectors, labels); err != nil {
		return translate(err)
	}
	if err := v.persist(ctx, next); err != nil {
		return err
	}

	if v.resident != nil {
		if err := v.resident.Add(ctx, vectors, labels); err != nil {
			// The blob already holds the rows; re-upload to keep the device consistent.
			return v.replaceResident(ctx, next)
		}
	} else {
		v.host = next
	}
	v.logger.DebugContext(ctx, "vectors added", "count", len(vectors), "first_label", labels[0])
	return nil
}

// Remove deletes label and persists before returning. A missing label is a no-op.
func (v *VectorIndex) Remove(ctx context.Context, label int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}

	next, err := v.mutableCopy(ctx)
	if err != nil {
		return err
	}
	if next.RemoveIDs(flat.LabelSelector(label)) == 0 {
		return nil
	}
	if err := v.persist(ctx, next); err != nil {
		return err
	}

	if v.resident != nil {
		if err := v.replaceResident(ctx, next); err != nil {
			return err
		}
	} else {
		v.host = next
	}
	v.logger.DebugContext(ctx, "vector removed", "label", label)
	return nil
}

// Search returns up to k neighbours of query, closest first. Padding slots
// of the underlying flat index are never returned.
func (v *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, k)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, ErrClosed
	}
	if len(query) != v.opts.Dimension {
		return nil, &ErrDimensionMismatch{Expected: v.opts.Dimension, Actual: len(query)}
	}

	var (
		dists  []float32
		labels []int64
		err    error
	)
	if v.resident != nil {
		dists, labels, err = v.resident.Search(ctx, query, k)
	} else {
		dists, labels, err = v.host.Search(query, k)
	}
	if err != nil {
		return nil, translate(err)
	}

	out := make([]Neighbor, 0, k)
	for i, l := range labels {
		if l == flat.Sentinel {
			continue
		}
		out = append(out, Neighbor{Label: l, Distance: dists[i]})
	}
	return out, nil
}

// Close releases device memory. The index is unusable afterwards.
func (v *VectorIndex) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	v.host = nil
	if v.resident != nil {
		err := v.resident.Close()
		v.resident = nil
		return err
	}
	return nil
}

func (v *VectorIndex) validateAdd(vectors [][]float32, labels []int64) error {
	if len(vectors) != len(labels) {
		return fmt.Errorf("%w: %d vectors but %d labels", ErrInvalidArgument, len(vectors), len(labels))
	}
	dim := v.Dimension()
	for _, vec := range vectors {
		if len(vec) != dim {
			return &ErrDimensionMismatch{Expected: dim, Actual: len(vec)}
		}
	}
	for _, l := range labels {
		if l < 0 {
			return fmt.Errorf("%w: negative label %d", ErrInvalidArgument, l)
		}
	}
	return nil
}

// install makes m the live index. Caller holds the write lock or owns v.
func (v *VectorIndex) install(ctx context.Context, m *flat.IDMap) error {
	if !v.opts.Accelerated {
		v.host = m
		return nil
	}
	return v.replaceResident(ctx, m)
}

func (v *VectorIndex) replaceResident(ctx context.Context, m *flat.IDMap) error {
	res, err := v.opts.Device.Upload(ctx, m)
	if err != nil {
		return fmt.Errorf("upload to %s: %w", v.opts.Device.Name(), err)
	}
	if v.resident != nil {
		_ = v.resident.Close()
	}
	v.resident = res
	return nil
}

// hostView returns a host index reflecting the live state. In host mode it is
// the live index itself and must not be mutated.
func (v *VectorIndex) hostView(ctx context.Context) (*flat.IDMap, error) {
	if v.closed {
		return nil, ErrClosed
	}
	if v.resident != nil {
		return v.resident.Download(ctx)
	}
	return v.host, nil
}

// mutableCopy returns a host copy that can be changed without affecting readers.
func (v *VectorIndex) mutableCopy(ctx context.Context) (*flat.IDMap, error) {
	if v.resident != nil {
		return v.resident.Download(ctx)
	}
	return v.host.Clone(), nil
}

func (v *VectorIndex) persist(ctx context.Context, m *flat.IDMap) error {
	data, err := persistence.Encode(m, v.opts.Compression)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrPersistence, v.name, err)
	}
	if err := v.store.Put(ctx, v.name, data); err != nil {
		v.logger.ErrorContext(ctx, "index save failed", "error", err)
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, v.name, err)
	}
	v.logger.DebugContext(ctx, "index saved", "count", m.Len(), "bytes", len(data))
	return nil
}

func translate(err error) error {
	var dm *flat.DimensionError
	switch {
	case errors.As(err, &dm):
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual}
	case errors.Is(err, flat.ErrDuplicateLabel),
		errors.Is(err, flat.ErrNegativeLabel),
		errors.Is(err, flat.ErrCountMismatch):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	default:
		return err
	}
}
