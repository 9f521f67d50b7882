package accel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cytomine/cbir/internal/flat"
	"github.com/cytomine/cbir/queue"
	"github.com/cytomine/cbir/resource"
)

// ErrClosed is returned by a Resident after Close.
var ErrClosed = errors.New("accel: resident index closed")

// Device uploads host indexes.
type Device interface {
	Name() string
	// Upload copies m onto the device. m stays owned by the caller.
	Upload(ctx context.Context, m *flat.IDMap) (Resident, error)
}

// Resident is an index living on a device.
type Resident interface {
	// Add stores rows; semantics match flat.IDMap.AddWithIDs.
	Add(ctx context.Context, vectors [][]float32, labels []int64) error
	// Search returns exactly k slots padded with flat.Sentinel.
	Search(ctx context.Context, query []float32, k int) ([]float32, []int64, error)
	// Download returns an independent host copy.
	Download(ctx context.Context) (*flat.IDMap, error)
	Len() int
	Close() error
}

// Parallel is a CPU device that scans shards concurrently.
type Parallel struct {
	shards int
	rc     *resource.Controller
}

// NewParallel creates a device with the given shard count (GOMAXPROCS when <= 0).
// rc may be nil.
func NewParallel(shards int, rc *resource.Controller) *Parallel {
	if shards <= 0 {
		shards = runtime.GOMAXPROCS(0)
	}
	return &Parallel{shards: shards, rc: rc}
}

// Name implements Device.
func (p *Parallel) Name() string { return fmt.Sprintf("parallel/%d", p.shards) }

// Upload implements Device.
func (p *Parallel) Upload(ctx context.Context, m *flat.IDMap) (Resident, error) {
	size := m.SizeBytes()
	if err := p.rc.AcquireMemory(ctx, size); err != nil {
		return nil, fmt.Errorf("accel: reserve %d bytes: %w", size, err)
	}
	return &parallelResident{
		dim:    m.Dimension(),
		shards: m.Partition(p.shards),
		rc:     p.rc,
		bytes:  size,
	}, nil
}

type parallelResident struct {
	mu     sync.RWMutex
	dim    int
	shards []*flat.IDMap
	rc     *resource.Controller
	bytes  int64
	closed bool
}

func (r *parallelResident) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.shards {
		n += s.Len()
	}
	return n
}

func (r *parallelResident) Add(ctx context.Context, vectors [][]float32, labels []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if err := r.shards[0].CheckBatch(vectors, labels); err != nil {
		return err
	}

	target := 0
	for i, s := range r.shards {
		if s.Len() < r.shards[target].Len() {
			target = i
		}
	}

	// Stored labels are replaced in the shard that holds them.
	batches := make([]struct {
		vectors [][]float32
		labels  []int64
	}, len(r.shards))
	fresh := 0
	for i, l := range labels {
		owner := slices.IndexFunc(r.shards, func(s *flat.IDMap) bool { return s.Contains(l) })
		if owner < 0 {
			owner = target
			fresh++
		}
		batches[owner].vectors = append(batches[owner].vectors, vectors[i])
		batches[owner].labels = append(batches[owner].labels, l)
	}

	grown := int64(fresh) * r.shards[0].RowBytes()
	if err := r.rc.AcquireMemory(ctx, grown); err != nil {
		return fmt.Errorf("accel: reserve %d bytes: %w", grown, err)
	}
	r.bytes += grown
	for i, b := range batches {
		if len(b.labels) == 0 {
			continue
		}
		if err := r.shards[i].AddWithIDs(b.vectors, b.labels); err != nil {
			return err
		}
	}
	return nil
}

func (r *parallelResident) Search(ctx context.Context, query []float32, k int) ([]float32, []int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, nil, ErrClosed
	}
	if len(query) != r.dim {
		return nil, nil, &flat.DimensionError{Expected: r.dim, Actual: len(query)}
	}
	if k <= 0 {
		return nil, nil, fmt.Errorf("accel: k must be positive, got %d", k)
	}

	partial := make([][]queue.Item, len(r.shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range r.shards {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if s.Len() == 0 {
				return nil
			}
			items, err := s.Candidates(query, k)
			partial[i] = items
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	tk := queue.NewTopK(k)
	for _, items := range partial {
		for _, it := range items {
			tk.Offer(it.Label, it.Distance)
		}
	}
	merged := tk.Sorted()

	dists := make([]float32, k)
	labels := make([]int64, k)
	for i := range k {
		if i < len(merged) {
			dists[i], labels[i] = merged[i].Distance, merged[i].Label
			continue
		}
		dists[i], labels[i] = float32(math.Inf(1)), flat.Sentinel
	}
	return dists, labels, nil
}

func (r *parallelResident) Download(_ context.Context) (*flat.IDMap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	return flat.Concat(r.shards...)
}

func (r *parallelResident) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.rc.ReleaseMemory(r.bytes)
	r.shards = nil
	return nil
}
