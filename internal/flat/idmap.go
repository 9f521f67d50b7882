package flat

import (
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/cytomine/cbir/distance"
	"github.com/cytomine/cbir/queue"
)

// Sentinel is the label reported for unused result slots.
const Sentinel int64 = -1

var (
	// ErrDuplicateLabel is returned when a label repeats within one batch or
	// across shards being merged.
	ErrDuplicateLabel = errors.New("flat: duplicate label")
	// ErrNegativeLabel is returned for labels below zero.
	ErrNegativeLabel = errors.New("flat: negative label")
	// ErrCountMismatch is returned when vectors and labels differ in length.
	ErrCountMismatch = errors.New("flat: vector and label counts differ")
)

// DimensionError reports a vector whose length does not match the index.
type DimensionError struct {
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("flat: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Selector picks labels for removal.
type Selector interface {
	IsMember(label int64) bool
}

// RangeSelector selects labels in the half-open interval [Min, Max).
type RangeSelector struct {
	Min, Max int64
}

// IsMember implements Selector.
func (r RangeSelector) IsMember(label int64) bool { return label >= r.Min && label < r.Max }

// LabelSelector selects exactly one label.
type LabelSelector int64

// IsMember implements Selector.
func (s LabelSelector) IsMember(label int64) bool { return label == int64(s) }

// IDMap is a flat index with an id-map wrapper. It is not safe for concurrent
// mutation; callers serialize writes.
type IDMap struct {
	dim    int
	metric distance.Metric
	dist   distance.Func
	labels []int64
	data   []float32
	live   *roaring64.Bitmap
}

// New creates an empty index for vectors of the given dimension.
func New(dim int, metric distance.Metric) (*IDMap, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("flat: invalid dimension %d", dim)
	}
	fn, err := metric.Func()
	if err != nil {
		return nil, err
	}
	return &IDMap{
		dim:    dim,
		metric: metric,
		dist:   fn,
		live:   roaring64.New(),
	}, nil
}

// Dimension returns the vector dimension.
func (m *IDMap) Dimension() int { return m.dim }

// Metric returns the distance metric.
func (m *IDMap) Metric() distance.Metric { return m.metric }

// Len returns the number of stored rows.
func (m *IDMap) Len() int { return len(m.labels) }

// Contains reports whether label is stored.
func (m *IDMap) Contains(label int64) bool {
	return label >= 0 && m.live.Contains(uint64(label))
}

// Labels returns a copy of the stored labels in row order.
func (m *IDMap) Labels() []int64 {
	out := make([]int64, len(m.labels))
	copy(out, m.labels)
	return out
}

// Vector returns the stored vector for label. The slice aliases internal storage.
func (m *IDMap) Vector(label int64) ([]float32, bool) {
	if !m.Contains(label) {
		return nil, false
	}
	return m.row(m.indexOf(label)), true
}

func (m *IDMap) row(i int) []float32 {
	return m.data[i*m.dim : (i+1)*m.dim]
}

// SizeBytes estimates the resident size of the stored rows.
func (m *IDMap) SizeBytes() int64 {
	return int64(len(m.data))*4 + int64(len(m.labels))*8
}

// CheckBatch validates vectors and labels for AddWithIDs without storing
// anything. Labels must be non-negative and unique within the batch.
func (m *IDMap) CheckBatch(vectors [][]float32, labels []int64) error {
	if len(vectors) != len(labels) {
		return fmt.Errorf("%w: %d vectors, %d labels", ErrCountMismatch, len(vectors), len(labels))
	}
	seen := make(map[int64]struct{}, len(labels))
	for i, v := range vectors {
		if len(v) != m.dim {
			return &DimensionError{Expected: m.dim, Actual: len(v)}
		}
		l := labels[i]
		if l < 0 {
			return fmt.Errorf("%w: %d", ErrNegativeLabel, l)
		}
		if _, dup := seen[l]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateLabel, l)
		}
		seen[l] = struct{}{}
	}
	return nil
}

// AddWithIDs stores vectors under the given labels. A label that is already
// stored has its row replaced in place. The call is all or nothing: nothing
// changes if any vector or label is rejected.
func (m *IDMap) AddWithIDs(vectors [][]float32, labels []int64) error {
	if err := m.CheckBatch(vectors, labels); err != nil {
		return err
	}
	for i, v := range vectors {
		l := labels[i]
		if m.live.Contains(uint64(l)) {
			copy(m.row(m.indexOf(l)), v)
			continue
		}
		m.data = append(m.data, v...)
		m.labels = append(m.labels, l)
		m.live.Add(uint64(l))
	}
	return nil
}

// NewRows counts the labels of a batch that are not stored yet.
func (m *IDMap) NewRows(labels []int64) int {
	n := 0
	for _, l := range labels {
		if !m.Contains(l) {
			n++
		}
	}
	return n
}

// RowBytes is the resident size of one row.
func (m *IDMap) RowBytes() int64 { return int64(m.dim)*4 + 8 }

func (m *IDMap) indexOf(label int64) int {
	for i, l := range m.labels {
		if l == label {
			return i
		}
	}
	return -1
}

// RemoveIDs deletes every row selected by sel and compacts storage.
// It returns the number of removed rows.
func (m *IDMap) RemoveIDs(sel Selector) int {
	w := 0
	for i, l := range m.labels {
		if sel.IsMember(l) {
			m.live.Remove(uint64(l))
			continue
		}
		if w != i {
			m.labels[w] = l
			copy(m.data[w*m.dim:(w+1)*m.dim], m.row(i))
		}
		w++
	}
	removed := len(m.labels) - w
	m.labels = m.labels[:w]
	m.data = m.data[:w*m.dim]
	return removed
}

// Search returns exactly k (distance, label) slots ordered closest first.
// Slots beyond the number of stored rows hold +Inf and Sentinel.
func (m *IDMap) Search(query []float32, k int) ([]float32, []int64, error) {
	if len(query) != m.dim {
		return nil, nil, &DimensionError{Expected: m.dim, Actual: len(query)}
	}
	if k <= 0 {
		return nil, nil, fmt.Errorf("flat: k must be positive, got %d", k)
	}

	items := m.searchRows(query, k)
	dists := make([]float32, k)
	labels := make([]int64, k)
	for i := range k {
		if i < len(items) {
			dists[i] = items[i].Distance
			labels[i] = items[i].Label
			continue
		}
		dists[i] = float32(math.Inf(1))
		labels[i] = Sentinel
	}
	return dists, labels, nil
}

// Candidates returns up to k closest rows without sentinel padding.
func (m *IDMap) Candidates(query []float32, k int) ([]queue.Item, error) {
	if len(query) != m.dim {
		return nil, &DimensionError{Expected: m.dim, Actual: len(query)}
	}
	if k <= 0 {
		return nil, fmt.Errorf("flat: k must be positive, got %d", k)
	}
	return m.searchRows(query, k), nil
}

func (m *IDMap) searchRows(query []float32, k int) []queue.Item {
	tk := queue.NewTopK(min(k, len(m.labels)))
	for i, l := range m.labels {
		tk.Offer(l, m.dist(query, m.row(i)))
	}
	return tk.Sorted()
}

// Clone returns a deep copy.
func (m *IDMap) Clone() *IDMap {
	c := &IDMap{
		dim:    m.dim,
		metric: m.metric,
		dist:   m.dist,
		labels: make([]int64, len(m.labels)),
		data:   make([]float32, len(m.data)),
		live:   m.live.Clone(),
	}
	copy(c.labels, m.labels)
	copy(c.data, m.data)
	return c
}

// Partition splits the rows into at most n contiguous shards. Shards are
// independent copies. An empty index yields a single empty shard.
func (m *IDMap) Partition(n int) []*IDMap {
	if n < 1 {
		n = 1
	}
	rows := len(m.labels)
	if rows < n {
		n = max(rows, 1)
	}
	per := (rows + n - 1) / n
	shards := make([]*IDMap, 0, n)
	for start := 0; start < rows || len(shards) == 0; start += per {
		end := min(start+per, rows)
		s, _ := New(m.dim, m.metric)
		s.labels = append(s.labels, m.labels[start:end]...)
		s.data = append(s.data, m.data[start*m.dim:end*m.dim]...)
		for _, l := range s.labels {
			s.live.Add(uint64(l))
		}
		shards = append(shards, s)
		if per == 0 {
			break
		}
	}
	return shards
}

// Concat merges shards back into one index, preserving shard order.
func Concat(shards ...*IDMap) (*IDMap, error) {
	if len(shards) == 0 {
		return nil, errors.New("flat: no shards")
	}
	out, err := New(shards[0].dim, shards[0].metric)
	if err != nil {
		return nil, err
	}
	for _, s := range shards {
		if s.dim != out.dim || s.metric != out.metric {
			return nil, &DimensionError{Expected: out.dim, Actual: s.dim}
		}
		for i, l := range s.labels {
			if out.live.Contains(uint64(l)) {
				return nil, fmt.Errorf("%w: %d", ErrDuplicateLabel, l)
			}
			out.labels = append(out.labels, l)
			out.data = append(out.data, s.row(i)...)
			out.live.Add(uint64(l))
		}
	}
	return out, nil
}
