package flat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cytomine/cbir/distance"
)

func newFourD(t *testing.T) *IDMap {
	t.Helper()
	m, err := New(4, distance.MetricL2)
	require.NoError(t, err)
	require.NoError(t, m.AddWithIDs([][]float32{
		{0.1, 0.2, 0.3, 0.4},
		{0.9, 0.8, 0.7, 0.6},
		{0.5, 0.5, 0.5, 0.5},
	}, []int64{0, 1, 2}))
	return m
}

func TestNew_InvalidDimension(t *testing.T) {
	_, err := New(0, distance.MetricL2)
	assert.Error(t, err)
}

func TestSearch_PadsWithSentinel(t *testing.T) {
	m := newFourD(t)

	dists, labels, err := m.Search([]float32{0.1, 0.2, 0.3, 0.4}, 5)
	require.NoError(t, err)
	require.Len(t, labels, 5)
	assert.Equal(t, []int64{0, 2, 1, Sentinel, Sentinel}, labels)
	assert.InDelta(t, 0, dists[0], 1e-6)
	assert.True(t, math.IsInf(float64(dists[4]), 1))
}

func TestSearch_Errors(t *testing.T) {
	m := newFourD(t)

	_, _, err := m.Search([]float32{1, 2}, 1)
	var dm *DimensionError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 4, dm.Expected)
	assert.Equal(t, 2, dm.Actual)

	_, _, err = m.Search([]float32{1, 2, 3, 4}, 0)
	assert.Error(t, err)
}

func TestAddWithIDs_AllOrNothing(t *testing.T) {
	m := newFourD(t)

	err := m.AddWithIDs([][]float32{{1, 1, 1, 1}, {1, 1, 1}}, []int64{3, 4})
	var dm *DimensionError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 3, m.Len())
	assert.False(t, m.Contains(3))

	err = m.AddWithIDs([][]float32{{1, 1, 1, 1}, {2, 2, 2, 2}}, []int64{7, 7})
	assert.ErrorIs(t, err, ErrDuplicateLabel)

	err = m.AddWithIDs([][]float32{{1, 1, 1, 1}}, []int64{-1})
	assert.ErrorIs(t, err, ErrNegativeLabel)

	err = m.AddWithIDs([][]float32{{1, 1, 1, 1}}, nil)
	assert.ErrorIs(t, err, ErrCountMismatch)
	assert.Equal(t, 3, m.Len())
}

func TestAddWithIDs_ReplacesStoredLabel(t *testing.T) {
	m := newFourD(t)

	assert.Equal(t, 1, m.NewRows([]int64{1, 3}))
	require.NoError(t, m.AddWithIDs([][]float32{{0, 0, 0, 0}, {1, 1, 1, 1}}, []int64{1, 3}))
	assert.Equal(t, 4, m.Len())
	assert.Equal(t, []int64{0, 1, 2, 3}, m.Labels())

	v, ok := m.Vector(1)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 0, 0, 0}, v)

	_, labels, err := m.Search([]float32{0, 0, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, labels)

	err = m.AddWithIDs([][]float32{{1, 1, 1, 1}, {2, 2, 2, 2}}, []int64{2, 2})
	assert.ErrorIs(t, err, ErrDuplicateLabel)
	v, _ = m.Vector(2)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, v)
}

func TestRemoveIDs_SingleLabel(t *testing.T) {
	m := newFourD(t)
	require.NoError(t, m.AddWithIDs([][]float32{{1, 1, 1, 1}}, []int64{math.MaxInt64}))

	assert.Equal(t, 1, m.RemoveIDs(LabelSelector(math.MaxInt64)))
	assert.False(t, m.Contains(math.MaxInt64))
	assert.Equal(t, 0, m.RemoveIDs(LabelSelector(math.MaxInt64)))
	assert.Equal(t, 3, m.Len())
}

func TestRemoveIDs_Range(t *testing.T) {
	m := newFourD(t)

	assert.Equal(t, 1, m.RemoveIDs(RangeSelector{Min: 0, Max: 1}))
	assert.False(t, m.Contains(0))
	assert.Equal(t, 2, m.Len())

	_, labels, err := m.Search([]float32{0.1, 0.2, 0.3, 0.4}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1, Sentinel}, labels)

	v, ok := m.Vector(1)
	require.True(t, ok)
	assert.Equal(t, []float32{0.9, 0.8, 0.7, 0.6}, v)

	assert.Equal(t, 0, m.RemoveIDs(RangeSelector{Min: 40, Max: 41}))
}

func TestClone_Independent(t *testing.T) {
	m := newFourD(t)
	c := m.Clone()
	c.RemoveIDs(RangeSelector{Min: 0, Max: 3})
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 3, m.Len())
	assert.True(t, m.Contains(2))
}

func TestPartitionConcat(t *testing.T) {
	m := newFourD(t)

	shards := m.Partition(2)
	require.Len(t, shards, 2)
	assert.Equal(t, 2, shards[0].Len())
	assert.Equal(t, 1, shards[1].Len())

	back, err := Concat(shards...)
	require.NoError(t, err)
	assert.Equal(t, m.Labels(), back.Labels())

	empty, err := New(4, distance.MetricL2)
	require.NoError(t, err)
	assert.Len(t, empty.Partition(8), 1)

	_, err = Concat(m, m)
	assert.ErrorIs(t, err, ErrDuplicateLabel)
}

func TestPayload_RoundTrip(t *testing.T) {
	m := newFourD(t)
	p := m.AppendPayload(nil)
	require.Len(t, p, PayloadSize(3, 4))

	back, err := DecodePayload(4, distance.MetricL2, 3, p)
	require.NoError(t, err)
	assert.Equal(t, m.Labels(), back.Labels())

	q := []float32{0.5, 0.5, 0.5, 0.4}
	d1, l1, err := m.Search(q, 3)
	require.NoError(t, err)
	d2, l2, err := back.Search(q, 3)
	require.NoError(t, err)
	assert.Equal(t, l1, l2)
	assert.Equal(t, d1, d2)

	_, err = DecodePayload(4, distance.MetricL2, 4, p)
	assert.Error(t, err)
}
