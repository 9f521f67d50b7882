package accel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cytomine/cbir/distance"
	"github.com/cytomine/cbir/internal/flat"
	"github.com/cytomine/cbir/resource"
	"github.com/cytomine/cbir/testutil"
)

func hostIndex(t *testing.T, n, dim int) (*flat.IDMap, [][]float32) {
	t.Helper()
	m, err := flat.New(dim, distance.MetricL2)
	require.NoError(t, err)
	vecs := testutil.NewRNG(42).UniformVectors(n, dim)
	require.NoError(t, m.AddWithIDs(vecs, testutil.Labels(0, n)))
	return m, vecs
}

func TestParallel_SearchMatchesHost(t *testing.T) {
	ctx := context.Background()
	host, _ := hostIndex(t, 500, 8)

	res, err := NewParallel(4, nil).Upload(ctx, host)
	require.NoError(t, err)
	defer res.Close()
	assert.Equal(t, 500, res.Len())

	for _, q := range testutil.NewRNG(1).UniformVectors(10, 8) {
		hd, hl, err := host.Search(q, 7)
		require.NoError(t, err)
		dd, dl, err := res.Search(ctx, q, 7)
		require.NoError(t, err)
		assert.Equal(t, hl, dl)
		assert.Equal(t, hd, dd)
	}
}

func TestParallel_PadsWithSentinel(t *testing.T) {
	ctx := context.Background()
	host, _ := hostIndex(t, 2, 4)

	res, err := NewParallel(8, nil).Upload(ctx, host)
	require.NoError(t, err)

	_, labels, err := res.Search(ctx, []float32{0, 0, 0, 0}, 4)
	require.NoError(t, err)
	assert.Equal(t, flat.Sentinel, labels[2])
	assert.Equal(t, flat.Sentinel, labels[3])

	_, _, err = res.Search(ctx, []float32{0, 0}, 1)
	var dm *flat.DimensionError
	assert.ErrorAs(t, err, &dm)
}

func TestParallel_AddDownload(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{})
	host, _ := hostIndex(t, 10, 4)

	res, err := NewParallel(3, rc).Upload(ctx, host)
	require.NoError(t, err)
	assert.Equal(t, host.SizeBytes(), rc.MemoryUsage())

	require.NoError(t, res.Add(ctx, [][]float32{{9, 9, 9, 9}}, []int64{10}))
	err = res.Add(ctx, [][]float32{{9, 9, 9, 9}, {8, 8, 8, 8}}, []int64{11, 11})
	assert.ErrorIs(t, err, flat.ErrDuplicateLabel)

	_, labels, err := res.Search(ctx, []float32{9, 9, 9, 9}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, labels)

	back, err := res.Download(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11, back.Len())
	assert.True(t, back.Contains(10))
	assert.False(t, host.Contains(10))

	require.NoError(t, res.Close())
	require.NoError(t, res.Close())
	assert.Zero(t, rc.MemoryUsage())

	_, _, err = res.Search(ctx, []float32{9, 9, 9, 9}, 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestParallel_MemoryLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	host, _ := hostIndex(t, 100, 16)

	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64})
	_, err := NewParallel(2, rc).Upload(ctx, host)
	assert.Error(t, err)
	assert.Zero(t, rc.MemoryUsage())
}

func TestParallel_EmptyUpload(t *testing.T) {
	ctx := context.Background()
	m, err := flat.New(4, distance.MetricL2)
	require.NoError(t, err)

	res, err := NewParallel(4, nil).Upload(ctx, m)
	require.NoError(t, err)

	_, labels, err := res.Search(ctx, []float32{1, 2, 3, 4}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{flat.Sentinel, flat.Sentinel}, labels)

	require.NoError(t, res.Add(ctx, [][]float32{{1, 2, 3, 4}}, []int64{0}))
	assert.Equal(t, 1, res.Len())
	assert.Contains(t, NewParallel(4, nil).Name(), "parallel")
}

func TestParallel_AddReplacesStoredLabel(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{})
	host, _ := hostIndex(t, 10, 4)

	res, err := NewParallel(3, rc).Upload(ctx, host)
	require.NoError(t, err)
	before := rc.MemoryUsage()

	require.NoError(t, res.Add(ctx, [][]float32{{7, 7, 7, 7}, {9, 9, 9, 9}}, []int64{8, 10}))
	assert.Equal(t, 11, res.Len())
	assert.Equal(t, before+host.RowBytes(), rc.MemoryUsage())

	_, labels, err := res.Search(ctx, []float32{7, 7, 7, 7}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{8, 10}, labels)

	back, err := res.Download(ctx)
	require.NoError(t, err)
	v, ok := back.Vector(8)
	require.True(t, ok)
	assert.Equal(t, []float32{7, 7, 7, 7}, v)
	require.NoError(t, res.Close())
}

func TestParallel_SearchCanceled(t *testing.T) {
	host, _ := hostIndex(t, 50, 4)
	res, err := NewParallel(4, nil).Upload(context.Background(), host)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = res.Search(ctx, []float32{0, 0, 0, 0}, 3)
	assert.ErrorIs(t, err, context.Canceled)
}
