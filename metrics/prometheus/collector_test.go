package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.RecordIndex(3, time.Millisecond, nil)
	c.RecordIndex(1, time.Millisecond, errors.New("duplicate"))
	c.RecordRemove(time.Millisecond, nil)
	c.RecordSearch(10, 4, time.Millisecond, nil)
	c.RecordMultiSearch(2, 10, time.Millisecond, nil)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.indexedImages))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("index", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("index", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("remove", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("multi_search", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.searchResults))
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}
