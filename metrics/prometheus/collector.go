// Package prometheus exports retrieval metrics to Prometheus.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cytomine/cbir"
)

// Collector implements cbir.MetricsCollector.
type Collector struct {
	opLatency     *prometheus.HistogramVec
	ops           *prometheus.CounterVec
	indexedImages prometheus.Counter
	searchResults prometheus.Histogram
}

var _ cbir.MetricsCollector = (*Collector)(nil)

// New creates a collector and registers it with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cbir_operation_latency_seconds",
			Help:    "Latency of retrieval operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cbir_operations_total",
			Help: "Retrieval operations by type and outcome",
		}, []string{"op", "status"}),
		indexedImages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cbir_indexed_images_total",
			Help: "Images successfully indexed",
		}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cbir_search_results",
			Help:    "Matches returned per search",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	for _, col := range []prometheus.Collector{c.opLatency, c.ops, c.indexedImages, c.searchResults} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.opLatency.WithLabelValues(op, s).Observe(d.Seconds())
	c.ops.WithLabelValues(op, s).Inc()
}

// RecordIndex implements cbir.MetricsCollector.
func (c *Collector) RecordIndex(count int, d time.Duration, err error) {
	c.observe("index", d, err)
	if err == nil {
		c.indexedImages.Add(float64(count))
	}
}

// RecordRemove implements cbir.MetricsCollector.
func (c *Collector) RecordRemove(d time.Duration, err error) {
	c.observe("remove", d, err)
}

// RecordSearch implements cbir.MetricsCollector.
func (c *Collector) RecordSearch(_, results int, d time.Duration, err error) {
	c.observe("search", d, err)
	if err == nil {
		c.searchResults.Observe(float64(results))
	}
}

// RecordMultiSearch implements cbir.MetricsCollector.
func (c *Collector) RecordMultiSearch(_, _ int, d time.Duration, err error) {
	c.observe("multi_search", d, err)
}
