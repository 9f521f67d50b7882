package cbir

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives one call per retrieval operation.
// Implement it to export metrics; metrics/prometheus provides one for Prometheus.
type MetricsCollector interface {
	// RecordIndex is called after IndexImage or IndexImages.
	// count is the number of images in the call.
	RecordIndex(count int, duration time.Duration, err error)

	// RecordRemove is called after RemoveImage.
	RecordRemove(duration time.Duration, err error)

	// RecordSearch is called after Search. results is the number of matches returned.
	RecordSearch(k, results int, duration time.Duration, err error)

	// RecordMultiSearch is called after MultiSearch.
	RecordMultiSearch(collections, k int, duration time.Duration, err error)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIndex(int, time.Duration, error)            {}
func (NoopMetricsCollector) RecordRemove(time.Duration, error)                {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordMultiSearch(int, int, time.Duration, error) {}

// BasicMetricsCollector keeps in-memory counters.
type BasicMetricsCollector struct {
	IndexCount       atomic.Int64
	IndexImages      atomic.Int64
	IndexErrors      atomic.Int64
	IndexTotalNanos  atomic.Int64
	RemoveCount      atomic.Int64
	RemoveErrors     atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchResults    atomic.Int64
	SearchTotalNanos atomic.Int64
	MultiSearchCount atomic.Int64
	MultiSearchErrs  atomic.Int64
}

// RecordIndex implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndex(count int, duration time.Duration, err error) {
	b.IndexCount.Add(1)
	b.IndexTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.IndexErrors.Add(1)
		return
	}
	b.IndexImages.Add(int64(count))
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(_ time.Duration, err error) {
	b.RemoveCount.Add(1)
	if err != nil {
		b.RemoveErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_, results int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
		return
	}
	b.SearchResults.Add(int64(results))
}

// RecordMultiSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMultiSearch(_, _ int, _ time.Duration, err error) {
	b.MultiSearchCount.Add(1)
	if err != nil {
		b.MultiSearchErrs.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IndexCount:       b.IndexCount.Load(),
		IndexImages:      b.IndexImages.Load(),
		IndexErrors:      b.IndexErrors.Load(),
		IndexAvgNanos:    avg(b.IndexTotalNanos.Load(), b.IndexCount.Load()),
		RemoveCount:      b.RemoveCount.Load(),
		RemoveErrors:     b.RemoveErrors.Load(),
		SearchCount:      b.SearchCount.Load(),
		SearchErrors:     b.SearchErrors.Load(),
		SearchResults:    b.SearchResults.Load(),
		SearchAvgNanos:   avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		MultiSearchCount: b.MultiSearchCount.Load(),
		MultiSearchErrs:  b.MultiSearchErrs.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IndexCount       int64
	IndexImages      int64
	IndexErrors      int64
	IndexAvgNanos    int64
	RemoveCount      int64
	RemoveErrors     int64
	SearchCount      int64
	SearchErrors     int64
	SearchResults    int64
	SearchAvgNanos   int64
	MultiSearchCount int64
	MultiSearchErrs  int64
}
