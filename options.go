package cbir

import (
	"github.com/cytomine/cbir/distance"
	"github.com/cytomine/cbir/index"
	"github.com/cytomine/cbir/persistence"
	"github.com/cytomine/cbir/resource"
)

// DefaultIndex is the index name used when none is given.
const DefaultIndex = "index"

type options struct {
	logger       *Logger
	metrics      MetricsCollector
	dimension    int
	metric       distance.Metric
	accelerated  bool
	compression  persistence.CompressionType
	resources    *resource.Controller
	mutationLock bool
}

// Option configures a Retrieval, a Registry or MultiSearch.
type Option func(*options)

// WithLogger sets the logger. nil disables logging.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetrics sets the metrics collector. nil disables metrics.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithDimension sets the vector length of collections created by a Registry.
// Collections loaded from an existing blob must match it when it is non-zero.
func WithDimension(dim int) Option {
	return func(o *options) {
		o.dimension = dim
	}
}

// WithMetric sets the distance of collections created by a Registry.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithAccelerated keeps Registry indexes resident on the accelerated device.
func WithAccelerated(enabled bool) Option {
	return func(o *options) {
		o.accelerated = enabled
	}
}

// WithCompression sets the index blob compression used by a Registry.
func WithCompression(ct persistence.CompressionType) Option {
	return func(o *options) {
		o.compression = ct
	}
}

// WithResourceController bounds accelerated memory, persistence IO and the
// number of concurrent collection searches in MultiSearch.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithMutationLock serializes IndexImage and RemoveImage on a Retrieval.
func WithMutationLock(enabled bool) Option {
	return func(o *options) {
		o.mutationLock = enabled
	}
}

func applyOptions(base options, optFns []Option) options {
	o := base
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metrics == nil {
		o.metrics = NoopMetricsCollector{}
	}
	return o
}

func (o options) indexOptions() func(*index.Options) {
	return func(io *index.Options) {
		io.Dimension = o.dimension
		io.Metric = o.metric
		io.Compression = o.compression
		io.Accelerated = o.accelerated
		io.Resources = o.resources
		io.Logger = o.logger.Logger
	}
}
