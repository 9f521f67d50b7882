package index

import (
	"log/slog"

	"github.com/cytomine/cbir/distance"
	"github.com/cytomine/cbir/internal/accel"
	"github.com/cytomine/cbir/persistence"
	"github.com/cytomine/cbir/resource"
)

// Options configures a VectorIndex.
type Options struct {
	// Dimension is the vector length. 0 adopts the dimension of the loaded blob.
	Dimension int

	// Metric is used when creating a new index. Loaded blobs keep their own metric.
	Metric distance.Metric

	// Compression applied to the payload on save.
	Compression persistence.CompressionType

	// Accelerated keeps the live index resident on Device.
	Accelerated bool

	// Device used in accelerated mode. Defaults to accel.NewParallel(0, Resources).
	Device accel.Device

	// Resources bounds device memory and persistence IO. May be nil.
	Resources *resource.Controller

	// Logger receives debug and error records. Defaults to discarding.
	Logger *slog.Logger
}

func applyOptions(optFns []func(*Options)) Options {
	opts := Options{Metric: distance.MetricL2}
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Accelerated && opts.Device == nil {
		opts.Device = accel.NewParallel(0, opts.Resources)
	}
	return opts
}
