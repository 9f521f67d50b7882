// Package resource bounds the memory, search concurrency and persistence IO
// shared by all collections of a process.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultMaxConcurrentSearches applies when Config leaves the bound at 0.
const DefaultMaxConcurrentSearches = 4

// Config holds the process-wide limits. Zero means unlimited except for
// MaxConcurrentSearches.
type Config struct {
	// MemoryLimitBytes caps the memory of accelerator-resident indexes.
	// Usage is tracked even without a cap.
	MemoryLimitBytes int64

	// MaxConcurrentSearches caps how many collections a multi-collection
	// search scans at once.
	MaxConcurrentSearches int64

	// IOLimitBytesPerSec caps the write throughput of index snapshots.
	IOLimitBytesPerSec int64
}

// Controller hands out the limited resources. Its methods accept a nil
// receiver, which imposes no limits and tracks nothing.
type Controller struct {
	cfg      Config
	memCap   *semaphore.Weighted
	memUsed  atomic.Int64
	searches *semaphore.Weighted
	io       *rate.Limiter
}

func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentSearches <= 0 {
		cfg.MaxConcurrentSearches = DefaultMaxConcurrentSearches
	}
	c := &Controller{cfg: cfg, searches: semaphore.NewWeighted(cfg.MaxConcurrentSearches)}
	if cfg.MemoryLimitBytes > 0 {
		c.memCap = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.io = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// Config returns the limits in effect, defaults applied.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// AcquireMemory blocks until n bytes fit under the memory cap.
func (c *Controller) AcquireMemory(ctx context.Context, n int64) error {
	if c == nil || n <= 0 {
		return nil
	}
	if c.memCap != nil {
		if err := c.memCap.Acquire(ctx, n); err != nil {
			return err
		}
	}
	c.memUsed.Add(n)
	return nil
}

// ReleaseMemory returns n bytes taken by AcquireMemory.
func (c *Controller) ReleaseMemory(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.memUsed.Add(-n)
	if c.memCap != nil {
		c.memCap.Release(n)
	}
}

// MemoryUsage is the number of bytes currently held.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireSearch takes one search slot, waiting while all are busy.
func (c *Controller) AcquireSearch(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.searches.Acquire(ctx, 1)
}

// ReleaseSearch frees a slot taken by AcquireSearch.
func (c *Controller) ReleaseSearch() {
	if c != nil {
		c.searches.Release(1)
	}
}

// AcquireIO waits until n bytes may be written. Requests above the burst
// size are admitted in burst-sized steps.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.io == nil {
		return nil
	}
	for burst := c.io.Burst(); n > 0; {
		step := min(n, burst)
		if err := c.io.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
