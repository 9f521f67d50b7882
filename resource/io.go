package resource

import (
	"context"
	"io"
)

// Throttle returns a reader that charges every read against the controller's
// IO budget. Without a limit it returns r unchanged.
func Throttle(ctx context.Context, r io.Reader, c *Controller) io.Reader {
	if c == nil || c.io == nil {
		return r
	}
	return &throttledReader{ctx: ctx, r: r, c: c}
}

type throttledReader struct {
	ctx context.Context
	r   io.Reader
	c   *Controller
}

func (t *throttledReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.c.AcquireIO(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
