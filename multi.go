package cbir

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cytomine/cbir/extractor"
)

// Target is one collection of a multi-collection search paired with the
// extractor its vectors were built with.
type Target struct {
	Retrieval *Retrieval
	Extractor extractor.Extractor
}

// MultiSearch searches every collection with one shared extractor. See
// MultiSearchTargets.
func MultiSearch(ctx context.Context, ext extractor.Extractor, image []byte, k int, collections []*Retrieval, optFns ...Option) ([]Match, error) {
	targets := make([]Target, len(collections))
	for i, r := range collections {
		targets[i] = Target{Retrieval: r, Extractor: ext}
	}
	return MultiSearchTargets(ctx, image, k, targets, optFns...)
}

// MultiSearchTargets searches every target for its k nearest images and
// returns the k closest overall, ascending by distance. Equal distances keep
// target order.
//
// The query is extracted once per distinct model (same name and dimension),
// so collections built with different models can be searched together.
// Collections are searched concurrently, bounded by the resource controller's
// search slots when one is configured.
func MultiSearchTargets(ctx context.Context, image []byte, k int, targets []Target, optFns ...Option) (matches []Match, err error) {
	o := applyOptions(options{}, optFns)
	start := time.Now()
	defer func() {
		o.metrics.RecordMultiSearch(len(targets), k, time.Since(start), err)
		o.logger.LogMultiSearch(ctx, len(targets), k, len(matches), err)
	}()

	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, k)
	}
	queries, err := extractQueries(ctx, image, targets)
	if err != nil {
		return nil, err
	}

	partial := make([][]Match, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		g.Go(func() error {
			if err := o.resources.AcquireSearch(gctx); err != nil {
				return err
			}
			defer o.resources.ReleaseSearch()

			r := t.Retrieval
			res, err := r.SearchVector(gctx, queries[i], k)
			if err != nil {
				return fmt.Errorf("search %s/%s: %w", r.ix.Storage(), r.ix.Index(), err)
			}
			partial[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeMatches(partial, k), nil
}

type modelKey struct {
	name string
	dim  int
}

// extractQueries returns the query vector of each target.
func extractQueries(ctx context.Context, image []byte, targets []Target) ([][]float32, error) {
	cache := make(map[modelKey][]float32)
	queries := make([][]float32, len(targets))
	for i, t := range targets {
		if t.Retrieval == nil || t.Extractor == nil {
			return nil, fmt.Errorf("%w: target %d needs a collection and an extractor", ErrInvalidArgument, i)
		}
		key := modelKey{t.Extractor.Name(), t.Extractor.Dimension()}
		q, ok := cache[key]
		if !ok {
			var err error
			if q, err = t.Extractor.Extract(ctx, image); err != nil {
				return nil, fmt.Errorf("extract with %s: %w", key.name, err)
			}
			cache[key] = q
		}
		queries[i] = q
	}
	return queries, nil
}

// mergeMatches concatenates per-collection results and keeps the k closest.
func mergeMatches(partial [][]Match, k int) []Match {
	var all []Match
	for _, p := range partial {
		all = append(all, p...)
	}
	slices.SortStableFunc(all, func(a, b Match) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	if len(all) > k {
		all = all[:k]
	}
	if all == nil {
		all = []Match{}
	}
	return all
}
