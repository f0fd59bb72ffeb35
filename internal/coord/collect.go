package coord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/dealfeed/internal/fetch"
	"github.com/abelbrown/dealfeed/internal/model"
)

// collect runs every collector in parallel and returns what they produced.
// Each collector gets its own timeout; when the overall ceiling passes the
// build proceeds with whatever has arrived. Failed collectors contribute
// nothing and are logged.
func (c *Coordinator) collect(ctx context.Context, collectors []fetch.Collector, buildID string) []model.RawOffer {
	if len(collectors) == 0 {
		return nil
	}

	ceilingCtx, cancel := context.WithTimeout(ctx, c.settings.CollectCeiling)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make([][]model.RawOffer, len(collectors))
		closed  bool
	)

	done := make(chan struct{})
	go func() {
		defer close(done)

		limit := c.settings.MaxConcurrentCollectors
		if limit <= 0 {
			limit = -1 // unbounded
		}
		var g errgroup.Group
		g.SetLimit(limit)

		for i, col := range collectors {
			g.Go(func() error {
				// Early exit if the ceiling or the build was cancelled
				if ceilingCtx.Err() != nil {
					return nil
				}
				raws := c.collectOne(ceilingCtx, col, buildID)

				mu.Lock()
				if !closed {
					results[i] = raws
				}
				mu.Unlock()
				return nil // never fail the group - errors are per collector
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ceilingCtx.Done():
		if ctx.Err() == nil {
			c.log.Warn("collect ceiling reached, continuing with partial results",
				"build", buildID, "ceiling", c.settings.CollectCeiling)
		}
	}

	mu.Lock()
	closed = true
	var all []model.RawOffer
	for _, r := range results {
		all = append(all, r...)
	}
	mu.Unlock()
	return all
}

type collectResult struct {
	raws []model.RawOffer
	err  error
}

// collectOne calls one collector under its own timeout. A collector that
// ignores its context is abandoned when the timeout fires.
func (c *Coordinator) collectOne(ctx context.Context, col fetch.Collector, buildID string) []model.RawOffer {
	cctx, cancel := context.WithTimeout(ctx, c.settings.CollectorTimeout)
	defer cancel()

	start := time.Now()
	ch := make(chan collectResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- collectResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		raws, err := col.FetchOffers(cctx, fetch.Options{Limit: c.settings.CollectLimit})
		ch <- collectResult{raws: raws, err: err}
	}()

	var res collectResult
	select {
	case res = <-ch:
	case <-cctx.Done():
		res = collectResult{err: cctx.Err()}
	}

	if res.err != nil {
		err := &fetch.CollectorError{Collector: col.Name(), Err: res.err}
		c.log.Warn("collector failed", "build", buildID, "collector", col.Name(),
			"duration", time.Since(start).Round(time.Millisecond), "error", err)
		return nil
	}

	c.log.Info("collector done", "build", buildID, "collector", col.Name(),
		"offers", len(res.raws), "duration", time.Since(start).Round(time.Millisecond))
	return res.raws
}
