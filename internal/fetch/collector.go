// Package fetch provides offer collectors.
//
// A collector turns one upstream storefront (RSS feed, HTML listing page,
// vendor JSON API) into model.RawOffer values. Everything source-specific is
// handled inside the collector; the engine only ever sees RawOffer.
package fetch

import (
	"context"
	"fmt"

	"github.com/abelbrown/dealfeed/internal/filter"
	"github.com/abelbrown/dealfeed/internal/model"
)

// Options tunes a single FetchOffers call.
type Options struct {
	// Limit caps the number of offers returned. 0 means no cap.
	Limit int
}

// Collector fetches raw offers from one upstream source.
type Collector interface {
	Name() string
	FetchOffers(ctx context.Context, opts Options) ([]model.RawOffer, error)
}

// CollectorFunc adapts a plain function to Collector.
type CollectorFunc struct {
	ID string
	Fn func(ctx context.Context, opts Options) ([]model.RawOffer, error)
}

func (f CollectorFunc) Name() string { return f.ID }

func (f CollectorFunc) FetchOffers(ctx context.Context, opts Options) ([]model.RawOffer, error) {
	return f.Fn(ctx, opts)
}

// CollectorError reports a failed collector. It is logged at the fan-out
// boundary and never fails a build.
type CollectorError struct {
	Collector string
	Err       error
}

func (e *CollectorError) Error() string {
	return fmt.Sprintf("collector %s: %v", e.Collector, e.Err)
}

func (e *CollectorError) Unwrap() error { return e.Err }

// prefiltered drops raw offers whose titles the policy rejects before they
// reach the engine.
type prefiltered struct {
	Collector
	policy *filter.KeywordPolicy
}

// WithPrefilter wraps c so titles rejected by policy never leave the
// collector. A nil policy returns c unchanged.
func WithPrefilter(c Collector, policy *filter.KeywordPolicy) Collector {
	if policy == nil {
		return c
	}
	return prefiltered{Collector: c, policy: policy}
}

func (p prefiltered) FetchOffers(ctx context.Context, opts Options) ([]model.RawOffer, error) {
	raws, err := p.Collector.FetchOffers(ctx, opts)
	if err != nil {
		return nil, err
	}
	kept := raws[:0]
	for _, r := range raws {
		if p.policy.Allows(r.Title) {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func limit(raws []model.RawOffer, opts Options) []model.RawOffer {
	if opts.Limit > 0 && len(raws) > opts.Limit {
		return raws[:opts.Limit]
	}
	return raws
}
