package coord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/abelbrown/dealfeed/internal/fetch"
	"github.com/abelbrown/dealfeed/internal/filter"
	"github.com/abelbrown/dealfeed/internal/model"
	"github.com/abelbrown/dealfeed/internal/ranking"
	"github.com/abelbrown/dealfeed/internal/rotation"
	"github.com/abelbrown/dealfeed/internal/sampling"
)

// buildStats are the counters reported in Status and the build log.
type buildStats struct {
	collected  int
	eligible   int
	selected   int
	relaxation filter.Relaxation
	poolCached bool
}

// build runs one full pipeline. Nothing is committed or persisted unless the
// build reaches the committing stage with at least one item. A panic before
// commit fails the build; after commit it is logged by afterCommit.
func (c *Coordinator) build(ctx context.Context, collectors []fetch.Collector, usePool bool) (feed model.Feed, err error) {
	buildID := uuid.NewString()
	builtAt := c.now()
	var stats buildStats

	defer func() {
		if r := recover(); r != nil {
			feed = c.feeds.Current()
			err = fmt.Errorf("build %s panicked: %v", buildID, r)
		}
		c.finish(buildID, builtAt, stats, err)
	}()

	c.log.Info("build started", "build", buildID, "collectors", len(collectors), "strategy", c.settings.Strategy)

	history := c.loadRotation(ctx, buildID)

	var selected []model.Offer
	if c.settings.Strategy == StrategyWindow {
		selected = c.selectWindow(ctx, collectors, usePool, history, builtAt, buildID, &stats)
	} else {
		selected = c.selectScored(ctx, collectors, history, builtAt, buildID, &stats)
	}
	stats.selected = len(selected)

	if ctx.Err() != nil {
		return c.feeds.Current(), errors.Join(ErrBuildCancelled, ctx.Err())
	}

	if len(selected) == 0 {
		c.log.Warn("empty pool, keeping previous feed", "build", buildID, "collected", stats.collected)
		return c.feeds.Current(), ErrEmptyPool
	}

	c.setStage(StageCommitting, buildID)
	feed = model.Feed{BuiltAt: builtAt, Items: selected}
	c.feeds.Commit(feed)

	c.afterCommit(ctx, buildID, feed, history)

	c.log.Info("build committed", "build", buildID, "items", len(selected),
		"eligible", stats.eligible, "relaxation", stats.relaxation)
	return feed, nil
}

// afterCommit stamps and persists rotation memory, then publishes. The feed is
// already committed, so failures and panics here are only logged.
func (c *Coordinator) afterCommit(ctx context.Context, buildID string, feed model.Feed, history rotation.Map) {
	ctx = context.WithoutCancel(ctx)

	c.guard(buildID, "rotation", func() {
		keys := make([]string, len(feed.Items))
		for i, o := range feed.Items {
			keys[i] = o.IdentityKey
		}
		history.Stamp(keys, feed.BuiltAt)
		if n := history.Prune(feed.BuiltAt, c.settings.RotationTTL); n > 0 {
			c.log.Debug("pruned rotation entries", "build", buildID, "removed", n)
		}
		if err := c.rotation.Persist(ctx, history); err != nil {
			c.log.Error("rotation persist failed", "build", buildID, "error", err)
		}
	})

	if c.publisher != nil {
		c.guard(buildID, "publish", func() {
			if err := c.publisher.Publish(ctx, feed); err != nil {
				c.log.Error("publish failed", "build", buildID, "error", err)
			}
		})
	}
}

func (c *Coordinator) guard(buildID, step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("post-commit step panicked", "build", buildID, "step", step, "panic", r)
		}
	}()
	fn()
}

// loadRotation loads rotation memory once per build. A failed load degrades
// to an empty map.
func (c *Coordinator) loadRotation(ctx context.Context, buildID string) rotation.Map {
	m, err := c.rotation.LoadAll(ctx)
	if err != nil {
		c.log.Warn("rotation load failed, continuing without history", "build", buildID, "error", err)
		return rotation.Map{}
	}
	if m == nil {
		m = rotation.Map{}
	}
	return m
}

// eligible runs normalize, dedup and the eligibility policies.
func (c *Coordinator) eligible(raws []model.RawOffer, builtAt time.Time, buildID string, stats *buildStats) []model.Offer {
	c.setStage(StageNormalizing, buildID)
	offers := model.NormalizeAll(raws, builtAt)
	offers = filter.Dedup(offers)

	c.setStage(StageFiltering, buildID)
	res := filter.Eligibility{
		Keywords:    c.settings.Keywords,
		MinDiscount: c.settings.MinDiscount,
	}.Apply(offers)

	stats.eligible = len(res.Offers)
	stats.relaxation = res.Relaxation
	c.log.Info("eligibility", "build", buildID, "normalized", len(offers),
		"eligible", len(res.Offers), "keywordRejected", res.KeywordRejected, "relaxation", res.Relaxation)
	return res.Offers
}

func (c *Coordinator) selectScored(ctx context.Context, collectors []fetch.Collector, history rotation.Map, builtAt time.Time, buildID string, stats *buildStats) []model.Offer {
	c.setStage(StageCollecting, buildID)
	raws := c.collect(ctx, collectors, buildID)
	stats.collected = len(raws)
	if ctx.Err() != nil {
		return nil
	}

	offers := c.eligible(raws, builtAt, buildID, stats)

	c.setStage(StageScoring, buildID)
	scorer := ranking.Scorer(c.settings.Weights)
	rctx := ranking.NewContext(builtAt, history, c.settings.Cooldown)
	scored := ranking.Score(offers, scorer, rctx)

	c.setStage(StageDiversifying, buildID)
	picked := sampling.Diversify(scored, c.settings.FeedSize, c.settings.Caps)
	if c.log.GetLevel() <= log.DebugLevel {
		for i := range picked {
			o := picked[i].Offer
			c.log.Debug("selected", "build", buildID, "key", o.IdentityKey,
				"score", picked[i].Score, "components", scorer.Breakdown(&o, rctx))
		}
	}
	return plain(picked)
}

func (c *Coordinator) selectWindow(ctx context.Context, collectors []fetch.Collector, usePool bool, history rotation.Map, builtAt time.Time, buildID string, stats *buildStats) []model.Offer {
	key := c.settings.Region + ":" + c.settings.Locale

	var pool []model.Offer
	if usePool {
		pool, stats.poolCached = c.pool.Get(key)
	}
	if !stats.poolCached {
		c.setStage(StageCollecting, buildID)
		raws := c.collect(ctx, collectors, buildID)
		stats.collected = len(raws)
		if ctx.Err() != nil {
			return nil
		}
		pool = c.eligible(raws, builtAt, buildID, stats)
		sampling.SortByQuality(pool)
		if len(pool) > 0 {
			c.pool.Set(key, pool)
		}
	} else {
		stats.eligible = len(pool)
		age, _ := c.pool.Age(key)
		c.log.Debug("using cached pool", "build", buildID, "size", len(pool), "age", age)
	}

	c.setStage(StageWindowing, buildID)
	// Cooldown is judged at the start of the seed's day and ignores today's
	// stamps, so every build on the same day cuts the same window.
	dayStart := sampling.DayStart(builtAt, c.settings.Location)
	ordered := sampling.DeferCooled(pool, history.Before(dayStart), dayStart, c.settings.Cooldown)
	seed := sampling.DaySeed(c.settings.Region, c.settings.Locale, builtAt, c.settings.Location)
	sel := sampling.Window(ordered, seed, c.settings.FeedSize, c.settings.Pinned)
	c.log.Debug("window", "build", buildID, "seed", seed, "index", sel.Index, "count", sel.Count)

	// Window order is the ranking; caps still apply.
	c.setStage(StageDiversifying, buildID)
	ranked := make([]model.ScoredOffer, len(sel.Items))
	for i, o := range sel.Items {
		pct, _ := o.EffectiveDiscount()
		ranked[i] = model.ScoredOffer{Offer: o, Score: float64(len(sel.Items) - i), Discount: pct}
	}
	return plain(sampling.Diversify(ranked, c.settings.FeedSize, c.settings.Caps))
}

func (c *Coordinator) finish(buildID string, builtAt time.Time, stats buildStats, err error) {
	outcome := "committed"
	switch {
	case errors.Is(err, ErrEmptyPool):
		outcome = "empty"
	case errors.Is(err, ErrBuildCancelled):
		outcome = "cancelled"
	case err != nil:
		outcome = "failed"
	}

	errText := ""
	if err != nil {
		errText = err.Error()
	}
	c.history.push(BuildRecord{
		ID:         buildID,
		StartedAt:  builtAt,
		Duration:   c.now().Sub(builtAt),
		Outcome:    outcome,
		Error:      errText,
		Relaxation: stats.relaxation.String(),
		Collected:  stats.collected,
		Eligible:   stats.eligible,
		Selected:   stats.selected,
		PoolCached: stats.poolCached,
	})

	c.updateStatus(func(s *Status) {
		s.Stage = StageIdle
		s.LastBuildID = buildID
		s.LastBuildAt = builtAt
		s.LastOutcome = outcome
		s.LastError = errText
		s.Relaxation = stats.relaxation.String()
		s.Collected = stats.collected
		s.Eligible = stats.eligible
		s.Selected = stats.selected
	})
	if outcome == "failed" {
		c.log.Error("build failed", "build", buildID, "error", err)
	}
}

// plain strips scores before exposure.
func plain(scored []model.ScoredOffer) []model.Offer {
	out := make([]model.Offer, len(scored))
	for i, s := range scored {
		out[i] = s.Offer
	}
	return out
}
