// Package coord builds and serves the deal feed.
//
// A build runs collect, normalize, filter, score or window, diversify and
// commit. At most one build is in flight per Coordinator; concurrent triggers
// share the in-flight result.
package coord

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/abelbrown/dealfeed/internal/cache"
	"github.com/abelbrown/dealfeed/internal/fetch"
	"github.com/abelbrown/dealfeed/internal/filter"
	"github.com/abelbrown/dealfeed/internal/logging"
	"github.com/abelbrown/dealfeed/internal/model"
	"github.com/abelbrown/dealfeed/internal/ranking"
	"github.com/abelbrown/dealfeed/internal/rotation"
	"github.com/abelbrown/dealfeed/internal/sampling"
)

var (
	// ErrEmptyPool means the build produced no items. The previous feed is
	// returned alongside it and stays authoritative.
	ErrEmptyPool = errors.New("build produced no eligible offers")

	// ErrBuildCancelled means the build was abandoned before commit.
	ErrBuildCancelled = errors.New("build cancelled")
)

// Strategy picks how the final selection is made.
type Strategy string

const (
	// StrategyScore scores every eligible offer and diversifies the best.
	StrategyScore Strategy = "score"
	// StrategyWindow takes a deterministic daily window of a cached pool.
	StrategyWindow Strategy = "window"
)

// Settings configures builds.
type Settings struct {
	FeedSize    int
	MinDiscount int
	Caps        sampling.Caps
	Weights     ranking.Weights
	Cooldown    time.Duration
	Keywords    *filter.KeywordPolicy // nil disables keyword filtering

	Strategy Strategy
	Region   string
	Locale   string
	Location *time.Location // calendar day for window seeds; nil is UTC
	Pinned   int
	PoolTTL  time.Duration

	Interval                time.Duration
	CollectorTimeout        time.Duration
	CollectCeiling          time.Duration
	MaxConcurrentCollectors int
	CollectLimit            int

	// RotationTTL prunes rotation entries older than this on persist. 0 keeps
	// everything.
	RotationTTL time.Duration
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		FeedSize:                12,
		MinDiscount:             20,
		Caps:                    sampling.DefaultCaps(),
		Weights:                 ranking.DefaultWeights(),
		Cooldown:                ranking.DefaultCooldown,
		Strategy:                StrategyScore,
		Region:                  "us",
		Locale:                  "en",
		Pinned:                  sampling.DefaultPinned,
		PoolTTL:                 6 * time.Hour,
		Interval:                25 * time.Minute,
		CollectorTimeout:        10 * time.Second,
		CollectCeiling:          45 * time.Second,
		MaxConcurrentCollectors: 5,
	}
}

// Publisher receives every committed feed.
type Publisher interface {
	Publish(ctx context.Context, feed model.Feed) error
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithClock injects the build clock.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithPublisher sets a hook that receives each committed feed.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// Coordinator owns the feed store, rotation memory and build scheduling.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	settings   Settings
	collectors []fetch.Collector // IMMUTABLE: set at construction
	rotation   rotation.Store
	publisher  Publisher
	feeds      FeedStore
	pool       *cache.TTL[[]model.Offer]
	group      singleflight.Group
	now        func() time.Time
	log        *log.Logger

	mu      sync.RWMutex
	status  Status
	history *history

	wg sync.WaitGroup
}

// New creates a Coordinator. A nil rotation store keeps rotation in memory.
func New(collectors []fetch.Collector, store rotation.Store, s Settings, opts ...Option) *Coordinator {
	cols := make([]fetch.Collector, len(collectors))
	copy(cols, collectors)
	if store == nil {
		store = rotation.NewMemoryStore(nil)
	}

	c := &Coordinator{
		settings:   s,
		collectors: cols,
		rotation:   store,
		history:    newHistory(DefaultHistorySize),
		now:        time.Now,
		log:        logging.WithPrefix("coord"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pool = cache.NewTTL[[]model.Offer](s.PoolTTL, c.now)
	c.status = Status{Stage: StageIdle, Strategy: string(s.Strategy)}
	return c
}

// Current returns the last committed feed without waiting on any build.
func (c *Coordinator) Current() model.Feed {
	return c.feeds.Current()
}

// Rebuild runs a build with the given collectors, bypassing the pool cache.
// A call made while a build is in flight waits for that build instead.
func (c *Coordinator) Rebuild(ctx context.Context, collectors []fetch.Collector) (model.Feed, error) {
	return c.run(ctx, collectors, false)
}

// Refresh rebuilds with the configured collectors.
func (c *Coordinator) Refresh(ctx context.Context) (model.Feed, error) {
	return c.Rebuild(ctx, c.collectors)
}

func (c *Coordinator) run(ctx context.Context, collectors []fetch.Collector, usePool bool) (model.Feed, error) {
	ch := c.group.DoChan("build", func() (any, error) {
		return c.build(ctx, collectors, usePool)
	})

	select {
	case res := <-ch:
		feed, _ := res.Val.(model.Feed)
		return feed, res.Err
	case <-ctx.Done():
		return c.feeds.Current(), errors.Join(ErrBuildCancelled, ctx.Err())
	}
}

// Start begins scheduled builds. Builds once immediately, then every
// Settings.Interval, until ctx is cancelled.
func (c *Coordinator) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.scheduled(ctx)

		ticker := time.NewTicker(c.settings.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.scheduled(ctx)
			}
		}
	}()
}

func (c *Coordinator) scheduled(ctx context.Context) {
	if _, err := c.run(ctx, c.collectors, true); err != nil && !errors.Is(err, ErrEmptyPool) && ctx.Err() == nil {
		c.log.Error("scheduled build failed", "error", err)
	}
}

// Wait blocks until the scheduler goroutine exits.
// Call after cancelling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Status is a snapshot of the coordinator for the status endpoint.
type Status struct {
	Stage       Stage     `json:"stage"`
	Strategy    string    `json:"strategy"`
	LastBuildID string    `json:"lastBuildId,omitempty"`
	LastBuildAt time.Time `json:"lastBuildAt,omitzero"`
	LastOutcome string    `json:"lastOutcome,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	Relaxation  string    `json:"relaxation,omitempty"`
	Collected   int       `json:"collected"`
	Eligible    int       `json:"eligible"`
	Selected    int       `json:"selected"`
	FeedBuiltAt time.Time `json:"feedBuiltAt,omitzero"`
	FeedItems   int       `json:"feedItems"`

	// Recent lists finished builds, newest first.
	Recent []BuildRecord `json:"recent"`
}

// Status returns the current snapshot.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	s := c.status
	c.mu.RUnlock()

	f := c.feeds.Current()
	s.FeedBuiltAt = f.BuiltAt
	s.FeedItems = len(f.Items)
	s.Recent = c.history.recent()
	return s
}

func (c *Coordinator) setStage(st Stage, buildID string) {
	c.mu.Lock()
	c.status.Stage = st
	c.mu.Unlock()
	c.log.Debug("stage", "build", buildID, "stage", st)
}

func (c *Coordinator) updateStatus(fn func(*Status)) {
	c.mu.Lock()
	fn(&c.status)
	c.mu.Unlock()
}
