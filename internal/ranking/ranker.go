// Package ranking scores eligible offers.
//
// A score is a weighted sum of small component rankers: discount,
// availability, recency and an anti-repetition cooldown penalty read from
// rotation memory.
package ranking

import (
	"sort"
	"time"

	"github.com/abelbrown/dealfeed/internal/model"
	"github.com/abelbrown/dealfeed/internal/rotation"
)

// Ranker produces one scoring signal for an offer.
type Ranker interface {
	Name() string
	Score(o *model.Offer, ctx *Context) float64
}

// Context is the per-build scoring state.
type Context struct {
	Now      time.Time
	History  rotation.Map
	Cooldown time.Duration
}

// NewContext returns a scoring context. A nil history is treated as empty and
// a non-positive cooldown falls back to DefaultCooldown.
func NewContext(now time.Time, history rotation.Map, cooldown time.Duration) *Context {
	if history == nil {
		history = rotation.Map{}
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Context{Now: now, History: history, Cooldown: cooldown}
}

// DefaultCooldown is how long an offer is penalised after being shown.
const DefaultCooldown = 72 * time.Hour

// Weights are the multipliers applied to each component ranker.
type Weights struct {
	Discount        float64
	Availability    float64
	Recency         float64
	CooldownPenalty float64
}

// DefaultWeights returns 0.7 per discount point, +5 in stock, +5 recency,
// -30 in cooldown.
func DefaultWeights() Weights {
	return Weights{
		Discount:        0.7,
		Availability:    5,
		Recency:         5,
		CooldownPenalty: 30,
	}
}

// Scorer combines the default rankers with the given weights.
func Scorer(w Weights) *CompositeRanker {
	return NewComposite("deal").
		Add(DiscountRanker{}, w.Discount).
		Add(AvailabilityRanker{}, w.Availability).
		Add(RecencyRanker{}, w.Recency).
		Add(CooldownRanker{}, w.CooldownPenalty)
}

// Score scores every offer and returns them sorted best-first. Ties break on
// discount, then title, then identity key, so the order is total.
func Score(offers []model.Offer, r Ranker, ctx *Context) []model.ScoredOffer {
	scored := make([]model.ScoredOffer, 0, len(offers))
	for i := range offers {
		o := offers[i]
		pct, _ := o.EffectiveDiscount()
		scored = append(scored, model.ScoredOffer{
			Offer:    o,
			Score:    r.Score(&o, ctx),
			Discount: pct,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return Less(scored[i], scored[j])
	})
	return scored
}

// Less orders scored offers best-first.
func Less(a, b model.ScoredOffer) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Discount != b.Discount {
		return a.Discount > b.Discount
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.IdentityKey < b.IdentityKey
}
