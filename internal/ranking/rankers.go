package ranking

import "github.com/abelbrown/dealfeed/internal/model"

// DiscountRanker scores by effective discount percentage. Offers without any
// discount data score 0.
type DiscountRanker struct{}

func (DiscountRanker) Name() string { return "discount" }

func (DiscountRanker) Score(o *model.Offer, ctx *Context) float64 {
	pct, _ := o.EffectiveDiscount()
	return float64(pct)
}

// AvailabilityRanker is 1 for in-stock offers.
type AvailabilityRanker struct{}

func (AvailabilityRanker) Name() string { return "availability" }

func (AvailabilityRanker) Score(o *model.Offer, ctx *Context) float64 {
	if o.Availability == model.InStock {
		return 1
	}
	return 0
}

// RecencyRanker is a flat bonus: every offer in a build was just fetched.
type RecencyRanker struct{}

func (RecencyRanker) Name() string { return "recency" }

func (RecencyRanker) Score(o *model.Offer, ctx *Context) float64 { return 1 }

// CooldownRanker is -1 while the offer is inside its cooldown window.
type CooldownRanker struct{}

func (CooldownRanker) Name() string { return "cooldown" }

func (CooldownRanker) Score(o *model.Offer, ctx *Context) float64 {
	if ctx == nil || ctx.History == nil {
		return 0
	}
	if ctx.History.InCooldown(o.IdentityKey, ctx.Now, ctx.Cooldown) {
		return -1
	}
	return 0
}
