// Package filter provides pure filter functions for offers.
// All functions are simple: []Offer in, []Offer out. No side effects.
package filter

import (
	"sort"

	"github.com/abelbrown/dealfeed/internal/model"
)

// Dedup collapses offers sharing an identity key, keeping the lowest final
// price. On a price tie the offer seen later wins, since later collectors are
// treated as fresher. Output order follows the first appearance of each key.
func Dedup(offers []model.Offer) []model.Offer {
	if len(offers) == 0 {
		return []model.Offer{}
	}

	index := make(map[string]int, len(offers))
	result := make([]model.Offer, 0, len(offers))

	for _, o := range offers {
		i, seen := index[o.IdentityKey]
		if !seen {
			index[o.IdentityKey] = len(result)
			result = append(result, o)
			continue
		}
		if o.PriceFinal <= result[i].PriceFinal {
			result[i] = o
		}
	}

	return result
}

// Relaxation records which step of the minimum-discount ladder produced the
// eligible set.
type Relaxation int

const (
	// RelaxNone means the strict threshold was applied.
	RelaxNone Relaxation = iota
	// RelaxAnyDiscount keeps every offer with a computable discount.
	RelaxAnyDiscount
	// RelaxAll keeps every offer as-is.
	RelaxAll
)

func (r Relaxation) String() string {
	switch r {
	case RelaxNone:
		return "strict"
	case RelaxAnyDiscount:
		return "any_discount"
	case RelaxAll:
		return "all"
	default:
		return "unknown"
	}
}

// ByMinDiscount keeps offers whose effective discount is at least min.
//
// When nothing passes it relaxes instead of returning an empty set: first to
// every offer with a computable discount (sorted by discount, highest first),
// then to every offer unchanged. An empty input yields an empty result.
func ByMinDiscount(offers []model.Offer, min int) ([]model.Offer, Relaxation) {
	if len(offers) == 0 {
		return []model.Offer{}, RelaxNone
	}

	strict := make([]model.Offer, 0, len(offers))
	for _, o := range offers {
		if pct, ok := o.EffectiveDiscount(); ok && pct >= min {
			strict = append(strict, o)
		}
	}
	if len(strict) > 0 {
		return strict, RelaxNone
	}

	type withPct struct {
		offer model.Offer
		pct   int
	}
	discounted := make([]withPct, 0, len(offers))
	for _, o := range offers {
		if pct, ok := o.EffectiveDiscount(); ok {
			o.DiscountPct = model.IntPtr(pct)
			discounted = append(discounted, withPct{offer: o, pct: pct})
		}
	}
	if len(discounted) > 0 {
		sort.SliceStable(discounted, func(i, j int) bool {
			return discounted[i].pct > discounted[j].pct
		})
		out := make([]model.Offer, len(discounted))
		for i, d := range discounted {
			out[i] = d.offer
		}
		return out, RelaxAnyDiscount
	}

	out := make([]model.Offer, len(offers))
	copy(out, offers)
	return out, RelaxAll
}
