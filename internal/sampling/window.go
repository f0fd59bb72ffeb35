package sampling

import (
	"sort"
	"time"

	"github.com/abelbrown/dealfeed/internal/model"
	"github.com/abelbrown/dealfeed/internal/rotation"
)

// DefaultPinned is how many top items keep their quality order in a window.
const DefaultPinned = 5

// Selection is one window cut from a pool.
type Selection struct {
	Items []model.Offer
	Index int // which window was picked
	Count int // how many windows the pool holds
}

// SortByQuality orders offers by discount descending, then title, then
// identity key, in place. The result is a total order.
func SortByQuality(offers []model.Offer) {
	sort.SliceStable(offers, func(i, j int) bool {
		di, _ := offers[i].EffectiveDiscount()
		dj, _ := offers[j].EffectiveDiscount()
		if di != dj {
			return di > dj
		}
		if offers[i].Title != offers[j].Title {
			return offers[i].Title < offers[j].Title
		}
		return offers[i].IdentityKey < offers[j].IdentityKey
	})
}

// DeferCooled returns the pool with offers still in cooldown moved to the
// tail. Relative order is kept within both groups.
func DeferCooled(pool []model.Offer, history rotation.Map, now time.Time, window time.Duration) []model.Offer {
	out := make([]model.Offer, 0, len(pool))
	var cooled []model.Offer
	for _, o := range pool {
		if history.InCooldown(o.IdentityKey, now, window) {
			cooled = append(cooled, o)
			continue
		}
		out = append(out, o)
	}
	return append(out, cooled...)
}

// Window picks the seed's window of size n from a quality-sorted pool.
//
// The pool is split into ceil(len/n) consecutive windows and window
// hash(seed) mod count is taken, wrapping to the front when the tail window is
// short. The first pinned items keep their order; the rest get a seeded
// Fisher-Yates shuffle.
//
// Items has exactly n entries whenever the pool holds more than n offers. A
// pool of n or fewer is returned whole, so Items may be shorter than n; it is
// never padded with repeats, because a feed must not list the same offer
// twice.
func Window(pool []model.Offer, seed string, n, pinned int) Selection {
	if n <= 0 || len(pool) == 0 {
		return Selection{Items: []model.Offer{}}
	}

	h := HashSeed(seed)
	sel := Selection{Count: 1}

	if len(pool) <= n {
		sel.Items = append([]model.Offer(nil), pool...)
	} else {
		sel.Count = (len(pool) + n - 1) / n
		sel.Index = int(h % uint32(sel.Count))
		start := sel.Index * n
		sel.Items = make([]model.Offer, n)
		for i := 0; i < n; i++ {
			sel.Items[i] = pool[(start+i)%len(pool)]
		}
	}

	shuffleTail(sel.Items, pinned, h)
	return sel
}

// shuffleTail shuffles items[pinned:] in place.
func shuffleTail(items []model.Offer, pinned int, seed uint32) {
	if pinned < 0 {
		pinned = 0
	}
	if pinned >= len(items) {
		return
	}
	rest := items[pinned:]
	r := newRNG(seed)
	for i := len(rest) - 1; i > 0; i-- {
		j := r.intn(i + 1)
		rest[i], rest[j] = rest[j], rest[i]
	}
}
