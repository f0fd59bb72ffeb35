// Package sampling selects the final feed from a scored or quality-sorted
// pool: a cap-constrained greedy diversifier and a deterministic daily
// windower.
package sampling

import (
	"math"
	"strings"

	"github.com/abelbrown/dealfeed/internal/model"
)

// Uncategorized is the cap bucket for offers without a category.
const Uncategorized = "uncategorized"

// Caps bounds how much of a feed one store or category may take, as a ratio
// of the target size.
type Caps struct {
	StoreRatio    float64
	CategoryRatio float64
}

// DefaultCaps returns 0.8 per store and 0.7 per category.
func DefaultCaps() Caps {
	return Caps{StoreRatio: 0.8, CategoryRatio: 0.7}
}

// Limit returns ceil(n*ratio), never less than 1 for positive n.
func Limit(n int, ratio float64) int {
	if n <= 0 {
		return 0
	}
	// Subtract a hair so 10*0.7 stays 7 despite float error.
	c := int(math.Ceil(float64(n)*ratio - 1e-9))
	if c < 1 {
		c = 1
	}
	return c
}

// CategoryBucket returns the category used for capping.
func CategoryBucket(category string) string {
	c := strings.TrimSpace(category)
	if c == "" {
		return Uncategorized
	}
	return c
}

// Diversify walks scored (best first) once, admitting an offer only while both
// its store and its category are below their caps, and stops at n.
func Diversify(scored []model.ScoredOffer, n int, caps Caps) []model.ScoredOffer {
	if n <= 0 || len(scored) == 0 {
		return []model.ScoredOffer{}
	}

	maxStore := Limit(n, caps.StoreRatio)
	maxCategory := Limit(n, caps.CategoryRatio)

	storeCount := make(map[string]int)
	categoryCount := make(map[string]int)
	out := make([]model.ScoredOffer, 0, min(n, len(scored)))

	for _, s := range scored {
		if len(out) >= n {
			break
		}
		cat := CategoryBucket(s.Category)
		if storeCount[s.Store] >= maxStore || categoryCount[cat] >= maxCategory {
			continue
		}
		storeCount[s.Store]++
		categoryCount[cat]++
		out = append(out, s)
	}
	return out
}
