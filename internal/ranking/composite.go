package ranking

import "github.com/abelbrown/dealfeed/internal/model"

// CompositeRanker adds up weighted component rankers.
type CompositeRanker struct {
	name    string
	rankers []Ranker
	weights []float64
}

// NewComposite creates an empty composite ranker.
func NewComposite(name string) *CompositeRanker {
	return &CompositeRanker{name: name}
}

// Add adds a ranker with a weight.
func (c *CompositeRanker) Add(r Ranker, weight float64) *CompositeRanker {
	c.rankers = append(c.rankers, r)
	c.weights = append(c.weights, weight)
	return c
}

func (c *CompositeRanker) Name() string { return c.name }

func (c *CompositeRanker) Score(o *model.Offer, ctx *Context) float64 {
	var sum float64
	for i, r := range c.rankers {
		sum += r.Score(o, ctx) * c.weights[i]
	}
	return sum
}

// Breakdown returns each component's weighted contribution, keyed by ranker
// name. The values add up to Score.
func (c *CompositeRanker) Breakdown(o *model.Offer, ctx *Context) map[string]float64 {
	out := make(map[string]float64, len(c.rankers))
	for i, r := range c.rankers {
		out[r.Name()] += r.Score(o, ctx) * c.weights[i]
	}
	return out
}
