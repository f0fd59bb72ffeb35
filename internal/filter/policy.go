package filter

import "github.com/abelbrown/dealfeed/internal/model"

// Eligibility composes the keyword policy (optional) with the
// minimum-discount ladder.
type Eligibility struct {
	Keywords    *KeywordPolicy // nil disables keyword filtering
	MinDiscount int
}

// Result is the outcome of one eligibility pass.
type Result struct {
	Offers          []model.Offer
	Relaxation      Relaxation
	KeywordRejected int
}

// Apply runs the keyword policy first and the discount ladder on what is
// left. The keyword policy is never relaxed.
func (e Eligibility) Apply(offers []model.Offer) Result {
	kept := ByKeywords(offers, e.Keywords)
	eligible, step := ByMinDiscount(kept, e.MinDiscount)
	return Result{
		Offers:          eligible,
		Relaxation:      step,
		KeywordRejected: len(offers) - len(kept),
	}
}
