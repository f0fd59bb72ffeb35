package filter

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/abelbrown/dealfeed/internal/model"
)

// Fold lowercases s and strips diacritics, so "Pokémon" matches "pokemon".
func Fold(s string) string {
	// Transformers carry state; build a fresh chain per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// KeywordPolicy rejects titles containing a blocked substring and, when an
// allow-list is set, requires at least one allowed substring. Keywords are
// folded once at construction.
type KeywordPolicy struct {
	allow []string
	block []string
}

// NewKeywordPolicy builds a policy. Blank keywords are ignored.
func NewKeywordPolicy(allow, block []string) *KeywordPolicy {
	return &KeywordPolicy{
		allow: foldAll(allow),
		block: foldAll(block),
	}
}

func foldAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if f := Fold(strings.TrimSpace(w)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Allows reports whether title passes the policy.
func (p *KeywordPolicy) Allows(title string) bool {
	folded := Fold(title)
	for _, b := range p.block {
		if strings.Contains(folded, b) {
			return false
		}
	}
	if len(p.allow) == 0 {
		return true
	}
	for _, a := range p.allow {
		if strings.Contains(folded, a) {
			return true
		}
	}
	return false
}

// ByKeywords keeps offers whose title the policy allows. A nil policy keeps
// everything.
func ByKeywords(offers []model.Offer, p *KeywordPolicy) []model.Offer {
	if p == nil {
		out := make([]model.Offer, len(offers))
		copy(out, offers)
		return out
	}
	result := make([]model.Offer, 0, len(offers))
	for _, o := range offers {
		if p.Allows(o.Title) {
			result = append(result, o)
		}
	}
	return result
}
