package model

import (
	"math"
	"net/url"
	"strings"
	"time"
)

// discountTolerance is how far a vendor-supplied discount may drift from the
// one implied by the prices before the derived value replaces it.
const discountTolerance = 1

// DeriveDiscount computes round((1 - final/base) * 100) clamped to [0,100].
// ok is false unless base > final > 0.
func DeriveDiscount(base, final int64) (int, bool) {
	if final <= 0 || base <= final {
		return 0, false
	}
	pct := math.Round((1 - float64(final)/float64(base)) * 100)
	return clampPct(int(pct)), true
}

func clampPct(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// IdentityKey picks the most stable identifier available: EAN, then SKU,
// then URL.
func IdentityKey(r RawOffer) string {
	if ean := strings.TrimSpace(r.EAN); ean != "" {
		return ean
	}
	if sku := strings.TrimSpace(r.SKU); sku != "" {
		return sku
	}
	return strings.TrimSpace(r.URL)
}

// usableURL reports whether s is an absolute http(s) URL with a host.
func usableURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Normalize converts one RawOffer into an Offer stamped with the build time.
// ok is false when the listing has no usable URL or a non-positive price.
func Normalize(r RawOffer, builtAt time.Time) (Offer, bool) {
	link := strings.TrimSpace(r.URL)
	if !usableURL(link) || r.Price <= 0 {
		return Offer{}, false
	}

	o := Offer{
		IdentityKey:  IdentityKey(r),
		Store:        strings.TrimSpace(r.Store),
		Title:        strings.TrimSpace(r.Title),
		URL:          link,
		Image:        strings.TrimSpace(r.Image),
		Category:     strings.TrimSpace(r.Category),
		PriceFinal:   r.Price,
		Availability: r.Availability,
		UpdatedAt:    builtAt,
	}
	if o.Availability == "" {
		o.Availability = AvailabilityUnknown
	}

	// A base price that is not strictly above the final price is noise.
	if r.OriginalPrice > r.Price {
		o.PriceBase = r.OriginalPrice
	}

	derived, canDerive := DeriveDiscount(o.PriceBase, o.PriceFinal)
	switch {
	case r.DiscountPct != nil && canDerive:
		pct := clampPct(*r.DiscountPct)
		if abs(pct-derived) > discountTolerance {
			pct = derived
		}
		o.DiscountPct = IntPtr(pct)
	case r.DiscountPct != nil:
		o.DiscountPct = IntPtr(clampPct(*r.DiscountPct))
	case canDerive:
		o.DiscountPct = IntPtr(derived)
	}

	return o, true
}

// NormalizeAll normalizes raws in order, silently dropping rejects.
func NormalizeAll(raws []RawOffer, builtAt time.Time) []Offer {
	out := make([]Offer, 0, len(raws))
	for _, r := range raws {
		if o, ok := Normalize(r, builtAt); ok {
			out = append(out, o)
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
