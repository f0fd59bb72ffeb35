// Package model defines the offer and feed types shared by every stage of the
// curation pipeline, and the Normalizer that turns collector output into them.
//
// Prices are integers in minor currency units (cents). A zero PriceBase means
// "no original price"; DiscountPct is a pointer because 0% is a real value.
package model

import (
	"strings"
	"time"
)

// Availability is the stock state reported by a store.
type Availability string

const (
	InStock             Availability = "in_stock"
	OutOfStock          Availability = "out_of_stock"
	Preorder            Availability = "preorder"
	AvailabilityUnknown Availability = "unknown"
)

// ParseAvailability maps loose vendor strings onto the known states.
func ParseAvailability(s string) Availability {
	s = strings.ToLower(strings.TrimSpace(s))
	// schema.org values: "https://schema.org/InStock"
	if i := strings.LastIndex(s, "schema.org/"); i >= 0 {
		s = s[i+len("schema.org/"):]
	}
	switch Availability(s) {
	case InStock, OutOfStock, Preorder:
		return Availability(s)
	}
	switch s {
	case "instock", "in stock", "available", "true", "yes", "em estoque", "disponível", "disponivel":
		return InStock
	case "outofstock", "out of stock", "sold out", "soldout", "unavailable", "false", "no", "esgotado", "indisponível", "indisponivel":
		return OutOfStock
	case "pre-order", "pre_order", "pré-venda", "pre-venda":
		return Preorder
	}
	return AvailabilityUnknown
}

// RawOffer is what a collector produces for one upstream listing. Every
// source-specific shape (RSS item, scraped HTML card, vendor JSON) is converted
// into this struct inside its collector.
type RawOffer struct {
	Store         string
	Title         string
	URL           string
	Image         string
	Category      string
	Price         int64 // minor units
	OriginalPrice int64 // minor units, 0 when unknown
	DiscountPct   *int
	Availability  Availability
	SKU           string
	EAN           string
	FetchedAt     time.Time
}

// Offer is the canonical, engine-owned listing.
type Offer struct {
	IdentityKey  string       `json:"identityKey"`
	Store        string       `json:"store"`
	Title        string       `json:"title"`
	URL          string       `json:"url"`
	Image        string       `json:"image,omitempty"`
	Category     string       `json:"category,omitempty"`
	PriceFinal   int64        `json:"priceFinal"`
	PriceBase    int64        `json:"priceBase,omitempty"`
	DiscountPct  *int         `json:"discountPct,omitempty"`
	Availability Availability `json:"availability,omitempty"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// EffectiveDiscount returns the stored discount, or one derived from the
// prices when absent. ok is false when neither is available.
func (o Offer) EffectiveDiscount() (pct int, ok bool) {
	if o.DiscountPct != nil {
		return *o.DiscountPct, true
	}
	return DeriveDiscount(o.PriceBase, o.PriceFinal)
}

// ScoredOffer is an Offer with its desirability score for one build.
type ScoredOffer struct {
	Offer
	Score    float64
	Discount int // discount actually used for scoring
}

// Feed is a committed, immutable selection of offers.
type Feed struct {
	BuiltAt time.Time `json:"builtAt"`
	Items   []Offer   `json:"items"`
}

// Empty reports whether the feed has no items.
func (f Feed) Empty() bool { return len(f.Items) == 0 }

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
