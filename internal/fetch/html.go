package fetch

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/abelbrown/dealfeed/internal/logging"
	"github.com/abelbrown/dealfeed/internal/model"
)

// Selectors are CSS selectors for one storefront's listing markup. Item
// selects each product card; the rest are evaluated inside a card.
type Selectors struct {
	Item          string `json:"item"`
	Title         string `json:"title"`
	Link          string `json:"link"`
	Image         string `json:"image,omitempty"`
	Price         string `json:"price"`
	OriginalPrice string `json:"originalPrice,omitempty"`
	Discount      string `json:"discount,omitempty"`
	Category      string `json:"category,omitempty"`
	SKU           string `json:"sku,omitempty"`
	Availability  string `json:"availability,omitempty"`
}

// HTMLCollector scrapes listing pages with CSS selectors. A "{page}"
// placeholder in the URL walks pages 1..MaxPages; paging stops at the first
// page with no cards.
type HTMLCollector struct {
	name      string
	url       string
	store     string
	category  string
	maxPages  int
	selectors Selectors
	fetcher   *Fetcher
	now       func() time.Time
}

func NewHTMLCollector(name, url, store, category string, maxPages int, sel Selectors, f *Fetcher) *HTMLCollector {
	return &HTMLCollector{
		name:      name,
		url:       url,
		store:     store,
		category:  category,
		maxPages:  maxPages,
		selectors: sel,
		fetcher:   f,
		now:       time.Now,
	}
}

func (c *HTMLCollector) Name() string { return c.name }

func (c *HTMLCollector) FetchOffers(ctx context.Context, opts Options) ([]model.RawOffer, error) {
	var raws []model.RawOffer
	pages := pageURLs(c.url, c.maxPages)

	for i, pageURL := range pages {
		body, err := c.fetcher.Get(ctx, pageURL)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			// Later pages failing still leave a usable first page.
			logging.Debug("html page failed", "collector", c.name, "page", i+1, "error", err)
			break
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}

		found := c.extract(doc, pageURL)
		if len(found) == 0 {
			break
		}
		raws = append(raws, found...)
		if opts.Limit > 0 && len(raws) >= opts.Limit {
			break
		}
	}
	return limit(raws, opts), nil
}

func (c *HTMLCollector) extract(doc *goquery.Document, pageURL string) []model.RawOffer {
	now := c.now()
	var raws []model.RawOffer

	doc.Find(c.selectors.Item).Each(func(_ int, card *goquery.Selection) {
		price, ok := ParsePrice(text(card, c.selectors.Price))
		if !ok {
			return
		}
		r := model.RawOffer{
			Store:     c.store,
			Title:     text(card, c.selectors.Title),
			URL:       resolve(pageURL, attr(card, c.selectors.Link, "href")),
			Image:     resolve(pageURL, attr(card, c.selectors.Image, "src", "data-src")),
			Category:  c.category,
			Price:     price,
			SKU:       skuOf(card, c.selectors.SKU),
			FetchedAt: now,
		}
		if orig, ok := ParsePrice(text(card, c.selectors.OriginalPrice)); ok {
			r.OriginalPrice = orig
		}
		if c.selectors.Discount != "" {
			_, _, r.DiscountPct = priceHints(text(card, c.selectors.Discount))
		}
		if cat := text(card, c.selectors.Category); cat != "" {
			r.Category = cat
		}
		if c.selectors.Availability != "" {
			r.Availability = model.ParseAvailability(text(card, c.selectors.Availability))
		}
		raws = append(raws, r)
	})
	return raws
}

// text returns the trimmed text of the first match, or the card itself when
// sel is ".".
func text(card *goquery.Selection, sel string) string {
	if sel == "" {
		return ""
	}
	if sel == "." {
		return strings.TrimSpace(card.Text())
	}
	return strings.TrimSpace(card.Find(sel).First().Text())
}

// attr returns the first non-empty attribute among names on the first match.
func attr(card *goquery.Selection, sel string, names ...string) string {
	if sel == "" {
		return ""
	}
	s := card
	if sel != "." {
		s = card.Find(sel).First()
	}
	for _, n := range names {
		if v, ok := s.Attr(n); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// skuOf reads a data-sku attribute if present, else the element text.
func skuOf(card *goquery.Selection, sel string) string {
	if v := attr(card, sel, "data-sku", "data-id", "content"); v != "" {
		return strings.TrimSpace(v)
	}
	return text(card, sel)
}
