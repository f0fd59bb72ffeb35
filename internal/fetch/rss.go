package fetch

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/abelbrown/dealfeed/internal/model"
)

// RSSCollector reads a deals feed (RSS or Atom). Prices come from the item
// title or description, e.g. "Game X - $9.99 (was $39.99)".
type RSSCollector struct {
	name     string
	url      string
	store    string
	category string
	fetcher  *Fetcher
	now      func() time.Time
}

// NewRSSCollector creates a collector for one feed URL.
func NewRSSCollector(name, url, store, category string, f *Fetcher) *RSSCollector {
	return &RSSCollector{
		name:     name,
		url:      url,
		store:    store,
		category: category,
		fetcher:  f,
		now:      time.Now,
	}
}

func (c *RSSCollector) Name() string { return c.name }

// FetchOffers retrieves the feed and converts every item that carries a price.
func (c *RSSCollector) FetchOffers(ctx context.Context, opts Options) ([]model.RawOffer, error) {
	body, err := c.fetcher.Get(ctx, c.url)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	now := c.now()
	raws := make([]model.RawOffer, 0, len(feed.Items))
	for _, item := range feed.Items {
		if r, ok := c.convert(item, now); ok {
			raws = append(raws, r)
		}
	}
	return limit(raws, opts), nil
}

func (c *RSSCollector) convert(item *gofeed.Item, fetchTime time.Time) (model.RawOffer, bool) {
	price, original, pct := priceHints(item.Title)
	if price == 0 {
		price, original, pct = priceHints(item.Title + " " + item.Description)
	}
	if price == 0 {
		return model.RawOffer{}, false
	}

	fetched := fetchTime
	if item.PublishedParsed != nil {
		fetched = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		fetched = *item.UpdatedParsed
	}

	category := c.category
	if len(item.Categories) > 0 && strings.TrimSpace(item.Categories[0]) != "" {
		category = strings.TrimSpace(item.Categories[0])
	}

	return model.RawOffer{
		Store:         c.store,
		Title:         cleanTitle(item.Title),
		URL:           item.Link,
		Image:         itemImage(item),
		Category:      category,
		Price:         price,
		OriginalPrice: original,
		DiscountPct:   pct,
		FetchedAt:     fetched,
	}, true
}

// itemImage prefers the item image, then the first image enclosure.
func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

// cleanTitle drops a trailing " - $9.99 (...)" price suffix.
func cleanTitle(title string) string {
	if loc := currencyAmount.FindStringIndex(title); loc != nil && loc[0] > 0 {
		head := strings.TrimRight(title[:loc[0]], " -–|:(")
		if head != "" {
			return head
		}
	}
	return strings.TrimSpace(title)
}
