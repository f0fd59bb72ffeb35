package fetch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/abelbrown/dealfeed/internal/logging"
	"github.com/abelbrown/dealfeed/internal/model"
)

// Field names accepted in a JSON mapping.
const (
	FieldTitle         = "title"
	FieldURL           = "url"
	FieldImage         = "image"
	FieldCategory      = "category"
	FieldPrice         = "price"
	FieldOriginalPrice = "originalPrice"
	FieldDiscount      = "discount"
	FieldAvailability  = "availability"
	FieldSKU           = "sku"
	FieldEAN           = "ean"
)

// JSONCollector maps a vendor JSON API onto raw offers with gjson paths.
// Root selects the array of products ("" when the document itself is the
// array); Fields maps field names to paths relative to each product.
type JSONCollector struct {
	name       string
	url        string
	store      string
	category   string
	root       string
	fields     map[string]string
	minorUnits bool
	maxPages   int
	fetcher    *Fetcher
	now        func() time.Time
}

// JSONMapping describes where each field lives in a vendor payload.
type JSONMapping struct {
	Root   string
	Fields map[string]string
	// MinorUnits is true when the API already reports prices in cents.
	MinorUnits bool
}

func NewJSONCollector(name, url, store, category string, maxPages int, m JSONMapping, f *Fetcher) *JSONCollector {
	return &JSONCollector{
		name:       name,
		url:        url,
		store:      store,
		category:   category,
		root:       m.Root,
		fields:     m.Fields,
		minorUnits: m.MinorUnits,
		maxPages:   maxPages,
		fetcher:    f,
		now:        time.Now,
	}
}

func (c *JSONCollector) Name() string { return c.name }

func (c *JSONCollector) FetchOffers(ctx context.Context, opts Options) ([]model.RawOffer, error) {
	var raws []model.RawOffer

	for i, pageURL := range pageURLs(c.url, c.maxPages) {
		body, err := c.fetcher.Get(ctx, pageURL)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			logging.Debug("json page failed", "collector", c.name, "page", i+1, "error", err)
			break
		}
		if !gjson.ValidBytes(body) {
			return nil, fmt.Errorf("invalid JSON from %s", pageURL)
		}

		found := c.mapPage(string(body), pageURL)
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

func (c *JSONCollector) mapPage(jsonStr, pageURL string) []model.RawOffer {
	products := gjson.Parse(jsonStr)
	if c.root != "" {
		products = gjson.Get(jsonStr, c.root)
	}

	now := c.now()
	var raws []model.RawOffer
	each := func(_, value gjson.Result) bool {
		if r, ok := c.mapProduct(value.Raw, pageURL, now); ok {
			raws = append(raws, r)
		}
		return true
	}

	if products.IsArray() {
		products.ForEach(each)
	} else if products.IsObject() {
		each(gjson.Result{}, products)
	}
	return raws
}

func (c *JSONCollector) mapProduct(jsonStr, pageURL string, now time.Time) (model.RawOffer, bool) {
	get := func(field string) gjson.Result {
		path, ok := c.fields[field]
		if !ok || path == "" {
			return gjson.Result{}
		}
		return gjson.Get(jsonStr, path)
	}

	price, ok := c.amount(get(FieldPrice))
	if !ok {
		return model.RawOffer{}, false
	}

	r := model.RawOffer{
		Store:     c.store,
		Title:     strings.TrimSpace(get(FieldTitle).String()),
		URL:       resolve(pageURL, get(FieldURL).String()),
		Image:     resolve(pageURL, get(FieldImage).String()),
		Category:  c.category,
		Price:     price,
		SKU:       strings.TrimSpace(get(FieldSKU).String()),
		EAN:       strings.TrimSpace(get(FieldEAN).String()),
		FetchedAt: now,
	}
	if orig, ok := c.amount(get(FieldOriginalPrice)); ok {
		r.OriginalPrice = orig
	}
	if cat := strings.TrimSpace(get(FieldCategory).String()); cat != "" {
		r.Category = cat
	}
	if d := get(FieldDiscount); d.Exists() {
		if n, ok := percent(d); ok {
			r.DiscountPct = &n
		}
	}
	if a := get(FieldAvailability); a.Exists() {
		if a.Type == gjson.True || a.Type == gjson.False {
			r.Availability = model.OutOfStock
			if a.Bool() {
				r.Availability = model.InStock
			}
		} else {
			r.Availability = model.ParseAvailability(a.String())
		}
	}
	return r, true
}

// amount converts a price value to minor units. Numbers are major units
// unless the mapping says otherwise; strings go through ParsePrice.
func (c *JSONCollector) amount(v gjson.Result) (int64, bool) {
	if !v.Exists() {
		return 0, false
	}
	if v.Type == gjson.Number {
		if c.minorUnits {
			return v.Int(), v.Int() > 0
		}
		m := MinorUnits(v.Float())
		return m, m > 0
	}
	return ParsePrice(v.String())
}

func percent(v gjson.Result) (int, bool) {
	if v.Type == gjson.Number {
		return int(v.Int()), true
	}
	s := strings.Trim(strings.TrimSpace(v.String()), "-%")
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}
