package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelbrown/dealfeed/internal/filter"
	"github.com/abelbrown/dealfeed/internal/model"
)

const dealsRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Deals</title>
    <item>
      <title>Hades - $12.49 (was $24.99)</title>
      <link>https://store.example/app/hades</link>
      <category>roguelike</category>
      <pubDate>Mon, 01 Jan 2024 12:00:00 GMT</pubDate>
      <enclosure url="https://cdn.example/hades.jpg" type="image/jpeg" length="1"/>
    </item>
    <item>
      <title>Patch notes for something</title>
      <link>https://store.example/news/1</link>
    </item>
    <item>
      <title>Celeste</title>
      <link>https://store.example/app/celeste</link>
      <description>Now $4.99, -75% this week</description>
    </item>
  </channel>
</rss>`

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRSSCollector(t *testing.T) {
	server := serve(t, dealsRSS)
	c := NewRSSCollector("deals-rss", server.URL, "Example Store", "games", NewFetcher(5*time.Second, 0))

	if c.Name() != "deals-rss" {
		t.Errorf("unexpected name %q", c.Name())
	}

	raws, err := c.FetchOffers(context.Background(), Options{})
	if err != nil {
		t.Fatalf("FetchOffers failed: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("expected 2 priced items, got %d", len(raws))
	}

	hades := raws[0]
	if hades.Title != "Hades" || hades.Price != 1249 || hades.OriginalPrice != 2499 {
		t.Errorf("unexpected first offer: %+v", hades)
	}
	if hades.Category != "roguelike" || hades.Image != "https://cdn.example/hades.jpg" {
		t.Errorf("category/image not mapped: %+v", hades)
	}
	if hades.Store != "Example Store" {
		t.Errorf("store not set: %q", hades.Store)
	}

	celeste := raws[1]
	if celeste.Price != 499 || celeste.DiscountPct == nil || *celeste.DiscountPct != 75 {
		t.Errorf("description pricing not used: %+v", celeste)
	}
	if celeste.Category != "games" {
		t.Errorf("expected default category, got %q", celeste.Category)
	}

	limited, _ := c.FetchOffers(context.Background(), Options{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit not applied, got %d", len(limited))
	}
}

func TestRSSCollectorErrors(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFound.Close()

	if _, err := NewRSSCollector("x", notFound.URL, "s", "", NewFetcher(time.Second, 0)).
		FetchOffers(context.Background(), Options{}); err == nil {
		t.Error("expected error for 404 response")
	}

	invalid := serve(t, "not valid xml")
	if _, err := NewRSSCollector("x", invalid.URL, "s", "", NewFetcher(time.Second, 0)).
		FetchOffers(context.Background(), Options{}); err == nil {
		t.Error("expected error for invalid XML")
	}
}

func TestFetcherSendsUserAgentAndHonoursContext(t *testing.T) {
	var ua atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewFetcher(time.Second, 0)
	if _, err := f.Get(context.Background(), server.URL); err != nil {
		t.Fatal(err)
	}
	if got, _ := ua.Load().(string); !strings.HasPrefix(got, "dealfeed/") {
		t.Errorf("unexpected user agent %q", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Get(ctx, server.URL); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

const listingPage = `<html><body>
<div class="card" data-sku="GPU-1">
  <a class="link" href="/p/rtx-4070"><h2 class="name">ASUS RTX 4070 Dual</h2></a>
  <img class="thumb" data-src="/img/4070.jpg">
  <span class="price">R$ 3.499,90</span>
  <s class="old">R$ 4.199,00</s>
  <span class="stock">Em estoque</span>
</div>
<div class="card" data-sku="GPU-2">
  <a class="link" href="https://other.example/p/rx-7800"><h2 class="name">RX 7800 XT</h2></a>
  <span class="price">R$ 2.899,00</span>
  <span class="stock">Esgotado</span>
</div>
<div class="card"><h2 class="name">Broken card without price</h2></div>
</body></html>`

func TestHTMLCollector(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("page") == "1" {
			w.Write([]byte(listingPage))
			return
		}
		w.Write([]byte("<html><body></body></html>"))
	}))
	defer server.Close()

	sel := Selectors{
		Item:          ".card",
		Title:         ".name",
		Link:          "a.link",
		Image:         "img.thumb",
		Price:         ".price",
		OriginalPrice: ".old",
		SKU:           ".",
		Availability:  ".stock",
	}
	c := NewHTMLCollector("hw-html", server.URL+"/list?page={page}", "HW Store", "gpu", 3, sel, NewFetcher(time.Second, 0))

	raws, err := c.FetchOffers(context.Background(), Options{})
	if err != nil {
		t.Fatalf("FetchOffers failed: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(raws))
	}
	if hits.Load() != 2 {
		t.Errorf("paging should stop at the first empty page, got %d requests", hits.Load())
	}

	first := raws[0]
	if first.URL != server.URL+"/p/rtx-4070" || first.Image != server.URL+"/img/4070.jpg" {
		t.Errorf("relative links not resolved: %+v", first)
	}
	if first.Price != 349990 || first.OriginalPrice != 419900 || first.SKU != "GPU-1" {
		t.Errorf("unexpected first offer: %+v", first)
	}
	if first.Title != "ASUS RTX 4070 Dual" || first.Category != "gpu" {
		t.Errorf("unexpected title/category: %+v", first)
	}
	if raws[1].URL != "https://other.example/p/rx-7800" {
		t.Errorf("absolute link changed: %s", raws[1].URL)
	}
	if first.Availability != model.InStock || raws[1].Availability != model.OutOfStock {
		t.Errorf("availability not mapped: %s / %s", first.Availability, raws[1].Availability)
	}
}

const vendorJSON = `{
  "data": {
    "products": [
      {"name": "Elden Ring", "slug": "https://shop.example/elden-ring", "pricing": {"now": 29.99, "was": 59.99}, "off": "-50%", "ean": "3391892017861", "genre": "rpg", "available": true},
      {"name": "Tetris", "slug": "/tetris", "pricing": {"now": "4,99"}, "available": false},
      {"name": "No price", "slug": "/x"}
    ]
  }
}`

func TestJSONCollector(t *testing.T) {
	server := serve(t, vendorJSON)
	m := JSONMapping{
		Root: "data.products",
		Fields: map[string]string{
			FieldTitle:         "name",
			FieldURL:           "slug",
			FieldPrice:         "pricing.now",
			FieldOriginalPrice: "pricing.was",
			FieldDiscount:      "off",
			FieldEAN:           "ean",
			FieldCategory:      "genre",
			FieldAvailability:  "available",
		},
	}
	c := NewJSONCollector("vendor-api", server.URL+"/api", "Vendor", "games", 1, m, NewFetcher(time.Second, 0))

	raws, err := c.FetchOffers(context.Background(), Options{})
	if err != nil {
		t.Fatalf("FetchOffers failed: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(raws))
	}

	elden := raws[0]
	if elden.Price != 2999 || elden.OriginalPrice != 5999 || elden.EAN != "3391892017861" {
		t.Errorf("unexpected first offer: %+v", elden)
	}
	if elden.DiscountPct == nil || *elden.DiscountPct != 50 || elden.Category != "rpg" || elden.Availability != model.InStock {
		t.Errorf("unexpected discount/category/availability: %+v", elden)
	}

	tetris := raws[1]
	if tetris.Price != 499 || tetris.URL != server.URL+"/tetris" || tetris.Category != "games" {
		t.Errorf("unexpected second offer: %+v", tetris)
	}
	if tetris.Availability != model.OutOfStock {
		t.Errorf("expected out of stock, got %s", tetris.Availability)
	}
}

func TestJSONCollectorInvalidBody(t *testing.T) {
	server := serve(t, "{broken")
	c := NewJSONCollector("bad", server.URL, "s", "", 1, JSONMapping{Fields: map[string]string{FieldPrice: "p", FieldURL: "u"}}, NewFetcher(time.Second, 0))
	if _, err := c.FetchOffers(context.Background(), Options{}); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestWithPrefilter(t *testing.T) {
	inner := CollectorFunc{ID: "static", Fn: func(ctx context.Context, opts Options) ([]model.RawOffer, error) {
		return []model.RawOffer{{Title: "RTX 4070"}, {Title: "RTX 3060 refurbished"}, {Title: "Mouse"}}, nil
	}}

	c := WithPrefilter(inner, filter.NewKeywordPolicy([]string{"rtx"}, []string{"refurbished"}))
	if c.Name() != "static" {
		t.Errorf("wrapper should keep the name, got %q", c.Name())
	}
	raws, err := c.FetchOffers(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(raws) != 1 || raws[0].Title != "RTX 4070" {
		t.Errorf("unexpected prefiltered result: %v", raws)
	}

	if _, ok := WithPrefilter(inner, nil).(CollectorFunc); !ok {
		t.Error("nil policy should return the collector unchanged")
	}
}

func TestCollectorError(t *testing.T) {
	base := errors.New("timeout")
	err := error(&CollectorError{Collector: "steam", Err: base})
	if !errors.Is(err, base) {
		t.Error("CollectorError should unwrap")
	}
	if !strings.Contains(err.Error(), "steam") {
		t.Errorf("error should name the collector: %v", err)
	}
}

func TestLoadDefinitionsAndBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collectors.json")
	body := `[
	  {"name": "steam-rss", "type": "rss", "url": "https://example.com/rss", "store": "Steam", "category": "games"},
	  {"name": "hw", "type": "html", "url": "https://hw.example/list?p={page}", "store": "HW", "maxPages": 2, "ratePerSecond": 1,
	   "selectors": {"item": ".card", "title": ".t", "link": "a", "price": ".p"}},
	  {"name": "api", "type": "json", "url": "https://api.example/deals", "store": "API", "root": "items",
	   "fields": {"title": "name", "url": "link", "price": "price"}}
	]`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	defs, err := LoadDefinitions(path)
	if err != nil {
		t.Fatalf("LoadDefinitions failed: %v", err)
	}
	collectors, err := Build(defs, time.Second)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(collectors) != 3 {
		t.Fatalf("expected 3 collectors, got %d", len(collectors))
	}
	if _, ok := collectors[1].(*HTMLCollector); !ok {
		t.Errorf("expected HTMLCollector, got %T", collectors[1])
	}
}

func TestValidateDefinitions(t *testing.T) {
	defs := []Definition{
		{Name: "a", Type: "rss", URL: "ftp://nope", Store: "s"},
		{Name: "a", Type: "html", URL: "https://ok", Store: "s"},
		{Name: "c", Type: "soap", URL: "https://ok"},
	}
	err := Validate(defs)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"url must be http(s)", "duplicate name", "selectors", "unknown type", "store is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}
