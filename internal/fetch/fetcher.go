package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const userAgent = "dealfeed/1.0 (+https://github.com/abelbrown/dealfeed)"

// maxBody bounds how much of one response a collector will read.
const maxBody = 8 << 20

// Fetcher is the HTTP client shared by collectors.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewFetcher creates a Fetcher with the given request timeout. perSecond
// paces requests (pages) issued through it; 0 means unpaced.
func NewFetcher(timeout time.Duration, perSecond float64) *Fetcher {
	lim := rate.NewLimiter(rate.Inf, 1)
	if perSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		limiter: lim,
	}
}

// Get retrieves url and returns the body. Non-200 responses are errors.
// The function respects context cancellation.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// pageURLs expands a "{page}" placeholder into pages 1..maxPages. URLs without
// the placeholder are fetched once.
func pageURLs(template string, maxPages int) []string {
	if !strings.Contains(template, "{page}") {
		return []string{template}
	}
	if maxPages <= 0 {
		maxPages = 1
	}
	out := make([]string, 0, maxPages)
	for p := 1; p <= maxPages; p++ {
		out = append(out, strings.ReplaceAll(template, "{page}", strconv.Itoa(p)))
	}
	return out
}

// resolve makes ref absolute against base. Unparseable refs come back as-is
// and are rejected later by normalization.
func resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
