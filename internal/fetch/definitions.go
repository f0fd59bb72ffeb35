package fetch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Collector types accepted in a definitions file.
const (
	TypeRSS  = "rss"
	TypeHTML = "html"
	TypeJSON = "json"
)

// Definition describes one collector in the collectors file.
type Definition struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	URL      string `json:"url"`
	Store    string `json:"store"`
	Category string `json:"category,omitempty"`

	// MaxPages bounds "{page}" expansion. Defaults to 1.
	MaxPages int `json:"maxPages,omitempty"`
	// RatePerSecond paces page requests. 0 means unpaced.
	RatePerSecond float64 `json:"ratePerSecond,omitempty"`

	Selectors *Selectors `json:"selectors,omitempty"`

	Root       string            `json:"root,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	MinorUnits bool              `json:"minorUnits,omitempty"`
}

// LoadDefinitions reads and validates a collectors file.
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read collectors file: %w", err)
	}
	var defs []Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse collectors file %s: %w", path, err)
	}
	if err := Validate(defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// Validate checks every definition and returns all problems at once.
func Validate(defs []Definition) error {
	var errs []error
	seen := make(map[string]bool)
	for i, d := range defs {
		where := fmt.Sprintf("collector %d (%s)", i, d.Name)
		if strings.TrimSpace(d.Name) == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		} else if seen[d.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate name", where))
		}
		seen[d.Name] = true

		if !strings.HasPrefix(d.URL, "http://") && !strings.HasPrefix(d.URL, "https://") {
			errs = append(errs, fmt.Errorf("%s: url must be http(s)", where))
		}
		if strings.TrimSpace(d.Store) == "" {
			errs = append(errs, fmt.Errorf("%s: store is required", where))
		}
		if d.RatePerSecond < 0 || d.MaxPages < 0 {
			errs = append(errs, fmt.Errorf("%s: maxPages and ratePerSecond must not be negative", where))
		}

		switch d.Type {
		case TypeRSS:
		case TypeHTML:
			if d.Selectors == nil || d.Selectors.Item == "" || d.Selectors.Price == "" || d.Selectors.Link == "" {
				errs = append(errs, fmt.Errorf("%s: html collectors need item, link and price selectors", where))
			}
		case TypeJSON:
			if d.Fields[FieldPrice] == "" || d.Fields[FieldURL] == "" {
				errs = append(errs, fmt.Errorf("%s: json collectors need price and url field paths", where))
			}
		default:
			errs = append(errs, fmt.Errorf("%s: unknown type %q", where, d.Type))
		}
	}
	return errors.Join(errs...)
}

// Build constructs collectors from validated definitions. Each collector gets
// its own Fetcher so pacing is per upstream.
func Build(defs []Definition, timeout time.Duration) ([]Collector, error) {
	if err := Validate(defs); err != nil {
		return nil, err
	}
	out := make([]Collector, 0, len(defs))
	for _, d := range defs {
		f := NewFetcher(timeout, d.RatePerSecond)
		switch d.Type {
		case TypeRSS:
			out = append(out, NewRSSCollector(d.Name, d.URL, d.Store, d.Category, f))
		case TypeHTML:
			out = append(out, NewHTMLCollector(d.Name, d.URL, d.Store, d.Category, d.MaxPages, *d.Selectors, f))
		case TypeJSON:
			out = append(out, NewJSONCollector(d.Name, d.URL, d.Store, d.Category, d.MaxPages,
				JSONMapping{Root: d.Root, Fields: d.Fields, MinorUnits: d.MinorUnits}, f))
		}
	}
	return out, nil
}
