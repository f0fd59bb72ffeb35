// Package rotation persists when each offer was last shown, so recently shown
// offers can be deprioritised on later builds.
//
// The model is arena-style: a build loads the whole Map once, reads and
// stamps it in memory, and persists it once after committing. Callers must
// not run two builds against the same Store concurrently.
package rotation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Entry is the persisted record for one identity key.
type Entry struct {
	LastShownAt time.Time `json:"lastShownAt"`
}

// Map is the in-memory rotation state: identity key -> last shown time.
// Its JSON form is the flat object {"key": {"lastShownAt": "<RFC3339>"}}.
type Map map[string]time.Time

// Get returns the entry for key.
func (m Map) Get(key string) (Entry, bool) {
	t, ok := m[key]
	if !ok {
		return Entry{}, false
	}
	return Entry{LastShownAt: t}, true
}

// Set records that key was shown at t.
func (m Map) Set(key string, t time.Time) {
	m[key] = t
}

// Stamp records every key as shown at t.
func (m Map) Stamp(keys []string, t time.Time) {
	for _, k := range keys {
		m[k] = t
	}
}

// InCooldown reports whether key was shown less than window before now.
func (m Map) InCooldown(key string, now time.Time, window time.Duration) bool {
	t, ok := m[key]
	if !ok {
		return false
	}
	return now.Sub(t) < window
}

// Prune drops entries last shown more than ttl before now and returns how many
// were removed. A non-positive ttl disables pruning.
func (m Map) Prune(now time.Time, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	removed := 0
	for k, t := range m {
		if now.Sub(t) > ttl {
			delete(m, k)
			removed++
		}
	}
	return removed
}

// Before returns the entries last shown strictly before t.
func (m Map) Before(t time.Time) Map {
	out := make(Map, len(m))
	for k, v := range m {
		if v.Before(t) {
			out[k] = v
		}
	}
	return out
}

// Clone returns an independent copy.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MarshalJSON writes the flat {"key": {"lastShownAt": ...}} layout.
func (m Map) MarshalJSON() ([]byte, error) {
	entries := make(map[string]Entry, len(m))
	for k, t := range m {
		entries[k] = Entry{LastShownAt: t.UTC()}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON reads the flat layout written by MarshalJSON.
func (m *Map) UnmarshalJSON(data []byte) error {
	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	out := make(Map, len(entries))
	for k, e := range entries {
		if e.LastShownAt.IsZero() {
			continue
		}
		out[k] = e.LastShownAt
	}
	*m = out
	return nil
}

// Store is a pluggable backend with full-map load and save.
type Store interface {
	LoadAll(ctx context.Context) (Map, error)
	Persist(ctx context.Context, m Map) error
}

// PersistenceError reports a failed load or save against a backend.
type PersistenceError struct {
	Op      string // "load" or "persist"
	Backend string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("rotation %s (%s): %v", e.Op, e.Backend, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func loadErr(backend string, err error) error {
	return &PersistenceError{Op: "load", Backend: backend, Err: err}
}

func persistErr(backend string, err error) error {
	return &PersistenceError{Op: "persist", Backend: backend, Err: err}
}
