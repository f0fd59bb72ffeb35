package rotation

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestInCooldown(t *testing.T) {
	m := Map{"a": t0.Add(-71 * time.Hour), "b": t0.Add(-72 * time.Hour), "c": t0.Add(-100 * time.Hour)}
	window := 72 * time.Hour

	tests := []struct {
		key  string
		want bool
	}{
		{"a", true},
		{"b", false}, // exactly at the window edge
		{"c", false},
		{"missing", false},
	}
	for _, tt := range tests {
		if got := m.InCooldown(tt.key, t0, window); got != tt.want {
			t.Errorf("InCooldown(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestStampAndPrune(t *testing.T) {
	m := Map{"old": t0.Add(-31 * 24 * time.Hour), "recent": t0.Add(-time.Hour)}
	m.Stamp([]string{"new1", "new2", "recent"}, t0)

	if got, _ := m.Get("recent"); !got.LastShownAt.Equal(t0) {
		t.Errorf("recent should be restamped, got %v", got.LastShownAt)
	}

	removed := m.Prune(t0, 30*24*time.Hour)
	if removed != 1 {
		t.Errorf("expected 1 pruned entry, got %d", removed)
	}
	if _, ok := m.Get("old"); ok {
		t.Error("old entry should be pruned")
	}
	if len(m) != 3 {
		t.Errorf("expected 3 entries left, got %d", len(m))
	}
	if n := m.Prune(t0, 0); n != 0 {
		t.Errorf("zero ttl should not prune, removed %d", n)
	}
}

func TestBefore(t *testing.T) {
	m := Map{"yesterday": t0.Add(-24 * time.Hour), "edge": t0, "later": t0.Add(time.Minute)}

	got := m.Before(t0)
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %v", got)
	}
	if _, ok := got.Get("yesterday"); !ok {
		t.Error("entry before t should be kept")
	}
	if len(m) != 3 {
		t.Error("Before must not modify the receiver")
	}
}

func TestMapJSONShape(t *testing.T) {
	m := Map{"ean:123": t0}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"ean:123":{"lastShownAt":"2026-03-01T12:00:00Z"}}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	var back Map
	if err := json.Unmarshal([]byte(`{"x":{"lastShownAt":"2026-03-01T12:00:00Z"},"y":{}}`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 1 || !back["x"].Equal(t0) {
		t.Errorf("unexpected decode: %v", back)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "rotation.json")
	s := NewFileStore(path)

	m, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("missing file should load empty: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("expected empty map, got %v", m)
	}

	m.Stamp([]string{"a", "b"}, t0)
	if err := s.Persist(ctx, m); err != nil {
		t.Fatalf("persist: %v", err)
	}

	got, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || !got["a"].Equal(t0) {
		t.Errorf("unexpected round trip: %v", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotation.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileStore(path).LoadAll(context.Background())
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if perr.Op != "load" || perr.Backend != "file" {
		t.Errorf("unexpected error fields: %+v", perr)
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	m, _ := s.LoadAll(ctx)
	m.Set("a", t0)
	if len(s.Snapshot()) != 0 {
		t.Error("mutating a loaded map must not touch the store")
	}

	if err := s.Persist(ctx, m); err != nil {
		t.Fatal(err)
	}
	m.Set("b", t0)
	if len(s.Snapshot()) != 1 {
		t.Error("mutating after persist must not touch the store")
	}

	s.PersistErr = errors.New("disk full")
	if err := s.Persist(ctx, m); err == nil {
		t.Error("expected injected persist error")
	}
}
