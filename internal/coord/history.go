package coord

import (
	"sync"
	"time"
)

// DefaultHistorySize is how many finished builds Status reports.
const DefaultHistorySize = 16

// BuildRecord summarises one finished build.
type BuildRecord struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	Outcome    string        `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	Relaxation string        `json:"relaxation,omitempty"`
	Collected  int           `json:"collected"`
	Eligible   int           `json:"eligible"`
	Selected   int           `json:"selected"`
	PoolCached bool          `json:"poolCached,omitempty"`
}

// history is a fixed-size circular buffer of build records.
// Goroutine-safe.
type history struct {
	mu    sync.Mutex
	buf   []BuildRecord
	head  int // next write position
	count int // valid entries (0..len(buf))
}

func newHistory(size int) *history {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &history{buf: make([]BuildRecord, size)}
}

// push adds a record, overwriting the oldest if full.
func (h *history) push(r BuildRecord) {
	h.mu.Lock()
	h.buf[h.head] = r
	h.head = (h.head + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
	h.mu.Unlock()
}

// recent returns the records newest first.
func (h *history) recent() []BuildRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]BuildRecord, h.count)
	for i := 0; i < h.count; i++ {
		idx := (h.head - 1 - i + len(h.buf)) % len(h.buf)
		out[i] = h.buf[idx]
	}
	return out
}
