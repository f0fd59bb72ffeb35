package coord

import (
	"sync/atomic"

	"github.com/abelbrown/dealfeed/internal/model"
)

// FeedStore holds the last committed feed. Reads never block.
type FeedStore struct {
	current atomic.Pointer[model.Feed]
}

// Current returns the committed feed, or an empty feed if nothing has been
// committed yet.
func (s *FeedStore) Current() model.Feed {
	if f := s.current.Load(); f != nil {
		return *f
	}
	return model.Feed{Items: []model.Offer{}}
}

// Commit replaces the feed. Empty feeds are refused so a bad build never
// hides a good one. Reports whether the feed was stored.
func (s *FeedStore) Commit(f model.Feed) bool {
	if f.Empty() {
		return false
	}
	items := make([]model.Offer, len(f.Items))
	copy(items, f.Items)
	s.current.Store(&model.Feed{BuiltAt: f.BuiltAt, Items: items})
	return true
}
