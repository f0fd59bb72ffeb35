// Package ui provides the Bubble Tea feed viewer.
package ui

import "github.com/abelbrown/dealfeed/internal/model"

// FeedLoaded is sent when a feed arrives from the service.
type FeedLoaded struct {
	Feed  model.Feed
	Stale bool // the service kept its previous feed
	Err   error
}

// RefreshTick triggers periodic polling.
type RefreshTick struct{}
