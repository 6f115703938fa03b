// Package live pushes progress updates to a player's open tabs over
// WebSocket, so the route overview and map widget can refresh without a
// page reload after an answer lands in another tab.
package live

import (
	"log/slog"
	"sync"
)

// Event is one progress update delivered to subscribers.
type Event struct {
	Kind     string `json:"kind"` // "progress", "point_completed", "bonus_unlocked", "reset"
	PointID  int    `json:"point_id,omitempty"`
	Snapshot any    `json:"snapshot,omitempty"`
}

// Feed fans progress events out to per-player subscribers.
type Feed struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a subscriber for a player's events. The returned
// channel is buffered; slow subscribers drop events rather than block the
// request path. Call the cancel func when done.
func (f *Feed) Subscribe(playerID string) (<-chan Event, func()) {
	ch := make(chan Event, 8)

	f.mu.Lock()
	if _, ok := f.subs[playerID]; !ok {
		f.subs[playerID] = make(map[chan Event]struct{})
	}
	f.subs[playerID][ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if set, ok := f.subs[playerID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(f.subs, playerID)
			}
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of the player. Events to
// subscribers with full buffers are dropped; the next snapshot supersedes
// them anyway.
func (f *Feed) Publish(playerID string, ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for ch := range f.subs[playerID] {
		select {
		case ch <- ev:
		default:
			slog.Debug("Progress feed subscriber lagging, event dropped",
				"player_id", playerID, "kind", ev.Kind)
		}
	}
}

// SubscriberCount returns the number of open subscriptions for a player.
func (f *Feed) SubscriberCount(playerID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[playerID])
}
