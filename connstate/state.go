// Package connstate tracks, per connection, the set of currently active
// subscriptions and answers "which subscriptions does this event match"
// for live fan-out.
package connstate

import (
	"fmt"
	"sync"

	"nostrelay.dev/nostr"
)

// ErrSubIDTooLong is returned by Subscribe when the subscription id
// exceeds nostr.MaxSubscriptionIDLen.
var ErrSubIDTooLong = fmt.Errorf("subscription id exceeds %d bytes", nostr.MaxSubscriptionIDLen)

// ErrSubMaxExceeded is returned by Subscribe when the connection already
// holds MaxSubs distinct subscriptions and sub.ID is not one of them.
var ErrSubMaxExceeded = fmt.Errorf("subscription count exceeds maximum")

// State holds one connection's active subscriptions. The zero value is not
// usable; construct with New.
type State struct {
	maxSubs int

	mu   sync.RWMutex
	subs map[string]*nostr.Subscription
}

// New returns a State whose subscription count is capped at maxSubs. A
// maxSubs <= 0 uses nostr.DefaultMaxSubs.
func New(maxSubs int) *State {
	if maxSubs <= 0 {
		maxSubs = nostr.DefaultMaxSubs
	}
	return &State{
		maxSubs: maxSubs,
		subs:    make(map[string]*nostr.Subscription),
	}
}

// Subscribe registers sub. A re-subscription under an id already present
// replaces its filters in place without counting against the connection's
// subscription limit; the in-flight historical query started under the old
// filters, if any, is left to run to completion by the caller (Connection
// Task), still delivering under the same sub_id.
func (s *State) Subscribe(sub *nostr.Subscription) error {
	if len(sub.ID) > nostr.MaxSubscriptionIDLen {
		return ErrSubIDTooLong
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.subs[sub.ID]; !exists && len(s.subs) >= s.maxSubs {
		return ErrSubMaxExceeded
	}
	s.subs[sub.ID] = sub
	return nil
}

// Unsubscribe removes subID if present. Removing an id that is not present
// is silent — no error, no notice — matching a CLOSE for an unknown
// subscription.
func (s *State) Unsubscribe(subID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, subID)
}

// Matching returns the ids of every currently registered subscription that
// matches e.
func (s *State) Matching(e *nostr.Event) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, sub := range s.subs {
		if sub.Matches(e) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Count returns the current subscription count.
func (s *State) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
