package connstate

import (
	"strings"
	"testing"

	"nostrelay.dev/nostr"
)

func TestSubscribeReplacesExistingID(t *testing.T) {
	s := New(2)
	if err := s.Subscribe(&nostr.Subscription{ID: "a", Filters: []*nostr.Filter{{Kinds: []int{1}}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Subscribe(&nostr.Subscription{ID: "a", Filters: []*nostr.Filter{{Kinds: []int{2}}}}); err != nil {
		t.Fatal(err)
	}
	if s.Count() != 1 {
		t.Errorf("re-subscribing under the same id should not increase the count, got %d", s.Count())
	}

	matches := s.Matching(&nostr.Event{Kind: 2})
	if len(matches) != 1 || matches[0] != "a" {
		t.Errorf("expected the replaced filters to be in effect, got %v", matches)
	}
	if len(s.Matching(&nostr.Event{Kind: 1})) != 0 {
		t.Error("old filters should no longer match after replacement")
	}
}

func TestSubscribeSubIDTooLong(t *testing.T) {
	s := New(32)
	longID := strings.Repeat("a", nostr.MaxSubscriptionIDLen+1)
	err := s.Subscribe(&nostr.Subscription{ID: longID, Filters: []*nostr.Filter{{}}})
	if err != ErrSubIDTooLong {
		t.Errorf("expected ErrSubIDTooLong, got %v", err)
	}
}

func TestSubscribeMaxExceeded(t *testing.T) {
	s := New(2)
	if err := s.Subscribe(&nostr.Subscription{ID: "a", Filters: []*nostr.Filter{{}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Subscribe(&nostr.Subscription{ID: "b", Filters: []*nostr.Filter{{}}}); err != nil {
		t.Fatal(err)
	}
	err := s.Subscribe(&nostr.Subscription{ID: "c", Filters: []*nostr.Filter{{}}})
	if err != ErrSubMaxExceeded {
		t.Errorf("expected ErrSubMaxExceeded, got %v", err)
	}
}

func TestUnsubscribeUnknownIsSilent(t *testing.T) {
	s := New(32)
	s.Unsubscribe("never-existed")
	if s.Count() != 0 {
		t.Errorf("expected count 0, got %d", s.Count())
	}
}

func TestMatchingMultipleSubscriptions(t *testing.T) {
	s := New(32)
	_ = s.Subscribe(&nostr.Subscription{ID: "a", Filters: []*nostr.Filter{{Kinds: []int{1}}}})
	_ = s.Subscribe(&nostr.Subscription{ID: "b", Filters: []*nostr.Filter{{Kinds: []int{1}}}})
	_ = s.Subscribe(&nostr.Subscription{ID: "c", Filters: []*nostr.Filter{{Kinds: []int{2}}}})

	matches := s.Matching(&nostr.Event{Kind: 1})
	if len(matches) != 2 {
		t.Errorf("expected 2 matches, got %d: %v", len(matches), matches)
	}
}
