package nostr

import "testing"

func TestSubscriptionMatchesORsFilters(t *testing.T) {
	e := &Event{Kind: 1}
	sub := &Subscription{
		ID: "sub1",
		Filters: []*Filter{
			{Kinds: []int{0}},
			{Kinds: []int{1}},
		},
	}
	if !sub.Matches(e) {
		t.Error("expected a match via the second filter")
	}
}

func TestSubscriptionNoMatch(t *testing.T) {
	e := &Event{Kind: 2}
	sub := &Subscription{
		ID:      "sub1",
		Filters: []*Filter{{Kinds: []int{0}}, {Kinds: []int{1}}},
	}
	if sub.Matches(e) {
		t.Error("expected no match")
	}
}
