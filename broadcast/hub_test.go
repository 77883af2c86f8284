package broadcast

import (
	"testing"
	"time"

	"nostrelay.dev/nostr"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	h := New(4)
	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	e := &nostr.Event{ID: "aa"}
	h.Publish(e)

	select {
	case got := <-ch:
		if got.ID != "aa" {
			t.Errorf("expected aa, got %s", got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected to receive the published event")
	}
}

func TestPublishDoesNotBlockOnLaggingSubscriber(t *testing.T) {
	h := New(1)
	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Publish(&nostr.Event{ID: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
	<-ch // drain one, to show the subscriber wasn't starved entirely
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := New(4)
	ch, unsubscribe := h.Subscribe()
	unsubscribe()

	h.Publish(&nostr.Event{ID: "aa"})

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
}

func TestSubscribersCount(t *testing.T) {
	h := New(4)
	if h.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers initially")
	}
	_, unsubscribe := h.Subscribe()
	if h.Subscribers() != 1 {
		t.Errorf("expected 1 subscriber, got %d", h.Subscribers())
	}
	unsubscribe()
	if h.Subscribers() != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %d", h.Subscribers())
	}
}
