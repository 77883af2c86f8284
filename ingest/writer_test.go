package ingest

import (
	"context"
	"testing"
	"time"

	"nostrelay.dev/broadcast"
	"nostrelay.dev/nostr"
	"nostrelay.dev/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return s
}

func testEvent(id byte) *nostr.Event {
	hexID := make([]byte, 64)
	for i := range hexID {
		hexID[i] = '0' + id%10
	}
	return &nostr.Event{ID: string(hexID), Pubkey: string(hexID), Kind: 1, CreatedAt: int64(id)}
}

func TestWriterPublishesOnInsert(t *testing.T) {
	s := newTestStore(t)
	hub := broadcast.New(4)
	w := New(s, hub, 0)

	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	ingestCh := make(chan *nostr.Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, ingestCh)

	e := testEvent(1)
	ingestCh <- e

	select {
	case got := <-events:
		if got.ID != e.ID {
			t.Errorf("expected %s, got %s", e.ID, got.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the writer to publish the inserted event")
	}
	if w.Published() != 1 {
		t.Errorf("expected Published()==1, got %d", w.Published())
	}
}

func TestWriterSkipsDuplicate(t *testing.T) {
	s := newTestStore(t)
	hub := broadcast.New(4)
	w := New(s, hub, 0)

	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	ingestCh := make(chan *nostr.Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, ingestCh)

	e := testEvent(2)
	ingestCh <- e
	<-events // consume the first publish

	ingestCh <- e // duplicate
	select {
	case <-events:
		t.Fatal("a duplicate event must not be re-published")
	case <-time.After(300 * time.Millisecond):
	}
	if w.Published() != 1 {
		t.Errorf("expected Published()==1 after a duplicate, got %d", w.Published())
	}
}

func TestWriterClosesStoreOnShutdown(t *testing.T) {
	s := newTestStore(t)
	hub := broadcast.New(4)
	w := New(s, hub, 0)

	ingestCh := make(chan *nostr.Event, 4)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx, ingestCh)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return after context cancellation")
	}

	if _, err := s.WriteEvent(testEvent(3)); err == nil {
		t.Error("expected an error writing to a closed store")
	}
}
