package querypool

import (
	"context"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"nostrelay.dev/nostr"
	"nostrelay.dev/store"
)

func hex64(b byte) string {
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = b
	}
	return hex.EncodeToString(buf)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunUnderCapCompletesEveryQuery(t *testing.T) {
	s := newTestStore(t)
	for i := byte(1); i <= 3; i++ {
		e := &nostr.Event{ID: hex64(i), Pubkey: hex64(1), Kind: 1, CreatedAt: int64(i)}
		if _, err := s.WriteEvent(e); err != nil {
			t.Fatalf("WriteEvent: %v", err)
		}
	}

	p := New(s.Path(), 1)
	results := make(chan store.QueryResult, 16)
	abandon := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := &nostr.Subscription{ID: "sub", Filters: []*nostr.Filter{{}}}
			if err := p.Run(context.Background(), sub, results, abandon); err != nil {
				t.Errorf("Run: %v", err)
			}
		}()
	}
	wg.Wait()

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	count := 0
	for {
		select {
		case <-results:
			count++
			continue
		default:
		}
		break
	}
	if count != 9 {
		t.Errorf("expected 3 concurrent runs x 3 rows = 9 results, got %d", count)
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	s := newTestStore(t)
	p := New(s.Path(), 0) // a cap of 0 never admits any query

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sub := &nostr.Subscription{ID: "sub", Filters: []*nostr.Filter{{}}}
	err := p.Run(ctx, sub, make(chan store.QueryResult, 1), make(chan struct{}))
	if err == nil {
		t.Fatal("expected Run to fail once the context expires with no slots ever free")
	}
}
