// Package broadcast implements the process-wide fan-out of newly persisted
// events: a single producer (the Writer Task), many consumers (one per
// Connection Task). A slow or stalled consumer never blocks the producer;
// it instead misses whatever was published while it was behind, and is
// expected to recover any gap via a fresh historical query.
package broadcast

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"nostrelay.dev/internal/xlog"
	"nostrelay.dev/nostr"
)

// DefaultBufferDepth is the default per-subscriber channel capacity.
const DefaultBufferDepth = 64

// Hub is the broadcast primitive. Zero value is not usable; construct with
// New.
type Hub struct {
	bufferDepth int
	subscribers *xsync.MapOf[uint64, chan *nostr.Event]
	nextID      atomic.Uint64
}

// New returns a Hub whose subscriber channels are sized to bufferDepth.
func New(bufferDepth int) *Hub {
	if bufferDepth <= 0 {
		bufferDepth = DefaultBufferDepth
	}
	return &Hub{
		bufferDepth: bufferDepth,
		subscribers: xsync.NewMapOf[uint64, chan *nostr.Event](),
	}
}

// Subscribe registers a new consumer and returns its channel and a handle
// to unsubscribe. The returned channel is buffered to bufferDepth; once
// full, further publishes for this subscriber are dropped rather than
// blocking the publisher.
func (h *Hub) Subscribe() (events <-chan *nostr.Event, unsubscribe func()) {
	id := h.nextID.Add(1)
	ch := make(chan *nostr.Event, h.bufferDepth)
	h.subscribers.Store(id, ch)
	return ch, func() {
		if _, loaded := h.subscribers.LoadAndDelete(id); loaded {
			close(ch)
		}
	}
}

// Publish fans e out to every current subscriber. It never blocks: a
// subscriber whose channel is full has its delivery for this event dropped
// and is expected to notice the gap on its own (by reconnecting a
// subscription and re-querying), per the store's authoritative persistence.
func (h *Hub) Publish(e *nostr.Event) {
	h.subscribers.Range(func(id uint64, ch chan *nostr.Event) bool {
		select {
		case ch <- e:
		default:
			xlog.D.F("broadcast: subscriber %d lagging, dropping event %s", id, e.String())
		}
		return true
	})
}

// Subscribers reports the current consumer count, for diagnostics.
func (h *Hub) Subscribers() int {
	return h.subscribers.Size()
}
