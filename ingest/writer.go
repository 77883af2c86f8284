// Package ingest implements the Writer Task: the single consumer of the
// event-ingest channel. It serializes all writes to the store, republishes
// newly persisted events on the broadcast hub, and applies an optional
// write-rate limit.
package ingest

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"nostrelay.dev/broadcast"
	"nostrelay.dev/internal/chk"
	"nostrelay.dev/internal/xlog"
	"nostrelay.dev/nostr"
	"nostrelay.dev/store"
)

// rateLimitLogInterval bounds how often a sustained rate limit is logged;
// the limiter itself is unaffected, only the noise from it is throttled.
const rateLimitLogInterval = time.Second

// Writer is the single consumer of the ingest channel.
type Writer struct {
	store   *store.Store
	hub     *broadcast.Hub
	limiter *rate.Limiter

	published uint64
}

// New constructs a Writer over s and h. If messagesPerSec is > 0, a token
// bucket is created sized to messagesPerSec*60 (so a one-minute burst is
// tolerated), replenished continuously at messagesPerSec. A zero or
// negative messagesPerSec disables rate limiting entirely.
func New(s *store.Store, h *broadcast.Hub, messagesPerSec int) *Writer {
	w := &Writer{store: s, hub: h}
	if messagesPerSec > 0 {
		burst := messagesPerSec * 60
		w.limiter = rate.NewLimiter(rate.Limit(messagesPerSec), burst)
		xlog.I.F("ingest: rate limiting enabled at %d/sec (burst %d)", messagesPerSec, burst)
	}
	return w
}

// Run consumes events off ingest until it is closed or ctx is cancelled,
// persisting each and publishing the newly-inserted ones on the hub. It
// closes the store before returning, matching the Writer's role as sole
// owner of the write handle.
func (w *Writer) Run(ctx context.Context, ingest <-chan *nostr.Event) {
	defer func() {
		if err := w.store.Close(); chk.E(err) {
			return
		}
	}()

	var lastRateLimitLog time.Time

	for {
		select {
		case <-ctx.Done():
			xlog.I.Ln("ingest: writer shutting down")
			return
		case e, ok := <-ingest:
			if !ok {
				xlog.I.Ln("ingest: channel closed, writer exiting")
				return
			}
			w.writeOne(ctx, e, &lastRateLimitLog)
		}
	}
}

func (w *Writer) writeOne(ctx context.Context, e *nostr.Event, lastRateLimitLog *time.Time) {
	start := time.Now()
	result, err := w.store.WriteEvent(e)
	if chk.E(err) {
		return
	}
	if result == store.Duplicate {
		xlog.T.F("ingest: duplicate event %s", e.String())
		return
	}

	w.published++
	xlog.D.F("ingest: persisted %s in %s", e.String(), time.Since(start))
	w.hub.Publish(e)

	if w.limiter == nil {
		return
	}
	res := w.limiter.Reserve()
	if !res.OK() {
		return
	}
	wait := res.Delay()
	if wait <= 0 {
		return
	}
	if time.Since(*lastRateLimitLog) > rateLimitLogInterval {
		xlog.W.F("ingest: rate limit reached for event creation (sleep for %s)", wait)
		*lastRateLimitLog = time.Now()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Published returns the count of events this writer has successfully
// persisted and broadcast since construction.
func (w *Writer) Published() uint64 { return w.published }
