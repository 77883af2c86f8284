package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"

	"nostrelay.dev/broadcast"
	"nostrelay.dev/connstate"
	"nostrelay.dev/internal/chk"
	"nostrelay.dev/internal/xlog"
	"nostrelay.dev/nostr"
	"nostrelay.dev/querypool"
	"nostrelay.dev/store"
)

// resultBufferDepth bounds the per-connection query-result channel: a slow
// websocket client slows its own historical queries, not anyone else's.
const resultBufferDepth = 256

// maxEventBytes is the soft, core-level limit on an inbound message's size;
// exceeding it gets a NOTICE and the connection stays open. The hard
// transport-level message ceiling is enforced separately, by the websocket
// layer, via conn.SetReadLimit.
const maxEventBytes = 65536

// connection is one Connection Task: the per-socket event loop that
// multiplexes query results, query completions, broadcast arrivals,
// inbound protocol messages and keepalive pings, plus the per-connection
// subscription state backing live matching. The loop watches no
// process-wide shutdown signal; it ends only when its socket read fails
// or the socket closes.
type connection struct {
	id     uuid.UUID
	conn   *websocket.Conn
	hub    *broadcast.Hub
	ingest chan<- *nostr.Event
	pool   *querypool.Pool

	state *connstate.State

	results   chan store.QueryResult
	cancels   map[string]chan struct{}
	queryDone chan queryDone
}

// queryDone reports that the historical query started under subID, and
// identified by its cancel channel, has finished — so the event loop can
// clear cancels[subID] if nothing else has already replaced or removed it.
type queryDone struct {
	subID  string
	cancel chan struct{}
}

func newConnection(id uuid.UUID, conn *websocket.Conn, hub *broadcast.Hub, ingest chan<- *nostr.Event, pool *querypool.Pool, maxSubs int) *connection {
	return &connection{
		id:        id,
		conn:      conn,
		hub:       hub,
		ingest:    ingest,
		pool:      pool,
		state:     connstate.New(maxSubs),
		results:   make(chan store.QueryResult, resultBufferDepth),
		cancels:   make(map[string]chan struct{}),
		queryDone: make(chan queryDone),
	}
}

// run is the Connection Task's event loop. It exits when the socket errors
// or closes, firing cancellation on every still-running query so their
// backing I/O work may stop promptly.
func (c *connection) run() {
	broadcastCh, unsubscribeHub := c.hub.Subscribe()
	defer unsubscribeHub()
	defer c.shutdown()

	inbound := make(chan []byte, 8)
	readErr := make(chan error, 1)
	go c.readLoop(inbound, readErr)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readErr:
			return

		case <-ticker.C:
			chk.E(c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)))

		case res := <-c.results:
			c.deliver(res.SubID, res.Event)

		case qd := <-c.queryDone:
			c.handleQueryDone(qd)

		case e, ok := <-broadcastCh:
			if !ok {
				continue
			}
			c.deliverBroadcast(e)

		case raw, ok := <-inbound:
			if !ok {
				return
			}
			c.handleMessage(raw)
		}
	}
}

func (c *connection) readLoop(inbound chan<- []byte, readErr chan<- error) {
	defer close(inbound)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		inbound <- message
	}
}

func (c *connection) shutdown() {
	for subID, cancel := range c.cancels {
		close(cancel)
		delete(c.cancels, subID)
	}
	chk.E(c.conn.Close())
	xlog.I.F("server: connection %s closed", c.id)
}

func (c *connection) deliver(subID string, e *nostr.Event) {
	b, err := nostr.MarshalEvent(subID, e)
	if chk.E(err) {
		return
	}
	c.write(b)
}

// deliverBroadcast serializes e once and sends it to every subscription on
// this connection currently matching it, rather than re-marshaling per
// match, to bound CPU per broadcast.
func (c *connection) deliverBroadcast(e *nostr.Event) {
	ids := c.state.Matching(e)
	if len(ids) == 0 {
		return
	}
	payload, err := json.Marshal(e)
	if chk.E(err) {
		return
	}
	for _, subID := range ids {
		b, err := json.Marshal([3]any{nostr.EnvelopeEvent, subID, json.RawMessage(payload)})
		if chk.E(err) {
			continue
		}
		c.write(b)
	}
}

func (c *connection) notice(message string) {
	b, err := nostr.MarshalNotice(message)
	if chk.E(err) {
		return
	}
	c.write(b)
}

func (c *connection) write(b []byte) {
	chk.E(c.conn.SetWriteDeadline(time.Now().Add(writeWait)))
	chk.E(c.conn.WriteMessage(websocket.TextMessage, b))
}

func (c *connection) handleMessage(raw []byte) {
	if len(raw) > maxEventBytes {
		c.notice("event exceeded max size")
		return
	}
	env, err := nostr.ParseClientEnvelope(raw)
	if err != nil {
		xlog.D.F("server: connection %s: %v", c.id, err)
		return
	}
	switch m := env.(type) {
	case *nostr.EventEnvelope:
		c.handleEvent(m)
	case *nostr.ReqEnvelope:
		c.handleReq(m)
	case *nostr.CloseEnvelope:
		c.handleClose(m)
	}
}

// handleEvent forwards the event to the ingest channel. The channel is
// bounded, so a client that floods events experiences backpressure here —
// this goroutine (and so this connection alone) blocks until the Writer
// Task catches up, without affecting any other connection.
func (c *connection) handleEvent(m *nostr.EventEnvelope) {
	c.ingest <- m.Event
}

func (c *connection) handleReq(m *nostr.ReqEnvelope) {
	sub := &nostr.Subscription{ID: m.SubID, Filters: m.Filters}
	if err := c.state.Subscribe(sub); err != nil {
		c.notice(fmt.Sprintf("%s: %v", m.SubID, err))
		return
	}

	if _, running := c.cancels[m.SubID]; running {
		// A query from a prior REQ under this sub_id is already in flight;
		// it runs to completion and keeps delivering under the same
		// sub_id rather than being cancelled (open question, resolved in
		// favor of letting it finish).
		return
	}
	cancel := make(chan struct{})
	c.cancels[m.SubID] = cancel
	go c.runQuery(sub, cancel)
}

// runQuery runs sub's historical query through the shared query pool and
// reports back on c.queryDone once it finishes, so the event loop can
// clear cancels[sub.ID] and let a later REQ for the same sub_id start a
// fresh query. cancel governs both how long runQuery waits for a pool
// slot and, once running, when the query itself should stop.
func (c *connection) runQuery(sub *nostr.Subscription, cancel chan struct{}) {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() {
		select {
		case <-cancel:
			stop()
		case <-ctx.Done():
		}
	}()
	if err := c.pool.Run(ctx, sub, c.results, cancel); chk.E(err) {
		xlog.D.F("server: connection %s: query for sub %s never got a pool slot: %v", c.id, sub.ID, err)
	}

	select {
	case c.queryDone <- queryDone{subID: sub.ID, cancel: cancel}:
	case <-cancel:
		// Connection is shutting down or this sub_id was already closed;
		// cancels[sub.ID] has either been removed or replaced already.
	}
}

// handleQueryDone clears cancels[qd.subID] once its query has finished,
// but only if nothing has since replaced or removed that entry — a CLOSE
// or a later REQ under the same sub_id may already have done so.
func (c *connection) handleQueryDone(qd queryDone) {
	if c.cancels[qd.subID] == qd.cancel {
		delete(c.cancels, qd.subID)
	}
}

func (c *connection) handleClose(m *nostr.CloseEnvelope) {
	if cancel, ok := c.cancels[m.SubID]; ok {
		close(cancel)
		delete(c.cancels, m.SubID)
	}
	c.state.Unsubscribe(m.SubID)
}
