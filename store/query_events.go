package store

import (
	"fmt"

	"nostrelay.dev/internal/chk"
	"nostrelay.dev/internal/xlog"
	"nostrelay.dev/nostr"
)

// QueryResult is one event produced by a running historical query, tagged
// with the subscription it was produced for.
type QueryResult struct {
	SubID string
	Event *nostr.Event
}

// Query runs sub's planned query against its own read-only connection and
// streams matching events, in ascending created_at order, onto results.
// results is not closed by Query — it is expected to be a long-lived,
// connection-scoped channel shared by many queries over its lifetime, not
// one private to this call. Query returns when the query completes, on
// error, or as soon as a value is received on abandon — cancellation is
// checked between row scans, so the worst case latency to stop is one
// row's worth of work.
//
// Query opens and closes its own *sql.DB; callers do not share it with the
// writer, relying on WAL snapshot isolation rather than any lock against
// concurrent writes.
func Query(dbPath string, sub *nostr.Subscription, results chan<- QueryResult, abandon <-chan struct{}) {
	db, err := OpenReadOnly(dbPath)
	if chk.E(err) {
		return
	}
	defer func() { _ = db.Close() }()

	q := plan(sub)
	xlog.D.C(func() string { return fmt.Sprintf("store: query for sub %s: %s", sub.ID, q.sql) })

	rows, err := db.Query(q.sql, q.args...)
	if chk.E(err) {
		return
	}
	defer func() { _ = rows.Close() }()

	count := 0
	for rows.Next() {
		select {
		case <-abandon:
			xlog.D.F("store: query for sub %s abandoned after %d rows", sub.ID, count)
			return
		default:
		}

		var content string
		if err = rows.Scan(&content); chk.E(err) {
			return
		}
		e, err := unmarshalEvent(content)
		if chk.E(err) {
			continue
		}
		count++

		select {
		case results <- QueryResult{SubID: sub.ID, Event: e}:
		case <-abandon:
			xlog.D.F("store: query for sub %s abandoned after %d rows", sub.ID, count)
			return
		}
	}
	if err = rows.Err(); chk.E(err) {
		return
	}
	xlog.D.F("store: query for sub %s completed, %d rows", sub.ID, count)
}
