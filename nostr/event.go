// Package nostr holds the wire-level data model: events, tags, filters,
// subscriptions, and the JSON envelopes exchanged with clients. Signature
// verification and the low-level WebSocket/HTTP framing are external
// collaborators; by the time an Event reaches this package's callers it is
// assumed already validated.
package nostr

import "fmt"

// Tag is one tag entry: an ordered sequence of strings whose first element
// is the tag name.
type Tag []string

// Name returns the tag's first element, or "" for an empty tag.
func (t Tag) Name() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the tag's second element, or "" if absent.
func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

// Event is the atomic unit persisted and relayed. ID, Pubkey and Sig are
// lowercase hex strings as they appear over the wire; CreatedAt is seconds
// since epoch.
type Event struct {
	ID        string `json:"id"`
	Pubkey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      []Tag  `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// Replaceable reports whether this event's kind makes it subject to the
// replaceable-event hiding rule (only the newest per author is visible).
func (e *Event) Replaceable() bool {
	return e.Kind == 0 || e.Kind == 3
}

// TagRefs returns the referenced-event hashes (from "e" tags) and
// referenced pubkeys (from "p" tags), in the order they appear. A tag with
// fewer than two elements, or whose value contains a non-hex character, is
// silently skipped; malformed tag hex does not fail the event itself.
func (e *Event) TagRefs() (eventRefs, pubkeyRefs []string) {
	for _, t := range e.Tags {
		if len(t) < 2 {
			continue
		}
		switch t.Name() {
		case "e":
			if isHex(t.Value()) {
				eventRefs = append(eventRefs, t.Value())
			}
		case "p":
			if isHex(t.Value()) {
				pubkeyRefs = append(pubkeyRefs, t.Value())
			}
		}
	}
	return
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// String renders a short diagnostic form for logging.
func (e *Event) String() string {
	id := e.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("event(%s kind=%d author=%s…)", id, e.Kind, shortHex(e.Pubkey))
}

func shortHex(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
