package nostr

import (
	"encoding/json"
	"fmt"
)

// Envelope kinds, the first element of every wire-level JSON array.
const (
	EnvelopeEvent  = "EVENT"
	EnvelopeReq    = "REQ"
	EnvelopeClose  = "CLOSE"
	EnvelopeNotice = "NOTICE"
)

// EventEnvelope is a client->relay ["EVENT", <event>] message.
type EventEnvelope struct {
	Event *Event
}

// ReqEnvelope is a client->relay ["REQ", <sub_id>, <filter>...] message.
type ReqEnvelope struct {
	SubID   string
	Filters []*Filter
}

// CloseEnvelope is a client->relay ["CLOSE", <sub_id>] message.
type CloseEnvelope struct {
	SubID string
}

// ParseClientEnvelope decodes a raw client->relay message into one of
// *EventEnvelope, *ReqEnvelope, or *CloseEnvelope. Any other first element,
// or a malformed array, is reported as an error — callers decide whether
// that warrants a NOTICE.
func ParseClientEnvelope(raw []byte) (any, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty envelope")
	}
	var kind string
	if err := json.Unmarshal(parts[0], &kind); err != nil {
		return nil, fmt.Errorf("malformed envelope kind: %w", err)
	}

	switch kind {
	case EnvelopeEvent:
		if len(parts) != 2 {
			return nil, fmt.Errorf("EVENT: expected 2 elements, got %d", len(parts))
		}
		ev := &Event{}
		if err := json.Unmarshal(parts[1], ev); err != nil {
			return nil, fmt.Errorf("EVENT: %w", err)
		}
		return &EventEnvelope{Event: ev}, nil

	case EnvelopeReq:
		if len(parts) < 2 {
			return nil, fmt.Errorf("REQ: expected at least 2 elements, got %d", len(parts))
		}
		var subID string
		if err := json.Unmarshal(parts[1], &subID); err != nil {
			return nil, fmt.Errorf("REQ: sub_id: %w", err)
		}
		filters := make([]*Filter, 0, len(parts)-2)
		for _, p := range parts[2:] {
			f := &Filter{}
			if err := json.Unmarshal(p, f); err != nil {
				return nil, fmt.Errorf("REQ: filter: %w", err)
			}
			filters = append(filters, f)
		}
		if len(filters) == 0 {
			filters = append(filters, &Filter{})
		}
		return &ReqEnvelope{SubID: subID, Filters: filters}, nil

	case EnvelopeClose:
		if len(parts) != 2 {
			return nil, fmt.Errorf("CLOSE: expected 2 elements, got %d", len(parts))
		}
		var subID string
		if err := json.Unmarshal(parts[1], &subID); err != nil {
			return nil, fmt.Errorf("CLOSE: sub_id: %w", err)
		}
		return &CloseEnvelope{SubID: subID}, nil

	default:
		return nil, fmt.Errorf("unknown envelope kind %q", kind)
	}
}

// MarshalEvent encodes a relay->client ["EVENT", <sub_id>, <event>]
// delivery — used for both historical and live matches.
func MarshalEvent(subID string, e *Event) ([]byte, error) {
	return json.Marshal([3]any{EnvelopeEvent, subID, e})
}

// MarshalNotice encodes a NOTICE message.
func MarshalNotice(message string) ([]byte, error) {
	return json.Marshal([2]any{EnvelopeNotice, message})
}
