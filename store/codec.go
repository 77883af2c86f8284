package store

import (
	"encoding/json"

	"nostrelay.dev/nostr"
)

// marshalEvent and unmarshalEvent convert between an Event and the JSON
// blob kept in the event table's content column. The wire-level codec
// used between client and relay is an external collaborator's concern;
// this is purely the store's own at-rest representation, chosen so a row
// can be turned back into an Event without a second round-trip to any
// other table.
func marshalEvent(e *nostr.Event) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalEvent(content string) (*nostr.Event, error) {
	e := &nostr.Event{}
	if err := json.Unmarshal([]byte(content), e); err != nil {
		return nil, err
	}
	return e, nil
}
