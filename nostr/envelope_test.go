package nostr

import "testing"

func TestParseClientEnvelopeEvent(t *testing.T) {
	raw := []byte(`["EVENT",{"id":"aa","pubkey":"bb","created_at":1,"kind":1,"tags":[],"content":"hi","sig":"cc"}]`)
	env, err := ParseClientEnvelope(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ee, ok := env.(*EventEnvelope)
	if !ok {
		t.Fatalf("expected *EventEnvelope, got %T", env)
	}
	if ee.Event.ID != "aa" {
		t.Errorf("expected id aa, got %s", ee.Event.ID)
	}
}

func TestParseClientEnvelopeReq(t *testing.T) {
	raw := []byte(`["REQ","sub1",{"kinds":[1]},{"authors":["aa"]}]`)
	env, err := ParseClientEnvelope(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	re, ok := env.(*ReqEnvelope)
	if !ok {
		t.Fatalf("expected *ReqEnvelope, got %T", env)
	}
	if re.SubID != "sub1" || len(re.Filters) != 2 {
		t.Errorf("unexpected parse: %+v", re)
	}
}

func TestParseClientEnvelopeReqNoFilters(t *testing.T) {
	raw := []byte(`["REQ","sub1"]`)
	env, err := ParseClientEnvelope(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	re := env.(*ReqEnvelope)
	if len(re.Filters) != 1 || !re.Filters[0].Empty() {
		t.Errorf("a REQ with no filters should degenerate to one empty filter, got %+v", re.Filters)
	}
}

func TestParseClientEnvelopeClose(t *testing.T) {
	raw := []byte(`["CLOSE","sub1"]`)
	env, err := ParseClientEnvelope(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ce, ok := env.(*CloseEnvelope)
	if !ok {
		t.Fatalf("expected *CloseEnvelope, got %T", env)
	}
	if ce.SubID != "sub1" {
		t.Errorf("expected sub1, got %s", ce.SubID)
	}
}

func TestParseClientEnvelopeUnknownKind(t *testing.T) {
	if _, err := ParseClientEnvelope([]byte(`["BOGUS","x"]`)); err == nil {
		t.Error("expected error for unknown envelope kind")
	}
}

func TestParseClientEnvelopeMalformed(t *testing.T) {
	if _, err := ParseClientEnvelope([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := ParseClientEnvelope([]byte(`[]`)); err == nil {
		t.Error("expected error for empty array")
	}
}

func TestMarshalEvent(t *testing.T) {
	e := &Event{ID: "aa", Kind: 1}
	b, err := MarshalEvent("sub1", e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `["EVENT","sub1",{"id":"aa","pubkey":"","created_at":0,"kind":1,"tags":null,"content":"","sig":""}]`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}
