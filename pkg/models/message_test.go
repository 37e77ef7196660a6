package models

import (
	"encoding/json"
	"testing"
)

func TestContentUnmarshalBareString(t *testing.T) {
	var c Content
	if err := json.Unmarshal([]byte(`"привет"`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Kind != ContentText || c.Text != "привет" {
		t.Fatalf("bare string should become text content: %+v", c)
	}
}

func TestContentUnmarshalTaggedVariants(t *testing.T) {
	var c Content
	raw := `{"kind":"ad_inquiry","text":"Ещё актуально?","ad_id":"ad-1","ad_title":"Велосипед"}`
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Kind != ContentAdInquiry || c.AdID != "ad-1" {
		t.Fatalf("unexpected content: %+v", c)
	}

	raw = `{"kind":"ride_booking","ride_id":"r1","seats":2}`
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Kind != ContentRideBooking || c.Seats != 2 {
		t.Fatalf("unexpected content: %+v", c)
	}

	// objects without a kind default to text
	raw = `{"text":"hi"}`
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Kind != ContentText {
		t.Fatalf("missing kind should default to text, got %q", c.Kind)
	}
}

func TestCanonicalPair(t *testing.T) {
	lo, hi := CanonicalPair("bob", "alice")
	if lo != "alice" || hi != "bob" {
		t.Fatalf("expected alice/bob, got %s/%s", lo, hi)
	}
	lo2, hi2 := CanonicalPair("alice", "bob")
	if lo2 != lo || hi2 != hi {
		t.Fatalf("pair ordering must be argument-order independent")
	}
}

func TestConversationParticipants(t *testing.T) {
	c := Conversation{UserA: "a", UserB: "b"}
	if !c.HasParticipant("a") || !c.HasParticipant("b") || c.HasParticipant("x") {
		t.Fatalf("participant check broken")
	}
	if c.Counterpart("a") != "b" || c.Counterpart("b") != "a" {
		t.Fatalf("counterpart lookup broken")
	}
}
