package realtime

import (
	"encoding/json"
	"testing"

	"bazarchat/pkg/models"
)

func TestHubPublishToChatSubscribers(t *testing.T) {
	h := NewHub()
	s1 := h.Subscribe("c1", 4)
	s2 := h.Subscribe("c1", 4)
	other := h.Subscribe("c2", 4)
	defer h.Unsubscribe(s1)
	defer h.Unsubscribe(s2)
	defer h.Unsubscribe(other)

	msg := models.Message{ID: "m1", ChatID: "c1", Sender: "a", Content: models.TextContent("hi"), TS: 1}
	h.Publish(EventInsert, msg)

	for _, s := range []*Subscriber{s1, s2} {
		select {
		case payload := <-s.Ch:
			var ev Event
			if err := json.Unmarshal(payload, &ev); err != nil {
				t.Fatalf("bad payload: %v", err)
			}
			if ev.Type != EventInsert || ev.Message.ID != "m1" {
				t.Fatalf("unexpected event: %+v", ev)
			}
		default:
			t.Fatalf("subscriber did not receive the event")
		}
	}

	select {
	case <-other.Ch:
		t.Fatalf("event leaked to another chat")
	default:
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewHub()
	s := h.Subscribe("c1", 1)

	msg := models.Message{ID: "m1", ChatID: "c1", Content: models.TextContent("x")}
	h.Publish(EventInsert, msg)
	// buffer is full now; the next publish drops the subscriber
	h.Publish(EventInsert, msg)

	if n := h.SubscriberCount("c1"); n != 0 {
		t.Fatalf("slow subscriber not dropped, count=%d", n)
	}
	// channel must be closed after the drop
	<-s.Ch // buffered event
	if _, ok := <-s.Ch; ok {
		t.Fatalf("expected closed channel after drop")
	}
}

func TestHubUnsubscribeIdempotent(t *testing.T) {
	h := NewHub()
	s := h.Subscribe("c1", 1)
	h.Unsubscribe(s)
	h.Unsubscribe(s)
	h.Unsubscribe(nil)
	if n := h.SubscriberCount("c1"); n != 0 {
		t.Fatalf("expected 0 subscribers, got %d", n)
	}
}
