package ingest

import (
	"bazarchat/pkg/models"
	"bazarchat/pkg/realtime"
)

// hub receives post-apply side effects. Nil until SetHub is called, in
// which case fanout is a no-op (useful in tests).
var hub *realtime.Hub

// SetHub wires the realtime hub that receives post-apply events.
func SetHub(h *realtime.Hub) { hub = h }

// FanoutInsert announces a newly stored message to chat subscribers.
func FanoutInsert(m models.Message) {
	if hub != nil {
		hub.Publish(realtime.EventInsert, m)
	}
}

// FanoutUpdate announces a new version of an existing message.
func FanoutUpdate(m models.Message) {
	if hub != nil {
		hub.Publish(realtime.EventUpdate, m)
	}
}
