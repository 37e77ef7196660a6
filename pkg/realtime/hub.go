package realtime

import (
	"encoding/json"
	"sync"

	"bazarchat/pkg/logger"
	"bazarchat/pkg/models"
)

// EventInsert announces a newly stored message, EventUpdate a new
// version of an existing one (currently only the read flag flip).
const (
	EventInsert = "insert"
	EventUpdate = "update"
)

// Event is the wire payload pushed to chat subscribers.
type Event struct {
	Type    string         `json:"type"`
	Message models.Message `json:"message"`
}

// Subscriber receives serialized events for one chat. Slow subscribers
// whose buffer is full get dropped rather than blocking the hub.
type Subscriber struct {
	ChatID string
	Ch     chan []byte
}

// Hub fans chat events out to websocket subscribers grouped by chat id.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: map[string]map[*Subscriber]struct{}{}}
}

// Subscribe registers a new subscriber for chatID with the given send
// buffer size.
func (h *Hub) Subscribe(chatID string, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 16
	}
	s := &Subscriber{ChatID: chatID, Ch: make(chan []byte, buffer)}
	h.mu.Lock()
	m, ok := h.subs[chatID]
	if !ok {
		m = map[*Subscriber]struct{}{}
		h.subs[chatID] = m
	}
	m[s] = struct{}{}
	h.mu.Unlock()
	logger.Debug("realtime_subscribed", "chat", chatID)
	return s
}

// Unsubscribe removes the subscriber and closes its channel.
func (h *Hub) Unsubscribe(s *Subscriber) {
	if s == nil {
		return
	}
	h.mu.Lock()
	if m, ok := h.subs[s.ChatID]; ok {
		if _, present := m[s]; present {
			delete(m, s)
			close(s.Ch)
		}
		if len(m) == 0 {
			delete(h.subs, s.ChatID)
		}
	}
	h.mu.Unlock()
}

// Publish delivers an event to every subscriber of the message's chat.
func (h *Hub) Publish(eventType string, msg models.Message) {
	payload, err := json.Marshal(Event{Type: eventType, Message: msg})
	if err != nil {
		logger.Error("realtime_marshal_failed", "error", err)
		return
	}
	var dropped []*Subscriber
	h.mu.RLock()
	for s := range h.subs[msg.ChatID] {
		select {
		case s.Ch <- payload:
		default:
			dropped = append(dropped, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range dropped {
		logger.Warn("realtime_dropped_slow_subscriber", "chat", s.ChatID)
		h.Unsubscribe(s)
	}
}

// SubscriberCount returns the number of active subscribers for a chat.
func (h *Hub) SubscriberCount(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[chatID])
}
