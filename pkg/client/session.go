package client

import (
	"context"
	"sync"
	"time"

	"bazarchat/pkg/logger"
	"bazarchat/pkg/models"
	"bazarchat/pkg/quickreply"
	"bazarchat/pkg/realtime"
	"bazarchat/pkg/utils"
)

// SessionParams describes the chat view being opened: the viewer, the
// counterpart and the optional listing the conversation started from.
type SessionParams struct {
	Viewer        string
	PeerID        string
	AdID          string
	AdTitle       string
	AdCategory    string
	AdSubCategory string
}

// ChatSession drives one open chat: initial sync, live updates,
// optimistic sends and read-marking. All state flows through the
// injected StoreClient and the shared MessageCache.
type ChatSession struct {
	store  StoreClient
	cache  *MessageCache
	params SessionParams

	mu      sync.Mutex
	chat    models.Conversation
	compose string
	started bool

	// OnIncoming fires for live messages authored by the counterpart
	// (the audio-cue hook). OnError receives send failures after the
	// optimistic rollback completed.
	OnIncoming func(models.Message)
	OnError    func(error)

	unsubscribe func()
}

// NewSession builds a session over an injected store client and cache.
func NewSession(store StoreClient, cache *MessageCache, params SessionParams) *ChatSession {
	return &ChatSession{store: store, cache: cache, params: params}
}

func (s *ChatSession) key() CacheKey {
	return CacheKey{ChatID: s.chat.ID, Viewer: s.params.Viewer}
}

// Chat returns the resolved conversation. Valid after Start.
func (s *ChatSession) Chat() models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat
}

// Start resolves the conversation, loads its history into the cache,
// issues a best-effort read-mark and subscribes to live events.
func (s *ChatSession) Start(ctx context.Context) error {
	chat, err := s.store.ResolveChat(ctx, s.params.PeerID, s.params.AdID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.chat = chat
	s.started = true
	s.mu.Unlock()

	msgs, err := s.store.ListMessages(ctx, chat.ID)
	if err != nil {
		return err
	}
	s.cache.Set(s.key(), msgs)

	if hasUnreadFrom(msgs, s.params.Viewer) {
		s.markReadAsync()
	}

	cancel, err := s.store.Subscribe(ctx, chat.ID, s.handleEvent)
	if err != nil {
		// degraded mode: the view keeps whatever was fetched
		logger.Warn("chat_subscribe_failed", "chat", chat.ID, "error", err)
		return nil
	}
	s.unsubscribe = cancel
	return nil
}

// Close tears down the live subscription.
func (s *ChatSession) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// handleEvent merges a live event into the cache and triggers the
// counterpart side effects.
func (s *ChatSession) handleEvent(ev realtime.Event) {
	s.cache.Merge(s.key(), ev.Message)
	if ev.Type == realtime.EventInsert && ev.Message.Sender != s.params.Viewer {
		if s.OnIncoming != nil {
			s.OnIncoming(ev.Message)
		}
		if !ev.Message.IsRead {
			s.markReadAsync()
		}
	}
}

// markReadAsync issues a fire-and-forget read-mark; failures are
// logged and otherwise ignored.
func (s *ChatSession) markReadAsync() {
	chatID := s.Chat().ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.store.MarkRead(ctx, chatID); err != nil {
			logger.Debug("mark_read_failed", "chat", chatID, "error", err)
		}
	}()
}

// ComposeText returns the current compose box contents.
func (s *ChatSession) ComposeText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compose
}

// SetComposeText updates the compose box contents.
func (s *ChatSession) SetComposeText(text string) {
	s.mu.Lock()
	s.compose = text
	s.mu.Unlock()
}

// QuickReplies returns canned suggestions for the compose box. Only an
// empty chat shows them.
func (s *ChatSession) QuickReplies() []string {
	if s.cache.Len(s.key()) > 0 {
		return nil
	}
	return quickreply.Suggestions(s.params.AdCategory, s.params.AdSubCategory)
}

// contextLabel frames a message with the listing it concerns.
func (s *ChatSession) contextLabel() string {
	if s.params.AdTitle == "" {
		return ""
	}
	return "По объявлению: " + s.params.AdTitle
}

// SendCompose sends the compose box contents as a text message.
func (s *ChatSession) SendCompose(ctx context.Context) (models.Message, error) {
	return s.Send(ctx, models.TextContent(s.ComposeText()))
}

// Send performs an optimistic send: a temporary message lands in the
// cache and the compose box clears before the store call. On success
// the temporary row is overwritten in place with the confirmed record;
// on failure it is removed and the compose text restored for retry.
func (s *ChatSession) Send(ctx context.Context, content models.Content) (models.Message, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return models.Message{}, ErrSessionNotStarted
	}
	prevCompose := s.compose
	s.compose = ""
	chat := s.chat
	s.mu.Unlock()

	tmp := models.Message{
		ID:      utils.NewTempMessageID(),
		ChatID:  chat.ID,
		Sender:  s.params.Viewer,
		Content: content,
		Context: s.contextLabel(),
		AdID:    s.params.AdID,
		TS:      time.Now().UTC().UnixNano(),
	}
	key := s.key()
	s.cache.Append(key, tmp)

	stored, err := s.store.SendMessage(ctx, chat.ID, tmp)
	if err != nil {
		s.cache.RemoveByID(key, tmp.ID)
		s.mu.Lock()
		s.compose = prevCompose
		s.mu.Unlock()
		if s.OnError != nil {
			s.OnError(err)
		}
		return models.Message{}, err
	}
	// the live channel may have delivered the confirmed row already;
	// Confirm drops the temp row in that case instead of duplicating
	s.cache.Confirm(key, tmp.ID, stored)
	return stored, nil
}

func hasUnreadFrom(msgs []models.Message, viewer string) bool {
	for _, m := range msgs {
		if m.Sender != viewer && !m.IsRead {
			return true
		}
	}
	return false
}
