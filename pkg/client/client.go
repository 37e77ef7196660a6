package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bazarchat/pkg/logger"
	"bazarchat/pkg/models"
	"bazarchat/pkg/realtime"

	"github.com/gorilla/websocket"
)

// StoreClient is the capability surface a chat session needs: resolve,
// query, insert, read-mark and subscribe. Injected explicitly so the
// session core stays testable without a live backend.
type StoreClient interface {
	ResolveChat(ctx context.Context, peerID, adID string) (models.Conversation, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
	SendMessage(ctx context.Context, chatID string, m models.Message) (models.Message, error)
	MarkRead(ctx context.Context, chatID string) (int, error)
	Subscribe(ctx context.Context, chatID string, onEvent func(realtime.Event)) (func(), error)
}

// HTTPClient talks to a bazarchat server over its v1 API and websocket
// event stream.
type HTTPClient struct {
	BaseURL   string
	APIKey    string
	UserID    string
	Signature string

	HTTP *http.Client
}

// NewHTTPClient builds a client for the given server and identity.
func NewHTTPClient(baseURL, apiKey, userID, signature string) *HTTPClient {
	return &HTTPClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		APIKey:    apiKey,
		UserID:    userID,
		Signature: signature,
		HTTP:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req.Header)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, e.Error)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *HTTPClient) setAuthHeaders(h http.Header) {
	if c.APIKey != "" {
		h.Set("X-API-Key", c.APIKey)
	}
	if c.UserID != "" {
		h.Set("X-User-ID", c.UserID)
	}
	if c.Signature != "" {
		h.Set("X-User-Signature", c.Signature)
	}
}

// ResolveChat finds or creates the single chat with peerID.
func (c *HTTPClient) ResolveChat(ctx context.Context, peerID, adID string) (models.Conversation, error) {
	var conv models.Conversation
	err := c.do(ctx, http.MethodPost, "/v1/chats", map[string]string{
		"peer_id": peerID,
		"ad_id":   adID,
	}, &conv)
	return conv, err
}

// ListMessages fetches all messages of a chat, oldest first.
func (c *HTTPClient) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/chats/"+chatID+"/messages", nil, &out)
	return out.Messages, err
}

// SendMessage inserts a message and returns the stored record.
func (c *HTTPClient) SendMessage(ctx context.Context, chatID string, m models.Message) (models.Message, error) {
	var stored models.Message
	err := c.do(ctx, http.MethodPost, "/v1/chats/"+chatID+"/messages", map[string]any{
		"content": m.Content,
		"context": m.Context,
		"ad_id":   m.AdID,
	}, &stored)
	return stored, err
}

// MarkRead flips unread counterpart messages and returns the count.
func (c *HTTPClient) MarkRead(ctx context.Context, chatID string) (int, error) {
	var out struct {
		Updated int `json:"updated"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/chats/"+chatID+"/read", nil, &out)
	return out.Updated, err
}

// Subscribe opens the chat's websocket event stream and invokes onEvent
// for every insert/update until the returned cancel func is called or
// the connection drops. There is no automatic resubscription.
func (c *HTTPClient) Subscribe(ctx context.Context, chatID string, onEvent func(realtime.Event)) (func(), error) {
	u, err := url.Parse(c.BaseURL + "/v1/chats/" + chatID + "/events")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	hdr := http.Header{}
	c.setAuthHeaders(hdr)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), hdr)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	done := make(chan struct{})
	go func() {
		defer conn.Close()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-done:
				default:
					logger.Debug("subscription_closed", "chat", chatID, "error", err)
				}
				return
			}
			var ev realtime.Event
			if err := json.Unmarshal(payload, &ev); err != nil {
				logger.Warn("subscription_bad_event", "chat", chatID, "error", err)
				continue
			}
			onEvent(ev)
		}
	}()
	cancel := func() {
		close(done)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
	return cancel, nil
}
