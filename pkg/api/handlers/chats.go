package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bazarchat/pkg/auth"
	"bazarchat/pkg/config"
	"bazarchat/pkg/ingest"
	"bazarchat/pkg/logger"
	"bazarchat/pkg/models"
	"bazarchat/pkg/realtime"
	"bazarchat/pkg/store"
	"bazarchat/pkg/utils"
	"bazarchat/pkg/validation"

	"github.com/gorilla/mux"
)

var (
	hub    *realtime.Hub
	rtCfg  config.RealtimeConfig
	queued bool
)

// RegisterChats registers all chat-related HTTP routes on the router.
func RegisterChats(r *mux.Router, h *realtime.Hub, rc config.RealtimeConfig, queuedMode bool) {
	hub = h
	rtCfg = rc
	queued = queuedMode

	r.HandleFunc("/chats", resolveChat).Methods(http.MethodPost)
	r.HandleFunc("/chats", listChats).Methods(http.MethodGet)
	r.HandleFunc("/chats/{id}", getChat).Methods(http.MethodGet)
	r.HandleFunc("/chats/{id}/messages", createChatMessage).Methods(http.MethodPost)
	r.HandleFunc("/chats/{id}/messages", listChatMessages).Methods(http.MethodGet)
	r.HandleFunc("/chats/{id}/read", markChatRead).Methods(http.MethodPost)
	r.HandleFunc("/chats/{id}/events", chatEvents).Methods(http.MethodGet)
}

// loadChatForViewer resolves the viewer, loads the chat and enforces
// participation. On failure the response is already written.
func loadChatForViewer(w http.ResponseWriter, r *http.Request) (models.Conversation, string, bool) {
	viewer, code, msg := auth.ResolveViewer(r)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return models.Conversation{}, "", false
	}
	chatID := mux.Vars(r)["id"]
	c, err := store.GetConversation(chatID)
	if errors.Is(err, store.ErrNotFound) {
		utils.JSONError(w, http.StatusNotFound, "chat not found")
		return models.Conversation{}, "", false
	}
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return models.Conversation{}, "", false
	}
	if !c.HasParticipant(viewer) {
		utils.JSONError(w, http.StatusForbidden, "not a participant")
		return models.Conversation{}, "", false
	}
	return c, viewer, true
}

// resolveChat handles POST /chats: find or create the single chat
// between the viewer and peer_id.
func resolveChat(w http.ResponseWriter, r *http.Request) {
	viewer, code, msg := auth.ResolveViewer(r)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	var req struct {
		PeerID string `json:"peer_id"`
		AdID   string `json:"ad_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.PeerID == "" {
		utils.JSONError(w, http.StatusBadRequest, "peer_id is required")
		return
	}
	if req.PeerID == viewer {
		utils.JSONError(w, http.StatusBadRequest, "cannot open a chat with yourself")
		return
	}
	c, created, err := store.ResolveConversation(viewer, req.PeerID, req.AdID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	_ = utils.JSONWrite(w, status, c)
}

// listChats handles GET /chats for the viewer, most recent first.
func listChats(w http.ResponseWriter, r *http.Request) {
	viewer, code, msg := auth.ResolveViewer(r)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	chats, err := store.ListConversations(viewer)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if chats == nil {
		chats = []models.Conversation{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Chats []models.Conversation `json:"chats"`
	}{Chats: chats})
}

// getChat handles GET /chats/{id}.
func getChat(w http.ResponseWriter, r *http.Request) {
	c, _, ok := loadChatForViewer(w, r)
	if !ok {
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, c)
}

// createChatMessage handles POST /chats/{id}/messages. The body carries
// the content (bare string or tagged object) plus an optional context
// label. The stored message is echoed back.
func createChatMessage(w http.ResponseWriter, r *http.Request) {
	c, viewer, ok := loadChatForViewer(w, r)
	if !ok {
		return
	}
	var req struct {
		Content models.Content `json:"content"`
		Context string         `json:"context"`
		AdID    string         `json:"ad_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m := models.Message{
		ID:      utils.NewMessageID(),
		ChatID:  c.ID,
		Sender:  viewer,
		Content: req.Content,
		Context: req.Context,
		AdID:    req.AdID,
		TS:      time.Now().UTC().UnixNano(),
	}
	if err := validation.ValidateMessage(m); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ingest.Submit(ingest.OpCreate, m); err != nil {
		if errors.Is(err, ingest.ErrQueueFull) {
			utils.JSONError(w, http.StatusTooManyRequests, "server busy, retry later")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("message_accepted", "chat", c.ID, "msg_id", m.ID, "queued", queued)
	status := http.StatusCreated
	if queued {
		status = http.StatusAccepted
	}
	_ = utils.JSONWrite(w, status, m)
}

// listChatMessages handles GET /chats/{id}/messages?limit=N in creation
// order, oldest first.
func listChatMessages(w http.ResponseWriter, r *http.Request) {
	c, _, ok := loadChatForViewer(w, r)
	if !ok {
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	msgs, err := store.ListMessages(c.ID, limit)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		ChatID   string           `json:"chat_id"`
		Messages []models.Message `json:"messages"`
	}{ChatID: c.ID, Messages: msgs})
}

// markChatRead handles POST /chats/{id}/read: flips the read flag on
// every unread message addressed to the viewer and fans the new
// versions out to subscribers.
func markChatRead(w http.ResponseWriter, r *http.Request) {
	c, viewer, ok := loadChatForViewer(w, r)
	if !ok {
		return
	}
	flipped, err := store.MarkRead(c.ID, viewer)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, m := range flipped {
		ingest.FanoutUpdate(m)
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Updated int `json:"updated"`
	}{Updated: len(flipped)})
}

// chatEvents handles GET /chats/{id}/events: upgrades to a websocket
// and streams insert/update events for the chat.
func chatEvents(w http.ResponseWriter, r *http.Request) {
	c, _, ok := loadChatForViewer(w, r)
	if !ok {
		return
	}
	if hub == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "realtime disabled")
		return
	}
	realtime.ServeChat(hub, rtCfg, w, r, c.ID)
}
