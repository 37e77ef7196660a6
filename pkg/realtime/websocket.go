package realtime

import (
	"net/http"
	"time"

	"bazarchat/pkg/config"
	"bazarchat/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin filtering happens in the CORS middleware before upgrade
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeChat upgrades the request to a websocket and streams events for
// chatID until the client disconnects.
func ServeChat(h *Hub, cfg config.RealtimeConfig, w http.ResponseWriter, r *http.Request, chatID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", "chat", chatID, "error", err)
		return
	}
	sub := h.Subscribe(chatID, cfg.SendBuffer)
	defer h.Unsubscribe(sub)
	defer conn.Close()

	pingInterval := time.Duration(cfg.PingInterval)
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	pongTimeout := time.Duration(cfg.PongTimeout)
	if pongTimeout <= 0 {
		pongTimeout = pingInterval * 2
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	// drain client frames so pongs and close frames are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case payload, ok := <-sub.Ch:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "dropped"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debug("ws_write_failed", "chat", chatID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
