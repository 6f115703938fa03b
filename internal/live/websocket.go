package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/kodlidy/quest-server/internal/identity"
)

// WebSocketHandler upgrades /ws/progress connections and streams the
// player's progress events until the client disconnects.
type WebSocketHandler struct {
	feed          *Feed
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler for the feed.
func NewWebSocketHandler(feed *Feed, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		feed:          feed,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	if playerID == "" {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "player_id", playerID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed closed"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "player_id", playerID)
		}
	}()

	events, cancel := h.feed.Subscribe(playerID)
	defer cancel()
	slog.Info("Progress feed subscribed", "player_id", playerID, "ip", r.RemoteAddr)

	ctx := r.Context()

	// Reads are only consumed to detect the client going away.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			if err := h.writeJSON(ctx, ws, ev); err != nil {
				slog.Debug("Progress feed write failed", "error", err, "player_id", playerID)
				return
			}
		case <-readDone:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

// checkOrigin validates the Origin header. Development allows everything;
// production requires the configured frontend origin (or same-origin
// requests, which send no Origin header worth rejecting).
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev || h.allowedOrigin == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.Contains(h.allowedOrigin, u.Host)
}
