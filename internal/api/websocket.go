package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events"
)

const (
	MaxWSConnectionsTotal = 500
	writeWait             = 5 * time.Second
)

type wsClient struct {
	conn *websocket.Conn
	ip   string
	// battle filters the feed; empty receives every battle
	battle string
}

type wsMessage struct {
	battle  string
	payload []byte
}

// WebSocketHub pushes battle events to connected renderers. It subscribes to
// each battle's event bus and never blocks the publisher: when the
// broadcast buffer is full, messages are dropped.
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan wsMessage
	register   chan *wsClient
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex

	upgrader websocket.Upgrader
	origins  []string
	metrics  *httpMetrics
	logger   zerolog.Logger
}

func NewWebSocketHub(allowedOrigins []string, logger zerolog.Logger) *WebSocketHub {
	h := &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan wsMessage, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		origins:    allowedOrigins,
		logger:     logger.With().Str("component", "WebSocketHub").Logger(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if prefix, ok := strings.CutSuffix(allowed, "*"); ok && strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	h.logger.Warn().Str("origin", origin).Msg("WebSocket connection rejected from origin")
	h.rejected("origin")
	return false
}

func (h *WebSocketHub) rejected(reason string) {
	if h.metrics != nil {
		h.metrics.connectionRejected.WithLabelValues(reason).Inc()
	}
}

func (h *WebSocketHub) updateGauge() {
	if h.metrics != nil {
		h.metrics.wsConnections.Set(float64(h.ClientCount()))
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every connection. Call it once.
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			h.updateGauge()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			h.mu.Unlock()
			h.updateGauge()
			h.logger.Debug().Str("ip", client.ip).Str("battle", client.battle).Msg("Client connected")

		case conn := <-h.unregister:
			h.drop(conn)

		case msg := <-h.broadcast:
			var failed []*websocket.Conn
			h.mu.RLock()
			for conn, client := range h.clients {
				if client.battle != "" && client.battle != msg.battle {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range failed {
				h.drop(conn)
			}
		}
	}
}

func (h *WebSocketHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
	h.updateGauge()
}

func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ID, InterestedIn and HandleEvent make the hub an events.Subscriber.
func (h *WebSocketHub) ID() string { return "websocket_hub" }

func (h *WebSocketHub) InterestedIn(string) bool { return true }

func (h *WebSocketHub) HandleEvent(e events.Event) {
	payload, err := json.Marshal(map[string]interface{}{
		"event":     e.Type(),
		"battle_id": e.BattleID(),
		"data":      e,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("event", e.Type()).Msg("Failed to encode event")
		return
	}
	select {
	case h.broadcast <- wsMessage{battle: e.BattleID(), payload: payload}:
	default:
		h.logger.Warn().Str("event", e.Type()).Msg("Broadcast buffer full, dropping event")
	}
}

// HandleWebSocket upgrades the request; ?battle=<id> limits the feed to one
// battle. Incoming messages are read and discarded to detect disconnects.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.ClientCount() >= MaxWSConnectionsTotal {
		h.rejected("ws_total_limit")
		writeError(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	select {
	case h.register <- &wsClient{conn: conn, ip: GetClientIP(r), battle: r.URL.Query().Get("battle")}:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
