package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/internal/hub"
	"chatrelay/pkg/types"
)

const (
	handshakeTimeout = 10 * time.Second
	pongWait         = 60 * time.Second
	pingInterval     = 30 * time.Second
	maxInboundSize   = 8192
)

// Handler upgrades HTTP requests to WebSocket sessions and pumps decoded
// client events into the hub.
type Handler struct {
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket handler bound to the hub. When
// allowedOrigin is non-empty, cross-origin handshakes from any other
// origin are refused; an empty value allows all origins.
func NewHandler(h *hub.Hub, allowedOrigin string) *Handler {
	return &Handler{
		hub: h,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// HandleWebSocket serves the /ws endpoint.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	conn := NewConnection(wsConn)
	session, err := h.hub.Connect(conn)
	if err != nil {
		log.Printf("[ws] hub rejected connection: %v", err)
		_ = conn.Close()
		return
	}

	go h.readLoop(conn, session)
}

// readLoop reads client frames until the connection dies, forwarding
// decoded events to the hub. Heartbeat follows the usual gorilla pattern:
// a ping ticker on the write side, a pong handler extending the read
// deadline.
func (h *Handler) readLoop(conn *Connection, session *hub.Session) {
	defer func() {
		h.hub.Disconnect(session)
		_ = conn.Close()
	}()

	conn.conn.SetReadLimit(maxInboundSize)
	if err := conn.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		msgType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		// Inbound payloads are untrusted; malformed JSON is dropped.
		var ev types.Inbound
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("[ws] discarding malformed event: %v", err)
			continue
		}
		h.hub.Inbound(session, ev)
	}
}
