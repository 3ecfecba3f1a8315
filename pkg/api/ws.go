package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/jihwankim/aegis/pkg/logging"
	"github.com/jihwankim/aegis/pkg/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from arbitrary origins in demo deployments
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub fans orchestrator events out to connected WebSocket clients
type Hub struct {
	logger *logging.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan orchestrator.Event
}

// NewHub creates an empty hub
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// HandleWS upgrades the connection and registers the client
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan orchestrator.Event, 16)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("WebSocket client connected", "clients", n)

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Forward pushes orchestrator events to all clients until the context is
// cancelled
func (h *Hub) Forward(ctx context.Context, events <-chan orchestrator.Event) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case event, ok := <-events:
			if !ok {
				h.closeAll()
				return
			}
			h.broadcast(event)
		}
	}
}

func (h *Hub) broadcast(event orchestrator.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			// Slow client: drop it rather than block the feed
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for event := range c.send {
		if err := c.conn.WriteJSON(event); err != nil {
			h.remove(c)
			return
		}
	}
}

// readLoop drains inbound frames so close handshakes and pings are
// processed; clients are not expected to send data
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		_ = c.conn.Close()
	}
}
