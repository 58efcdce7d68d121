// Package dashboard pushes a periodic JSON state snapshot to every
// connected WebSocket client: bot status, total equity, per-pair
// position and grid-level state, pool figures, and halt bits.
package dashboard

import (
	"context"
	"sync"

	"gridbot/internal/core"
)

// client is one connected WebSocket subscriber.
type client struct {
	id     string
	send   chan Message
	mu     sync.Mutex
	closed bool
}

func newClient(id string) *client {
	return &client{id: id, send: make(chan Message, 16)}
}

func (c *client) Send(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false // slow client, drop the frame rather than block the broadcaster
	}
}

func (c *client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// hub fans a broadcast out to every registered client, dropping any
// client whose send buffer is full instead of blocking the tick loop.
type hub struct {
	clients    map[*client]bool
	broadcast  chan Message
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
	logger     core.ILogger
}

func newHub(logger core.ILogger) *hub {
	return &hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Message, 16),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     logger,
	}
}

func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.Close()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			list := make([]*client, 0, len(h.clients))
			for c := range h.clients {
				list = append(list, c)
			}
			h.mu.RUnlock()
			for _, c := range list {
				if !c.Send(msg) {
					select {
					case h.unregister <- c:
					default:
					}
				}
			}
		}
	}
}

func (h *hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("dashboard broadcast channel full, dropping frame", "type", msg.Type)
	}
}

func (h *hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
