package api

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub maintains active WebSocket connections and broadcasts trade and
// book events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	closed  bool
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	if !h.closed {
		h.clients[client] = true
	}
	h.mu.Unlock()
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Client buffer full, skip
		}
	}
}

// Stop disconnects every client and refuses new registrations.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

func (c *Client) WritePump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		// Clients only listen; drain until the connection drops.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
