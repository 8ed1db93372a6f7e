// Package websocket streams job events to WebSocket clients.
package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const hubBuffer = 256

// Message is the JSON frame written to clients.
type Message struct {
	Seq       uint64    `json:"seq,omitempty"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Hub owns the connected clients. All membership changes and fan-out
// happen on the Run goroutine.
type Hub struct {
	logger *zerolog.Logger

	joins  chan *Client
	leaves chan *Client
	outbox chan Message

	mu      sync.RWMutex
	clients map[string]*Client

	evicted atomic.Uint64
}

// NewHub returns an idle hub; call Run to start it.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		joins:   make(chan *Client, 16),
		leaves:  make(chan *Client, 16),
		outbox:  make(chan Message, hubBuffer),
		clients: make(map[string]*Client),
	}
}

// Run serves joins, leaves and broadcasts until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.disconnectAll()
			return
		case c := <-h.joins:
			h.add(c)
		case c := <-h.leaves:
			h.remove(c, "WebSocket client disconnected")
		case msg := <-h.outbox:
			h.fanOut(msg)
		}
	}
}

// Register queues c to join the hub.
func (h *Hub) Register(c *Client) {
	h.joins <- c
}

// Broadcast queues msg for every client. A full queue drops msg.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.outbox <- msg:
	default:
		h.logger.Warn().Str("type", msg.Type).Msg("WebSocket broadcast queue full, message dropped")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Evicted returns how many clients were disconnected for falling behind.
func (h *Hub) Evicted() uint64 {
	return h.evicted.Load()
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info().Str("client_id", c.id).Int("total_clients", n).Msg("WebSocket client connected")
}

// remove closes c's queue once; the writer sends a close frame when it
// sees the closed queue.
func (h *Hub) remove(c *Client, msg string) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	if ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Info().Str("client_id", c.id).Int("total_clients", n).Msg(msg)
	}
}

func (h *Hub) fanOut(msg Message) {
	var slow []*Client
	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.evicted.Add(1)
		h.remove(c, "WebSocket client too slow, disconnected")
	}
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
	h.mu.Unlock()
	h.logger.Info().Uint64("evicted", h.Evicted()).Msg("WebSocket hub stopped")
}
