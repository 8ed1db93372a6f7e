package handlers

import (
	"net/http"

	"github.com/agentstation/recon/internal/server/events"
	ws "github.com/agentstation/recon/internal/server/websocket"
)

// HandleWebSocket handles WebSocket connections at /api/v1/events/ws.
// @Summary WebSocket job events
// @Description WebSocket connection streaming job.completed and job.failed events
// @Tags events
// @Success 101 "Switching Protocols"
// @Router /api/v1/events/ws [get].
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register(client)

	h.broker.Publish(events.ClientConnected, map[string]any{
		"client_id": client.ID(),
		"transport": "websocket",
	})

	go client.Serve()
}

// HandleSSE handles Server-Sent Events at /api/v1/events/stream.
// @Summary SSE job events
// @Description Server-Sent Events stream of job.completed and job.failed events
// @Tags events
// @Produce text/event-stream
// @Success 200 "Event stream"
// @Router /api/v1/events/stream [get].
func (h *Handlers) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.sseBroadcaster.ServeHTTP(w, r)
}
