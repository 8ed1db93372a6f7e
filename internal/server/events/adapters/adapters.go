// Package adapters subscribes the streaming transports to the event
// broker.
package adapters

import (
	"strconv"

	"github.com/agentstation/recon/internal/server/events"
	"github.com/agentstation/recon/internal/server/sse"
	ws "github.com/agentstation/recon/internal/server/websocket"
)

// Subscriber names used with events.Broker.Subscribe.
const (
	WebSocketName = "websocket"
	SSEName       = "sse"
)

// Attach subscribes both transports to broker.
func Attach(broker *events.Broker, hub *ws.Hub, stream *sse.Broadcaster) {
	broker.Subscribe(WebSocketName, WebSocket(hub))
	broker.Subscribe(SSEName, SSE(stream))
}

// WebSocket forwards events to hub clients as JSON frames.
func WebSocket(hub *ws.Hub) events.Subscriber {
	return events.SubscriberFunc(func(e events.Event) error {
		hub.Broadcast(ws.Message{
			Seq:       e.Seq,
			Type:      string(e.Kind),
			Timestamp: e.At,
			Data:      e.Data,
		})
		return nil
	})
}

// SSE forwards events to stream clients. The broker sequence number
// becomes the SSE id.
func SSE(stream *sse.Broadcaster) events.Subscriber {
	return events.SubscriberFunc(func(e events.Event) error {
		stream.Broadcast(sse.Event{
			Event: string(e.Kind),
			ID:    strconv.FormatUint(e.Seq, 10),
			Data:  e.Data,
		})
		return nil
	})
}
