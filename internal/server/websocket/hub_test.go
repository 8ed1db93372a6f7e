package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	logger := zerolog.Nop()
	hub := NewHub(&logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub, cancel
}

func TestHubRegisterAndBroadcast(t *testing.T) {
	hub, _ := runHub(t)

	client := NewClient(hub, nil)
	require.NotEmpty(t, client.ID())
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(Message{Seq: 1, Type: "job.completed", Data: map[string]any{"n": 1}})
	hub.Broadcast(Message{Seq: 2, Type: "job.failed", Data: map[string]any{"n": 2}})

	for i, want := range []string{"job.completed", "job.failed"} {
		select {
		case msg := <-client.send:
			assert.Equal(t, want, msg.Type)
			assert.Equal(t, uint64(i+1), msg.Seq)
		case <-time.After(time.Second):
			t.Fatalf("no %s message", want)
		}
	}
}

func TestHubUnregister(t *testing.T) {
	hub, _ := runHub(t)

	client := NewClient(hub, nil)
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.leaves <- client
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-client.send
	assert.False(t, open, "send channel should be closed")

	// A second leave for the same client is ignored.
	hub.leaves <- client
	hub.Broadcast(Message{Type: "job.completed"})
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubDropsSlowClient(t *testing.T) {
	hub, _ := runHub(t)

	client := NewClient(hub, nil)
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// Nothing reads client.send, so the buffer fills and the client is dropped.
	for range cap(client.send) + 1 {
		hub.outbox <- Message{Type: "job.completed"}
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), hub.Evicted())
}

func TestHubShutdownDisconnectsClients(t *testing.T) {
	hub, cancel := runHub(t)

	clients := []*Client{NewClient(hub, nil), NewClient(hub, nil)}
	for _, c := range clients {
		hub.Register(c)
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.NotEqual(t, clients[0].ID(), clients[1].ID())

	cancel()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	for _, c := range clients {
		_, open := <-c.send
		assert.False(t, open)
	}
}
