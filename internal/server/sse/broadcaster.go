// Package sse streams job events to clients as Server-Sent Events.
//
// Events carrying a numeric id are kept in a short history. A client that
// reconnects with a Last-Event-ID header receives the retained events
// after that id before any new ones.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	streamBuffer = 256
	historySize  = 64

	// Reconnect delay suggested to clients, in milliseconds.
	retryMillis = 3000
)

// Event is one Server-Sent Event.
type Event struct {
	Event string `json:"event,omitempty"`
	ID    string `json:"id,omitempty"`
	Data  any    `json:"data"`
}

func (e Event) seq() (uint64, bool) {
	n, err := strconv.ParseUint(e.ID, 10, 64)
	return n, err == nil
}

type stream struct {
	ch     chan Event
	replay bool
	after  uint64
}

// Broadcaster fans events out to connected SSE streams.
type Broadcaster struct {
	logger *zerolog.Logger

	joins  chan *stream
	leaves chan *stream
	events chan Event
	done   chan struct{}

	mu      sync.RWMutex
	streams map[*stream]struct{}
	history []Event
}

// NewBroadcaster returns an idle broadcaster; call Run to start it.
func NewBroadcaster(logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		logger:  logger,
		joins:   make(chan *stream, 16),
		leaves:  make(chan *stream, 16),
		events:  make(chan Event, streamBuffer),
		done:    make(chan struct{}),
		streams: make(map[*stream]struct{}),
	}
}

// Run serves joins, leaves and broadcasts until ctx is done, then ends
// every stream.
func (b *Broadcaster) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for s := range b.streams {
				close(s.ch)
			}
			clear(b.streams)
			b.mu.Unlock()
			b.logger.Info().Msg("SSE broadcaster stopped")
			return
		case s := <-b.joins:
			b.join(s)
		case s := <-b.leaves:
			b.leave(s)
		case e := <-b.events:
			b.fanOut(e)
		}
	}
}

// Broadcast queues e for every stream. A full queue drops e.
func (b *Broadcaster) Broadcast(e Event) {
	select {
	case b.events <- e:
	default:
		b.logger.Warn().Str("event", e.Event).Msg("SSE broadcast queue full, event dropped")
	}
}

// ClientCount returns the number of open streams.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.streams)
}

func (b *Broadcaster) join(s *stream) {
	b.mu.Lock()
	b.streams[s] = struct{}{}
	n := len(b.streams)
	var missed []Event
	if s.replay {
		for _, e := range b.history {
			if seq, _ := e.seq(); seq > s.after {
				missed = append(missed, e)
			}
		}
	}
	b.mu.Unlock()

	// history is shorter than the stream buffer, so replay cannot block.
	for _, e := range missed {
		s.ch <- e
	}
	b.logger.Info().Int("total_clients", n).Int("replayed", len(missed)).Msg("SSE client connected")
}

func (b *Broadcaster) leave(s *stream) {
	b.mu.Lock()
	_, ok := b.streams[s]
	if ok {
		delete(b.streams, s)
		close(s.ch)
	}
	n := len(b.streams)
	b.mu.Unlock()
	if ok {
		b.logger.Info().Int("total_clients", n).Msg("SSE client disconnected")
	}
}

func (b *Broadcaster) fanOut(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := e.seq(); ok {
		if len(b.history) == historySize {
			b.history = append(b.history[:0], b.history[1:]...)
		}
		b.history = append(b.history, e)
	}
	for s := range b.streams {
		select {
		case s.ch <- e:
		default:
			b.logger.Warn().Str("id", e.ID).Msg("SSE client buffer full, event skipped")
		}
	}
}

// ServeHTTP streams events to one client until it disconnects or the
// broadcaster stops.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	s := &stream{ch: make(chan Event, streamBuffer)}
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		s.after, s.replay = parseLastEventID(last)
	}

	select {
	case b.joins <- s:
	case <-b.done:
		http.Error(w, "Event stream closed", http.StatusServiceUnavailable)
		return
	}
	defer func() {
		select {
		case b.leaves <- s:
		case <-b.done:
		}
	}()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	_, _ = fmt.Fprintf(w, "retry: %d\n", retryMillis)
	b.send(w, flusher, Event{
		Event: "connected",
		Data: map[string]any{
			"message":   "Connected to reconciliation event stream",
			"timestamp": time.Now().UTC(),
		},
	})

	for {
		select {
		case e, ok := <-s.ch:
			if !ok {
				return
			}
			b.send(w, flusher, e)
		case <-r.Context().Done():
			return
		}
	}
}

func (b *Broadcaster) send(w io.Writer, flusher http.Flusher, e Event) {
	if err := writeFrame(w, e); err != nil {
		b.logger.Error().Err(err).Str("event", e.Event).Msg("Failed to write SSE event")
		return
	}
	flusher.Flush()
}

// writeFrame writes e in text/event-stream framing.
func writeFrame(w io.Writer, e Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	if e.Event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", e.Event); err != nil {
			return err
		}
	}
	if e.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", e.ID); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func parseLastEventID(v string) (uint64, bool) {
	n, err := strconv.ParseUint(v, 10, 64)
	return n, err == nil
}
