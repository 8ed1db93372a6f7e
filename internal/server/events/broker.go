package events

import (
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/recon/pkg/jobs"
)

const queueSize = 256

// Broker delivers published events to named subscribers. Each subscriber
// sees events in publish order.
type Broker struct {
	logger *zerolog.Logger
	queue  chan Event

	pubMu   sync.Mutex
	seq     uint64
	dropped atomic.Uint64

	mu   sync.RWMutex
	subs map[string]Subscriber
}

// NewBroker returns a broker with an empty subscriber set. Nothing is
// delivered until Run is called.
func NewBroker(logger *zerolog.Logger) *Broker {
	return &Broker{
		logger: logger,
		queue:  make(chan Event, queueSize),
		subs:   make(map[string]Subscriber),
	}
}

// Subscribe registers sub under name, closing any subscriber previously
// registered under the same name.
func (b *Broker) Subscribe(name string, sub Subscriber) {
	b.mu.Lock()
	old, replaced := b.subs[name]
	b.subs[name] = sub
	b.mu.Unlock()

	if replaced {
		_ = old.Close()
	}
	b.logger.Debug().Str("subscriber", name).Msg("Event subscriber registered")
}

// Unsubscribe removes and closes the subscriber registered under name.
// Unknown names are ignored.
func (b *Broker) Unsubscribe(name string) {
	b.mu.Lock()
	sub, ok := b.subs[name]
	delete(b.subs, name)
	b.mu.Unlock()

	if ok {
		_ = sub.Close()
		b.logger.Debug().Str("subscriber", name).Msg("Event subscriber removed")
	}
}

// Subscribers returns the registered names in sorted order.
func (b *Broker) Subscribers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Sorted(maps.Keys(b.subs))
}

// Publish queues an event and returns its sequence number. It never
// blocks: with the queue full the event is counted as dropped and 0 is
// returned.
func (b *Broker) Publish(kind Kind, data any) uint64 {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	e := Event{Seq: b.seq + 1, Kind: kind, At: time.Now().UTC(), Data: data}
	select {
	case b.queue <- e:
		b.seq = e.Seq
		return e.Seq
	default:
		b.dropped.Add(1)
		b.logger.Warn().Str("event_type", string(kind)).Msg("Event queue full, event dropped")
		return 0
	}
}

// PublishJob announces a finished job with its summary as payload.
func (b *Broker) PublishJob(job jobs.Job) uint64 {
	return b.Publish(KindFor(job.Status), job.Summary())
}

// Dropped returns how many events were discarded on a full queue.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

// Run delivers queued events until ctx is done, then closes and removes
// every subscriber.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			subs := b.subs
			b.subs = make(map[string]Subscriber)
			b.mu.Unlock()
			for _, sub := range subs {
				_ = sub.Close()
			}
			b.logger.Info().Uint64("dropped", b.Dropped()).Msg("Event broker stopped")
			return
		case e := <-b.queue:
			b.deliver(e)
		}
	}
}

func (b *Broker) deliver(e Event) {
	b.mu.RLock()
	subs := maps.Clone(b.subs)
	b.mu.RUnlock()

	for name, sub := range subs {
		if err := sub.Send(e); err != nil {
			b.logger.Warn().Err(err).
				Str("subscriber", name).
				Uint64("seq", e.Seq).
				Msg("Event delivery failed")
		}
	}
}
