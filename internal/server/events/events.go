// Package events fans reconciliation job notifications out to the
// server's streaming transports.
//
// Engine job hooks publish into a Broker. The WebSocket hub and the SSE
// broadcaster subscribe to it through the adapters package, so both see
// one stream numbered by Seq.
package events

import (
	"time"

	"github.com/agentstation/recon/pkg/jobs"
)

// Kind names an event on the stream.
type Kind string

const (
	JobCompleted    Kind = "job.completed"
	JobFailed       Kind = "job.failed"
	ClientConnected Kind = "client.connected"
)

// KindFor returns the event kind announcing a finished job.
func KindFor(status jobs.Status) Kind {
	if status == jobs.StatusFailed {
		return JobFailed
	}
	return JobCompleted
}

// Event is one notification. Seq starts at 1 and increases by one per
// accepted Publish, so a gap tells a client it missed events.
type Event struct {
	Seq  uint64    `json:"seq"`
	Kind Kind      `json:"type"`
	At   time.Time `json:"timestamp"`
	Data any       `json:"data"`
}

// Subscriber receives every event the broker delivers. Send must not
// block on slow clients.
type Subscriber interface {
	Send(Event) error
	Close() error
}

// SubscriberFunc is a Subscriber with nothing to release.
type SubscriberFunc func(Event) error

func (f SubscriberFunc) Send(e Event) error { return f(e) }

func (f SubscriberFunc) Close() error { return nil }
