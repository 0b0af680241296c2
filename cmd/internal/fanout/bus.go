// Package fanout provides Relay's publish/subscribe layer: the Bus
// abstraction, an in-process hub implementation, a NATS-backed
// implementation, and the typed Broadcaster the messaging core consumes.
package fanout

import (
	"context"
	"sync"

	chatv1 "relay/shared/contracts/chat/v1"
)

// Bus is a named-channel publish/subscribe transport.
//
// Publishing is fire-and-forget from the caller's perspective; implementations
// surface delivery problems as returned errors that callers log, never fatal.
type Bus interface {
	// Publish marshals payload and delivers it to every subscriber of channel.
	Publish(ctx context.Context, channel, event string, payload any) error

	// Attach subscribes sub to channel and returns a detach function.
	// Detach is safe to call more than once and must run on every exit path
	// of the subscriber's lifecycle.
	Attach(channel string, sub *Subscriber) (func(), error)

	Close() error
}

// Subscriber represents one consumer of bus events with a bounded queue.
//
// Design notes:
// - Send is intentionally NOT closed by the bus to avoid panics from concurrent publishers.
// - done is used to signal the consumer to stop.
// - Close is idempotent.
type Subscriber struct {
	ID   string
	Send chan chatv1.Envelope

	done      chan struct{}
	closeOnce sync.Once
}

// NewSubscriber constructs a Subscriber with a bounded send queue.
func NewSubscriber(id string, sendQueueSize int) *Subscriber {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Subscriber{
		ID:   id,
		Send: make(chan chatv1.Envelope, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Done returns a channel that is closed when the subscriber is shutting down.
func (s *Subscriber) Done() <-chan struct{} {
	if s == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// Close signals the consumer to stop (idempotent).
// It does NOT close Send to keep publishing safe under concurrency.
func (s *Subscriber) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// offer delivers env to sub without blocking. Subscribers that are shutting
// down or whose queue is full are skipped; a slow consumer must never stall
// the channel.
func offer(sub *Subscriber, env chatv1.Envelope) {
	if sub == nil {
		return
	}

	select {
	case <-sub.Done():
		return
	default:
	}

	select {
	case sub.Send <- env:
	default:
		subscriberDrops.Inc()
	}
}
