package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	chatv1 "relay/shared/contracts/chat/v1"
)

// Hub is the in-process Bus: a map of named channels with broadcast fanout.
// It is the default when no external broker is configured.
type Hub struct {
	log *slog.Logger

	mu       sync.RWMutex
	channels map[string]*hubChannel
}

// hubChannel holds one channel's membership.
//
// Concurrency guarantees:
// - Attach/detach are safe under concurrent broadcast.
// - Broadcast never blocks (drops under backpressure).
// - Broadcast is panic-safe because Subscriber.Send is never closed by the hub.
type hubChannel struct {
	mu      sync.RWMutex
	members map[string]*Subscriber
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:      log,
		channels: make(map[string]*hubChannel),
	}
}

// Publish marshals payload once and fans it out to all channel subscribers.
func (h *Hub) Publish(_ context.Context, channel, event string, payload any) error {
	if channel == "" || event == "" {
		return errors.New("fanout: empty channel or event")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := chatv1.Envelope{Channel: channel, Event: event, Payload: raw}

	h.mu.RLock()
	ch := h.channels[channel]
	h.mu.RUnlock()

	if ch == nil {
		// No subscribers; nothing to deliver.
		return nil
	}

	ch.mu.RLock()
	defer ch.mu.RUnlock()

	for _, sub := range ch.members {
		offer(sub, env)
	}
	return nil
}

// Attach subscribes sub to channel. The returned detach function removes the
// membership and is idempotent; it must run on every exit path.
func (h *Hub) Attach(channel string, sub *Subscriber) (func(), error) {
	if channel == "" {
		return nil, errors.New("fanout: empty channel")
	}
	if sub == nil || sub.ID == "" {
		return nil, errors.New("fanout: nil subscriber")
	}

	h.mu.Lock()
	ch := h.channels[channel]
	if ch == nil {
		ch = &hubChannel{members: make(map[string]*Subscriber)}
		h.channels[channel] = ch
	}
	h.mu.Unlock()

	ch.mu.Lock()
	ch.members[sub.ID] = sub
	ch.mu.Unlock()

	h.log.Debug("fanout.attach", "channel", channel, "subscriber_id", sub.ID)

	var once sync.Once
	detach := func() {
		once.Do(func() {
			ch.mu.Lock()
			delete(ch.members, sub.ID)
			empty := len(ch.members) == 0
			ch.mu.Unlock()

			if empty {
				h.mu.Lock()
				// Re-check under the hub lock; a concurrent Attach may have
				// repopulated the channel.
				ch.mu.RLock()
				if len(ch.members) == 0 && h.channels[channel] == ch {
					delete(h.channels, channel)
				}
				ch.mu.RUnlock()
				h.mu.Unlock()
			}

			h.log.Debug("fanout.detach", "channel", channel, "subscriber_id", sub.ID)
		})
	}
	return detach, nil
}

// Close is a no-op for the in-process hub; subscribers own their lifecycles.
func (h *Hub) Close() error { return nil }
