package fanout

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	chatv1 "relay/shared/contracts/chat/v1"
)

const natsSubjectPrefix = "relay.chat."

// NATSBus is a Bus backed by a NATS connection, used when Relay runs as more
// than one instance and fanout must cross processes.
//
// Delivery is at-most-once core NATS; that matches the bus contract (no
// exactly-once guarantee, failures logged and reconciled by re-fetch).
type NATSBus struct {
	log *slog.Logger
	nc  *nats.Conn
}

// NewNATSBus connects to the given NATS URL.
func NewNATSBus(log *slog.Logger, url string) (*NATSBus, error) {
	if log == nil {
		log = slog.Default()
	}
	if url == "" {
		return nil, errors.New("fanout: empty nats url")
	}

	nc, err := nats.Connect(url,
		nats.Name("relay"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}

	return &NATSBus{log: log, nc: nc}, nil
}

// Publish delivers the envelope to the channel's NATS subject.
func (b *NATSBus) Publish(_ context.Context, channel, event string, payload any) error {
	if channel == "" || event == "" {
		return errors.New("fanout: empty channel or event")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	data, err := json.Marshal(chatv1.Envelope{Channel: channel, Event: event, Payload: raw})
	if err != nil {
		return err
	}

	return b.nc.Publish(subjectFor(channel), data)
}

// Attach subscribes sub to the channel's subject. Malformed envelopes are
// dropped with a warning; queue overflow drops like the in-process hub.
func (b *NATSBus) Attach(channel string, sub *Subscriber) (func(), error) {
	if channel == "" {
		return nil, errors.New("fanout: empty channel")
	}
	if sub == nil {
		return nil, errors.New("fanout: nil subscriber")
	}

	ns, err := b.nc.Subscribe(subjectFor(channel), func(m *nats.Msg) {
		var env chatv1.Envelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			b.log.Warn("fanout.nats.decode.fail", "channel", channel, "err", err)
			return
		}
		offer(sub, env)
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	detach := func() {
		once.Do(func() {
			if err := ns.Unsubscribe(); err != nil {
				b.log.Warn("fanout.nats.unsubscribe.fail", "channel", channel, "err", err)
			}
		})
	}
	return detach, nil
}

// Close drains the connection so queued publishes flush before shutdown.
func (b *NATSBus) Close() error {
	if b == nil || b.nc == nil {
		return nil
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return err
	}
	return nil
}

// subjectFor maps a channel name onto a single NATS subject token.
// Channel names carry emails and ids, so the name is encoded rather than
// embedded raw ('.', '*', and '>' are significant in NATS subjects).
func subjectFor(channel string) string {
	return natsSubjectPrefix + base64.RawURLEncoding.EncodeToString([]byte(channel))
}
