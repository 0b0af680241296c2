package fanout

import (
	"context"
	"log/slog"

	chatv1 "relay/shared/contracts/chat/v1"
)

// Broadcaster publishes the typed chat events over a Bus.
//
// Channel naming convention:
//   - conversation channel = conversation id
//   - per-user channel     = user's email
//
// Every method is best-effort: publish failures are logged and counted, never
// returned, so a dead bus cannot fail a message send or a seen-mark.
type Broadcaster struct {
	log *slog.Logger
	bus Bus
}

// NewBroadcaster constructs a Broadcaster over the given bus.
func NewBroadcaster(log *slog.Logger, bus Bus) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{log: log, bus: bus}
}

// ConversationNew announces a new conversation on each per-user channel.
func (b *Broadcaster) ConversationNew(ctx context.Context, emails []string, conv chatv1.ConversationPayload) {
	for _, email := range emails {
		b.publish(ctx, email, chatv1.EventConversationNew, conv)
	}
}

// ConversationUpdate delivers a single-message patch on each per-user channel.
func (b *Broadcaster) ConversationUpdate(ctx context.Context, emails []string, update chatv1.ConversationUpdatePayload) {
	for _, email := range emails {
		b.publish(ctx, email, chatv1.EventConversationUpdate, update)
	}
}

// MessagesNew publishes a newly accepted message on the conversation channel.
func (b *Broadcaster) MessagesNew(ctx context.Context, conversationID string, msg chatv1.MessagePayload) {
	b.publish(ctx, conversationID, chatv1.EventMessagesNew, msg)
}

// MessageUpdate publishes a grown seen set on the conversation channel.
func (b *Broadcaster) MessageUpdate(ctx context.Context, conversationID string, msg chatv1.MessagePayload) {
	b.publish(ctx, conversationID, chatv1.EventMessageUpdate, msg)
}

func (b *Broadcaster) publish(ctx context.Context, channel, event string, payload any) {
	if err := b.bus.Publish(ctx, channel, event, payload); err != nil {
		publishFailures.WithLabelValues(event).Inc()
		b.log.Warn("fanout.publish.fail", "channel", channel, "event", event, "err", err)
		return
	}
	eventsPublished.WithLabelValues(event).Inc()
}
