// Package push delivers best-effort web-push notifications to participants'
// registered endpoints. Failures are logged per endpoint and never escalate.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"relay/cmd/internal/messaging"
	chatv1 "relay/shared/contracts/chat/v1"
)

const (
	defaultSendTimeout = 5 * time.Second
	defaultParallelism = 8
)

// Sender delivers one payload to one push endpoint.
type Sender interface {
	Send(ctx context.Context, sub messaging.PushSubscription, payload []byte) error
}

// Dispatcher fans a message summary out to every recipient's registered
// endpoints.
//
// Contract:
//   - Each endpoint failure (expired/invalid subscription) is caught and
//     logged individually; it never aborts the remaining sends.
//   - No retry. Stale endpoints are not pruned here; that is a maintenance
//     job's concern.
type Dispatcher struct {
	log    *slog.Logger
	sender Sender

	sendTimeout time.Duration
	parallelism int
}

// NewDispatcher constructs a Dispatcher with safe defaults for zero values.
func NewDispatcher(log *slog.Logger, sender Sender, sendTimeout time.Duration, parallelism int) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}
	return &Dispatcher{
		log:         log,
		sender:      sender,
		sendTimeout: sendTimeout,
		parallelism: parallelism,
	}
}

// Notify implements messaging.Notifier.
func (d *Dispatcher) Notify(ctx context.Context, in messaging.NotifyInput) {
	if d == nil || d.sender == nil {
		return
	}

	payload, err := json.Marshal(chatv1.PushPayload{
		Title: in.SenderName,
		Body:  in.BodyPreview,
		ID:    in.ConversationID,
	})
	if err != nil {
		d.log.Warn("push.payload.fail", "conversation_id", in.ConversationID, "err", err)
		return
	}

	// The group bounds parallelism only; per-endpoint errors are logged and
	// swallowed so every endpoint gets its attempt.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism)

	for _, recipient := range in.Recipients {
		for _, sub := range recipient.PushSubscriptions {
			userID := recipient.ID
			sub := sub

			g.Go(func() error {
				sendCtx, cancel := context.WithTimeout(gctx, d.sendTimeout)
				defer cancel()

				if err := d.sender.Send(sendCtx, sub, payload); err != nil {
					pushFailures.Inc()
					d.log.Warn("push.send.fail",
						"user_id", userID,
						"conversation_id", in.ConversationID,
						"err", err,
					)
					return nil
				}

				pushSent.Inc()
				return nil
			})
		}
	}

	_ = g.Wait()
}
