package push

import (
	"context"
	"errors"
	"fmt"
	"io"

	webpush "github.com/SherClockHolmes/webpush-go"

	"relay/cmd/internal/messaging"
)

const defaultTTLSeconds = 60

// VAPIDConfig carries the environment-supplied web-push signing material.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string

	// Subject is the mailto: or https: contact required by the VAPID spec.
	Subject string
}

// Enabled reports whether push can be dispatched at all.
func (c VAPIDConfig) Enabled() bool {
	return c.PublicKey != "" && c.PrivateKey != "" && c.Subject != ""
}

// WebPushSender delivers payloads via the Web Push protocol with VAPID auth.
type WebPushSender struct {
	cfg VAPIDConfig
}

// NewWebPushSender constructs a sender from VAPID configuration.
func NewWebPushSender(cfg VAPIDConfig) (*WebPushSender, error) {
	if !cfg.Enabled() {
		return nil, errors.New("push: incomplete VAPID configuration")
	}
	return &WebPushSender{cfg: cfg}, nil
}

// Send delivers payload to one endpoint. A non-2xx response (expired or
// invalid subscription, typically 404/410) is reported as an error so the
// dispatcher can log it.
func (s *WebPushSender) Send(ctx context.Context, sub messaging.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.cfg.Subject,
		VAPIDPublicKey:  s.cfg.PublicKey,
		VAPIDPrivateKey: s.cfg.PrivateKey,
		TTL:             defaultTTLSeconds,
	})
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
