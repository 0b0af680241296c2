package messaging

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"time"

	chatv1 "relay/shared/contracts/chat/v1"
)

const defaultHistoryCapacity = 10

// Config contains messaging core tunables.
type Config struct {
	// HistoryCapacity bounds the per-user recency lists
	// (seen message ids, active conversation ids). Minimum 1.
	HistoryCapacity int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{HistoryCapacity: defaultHistoryCapacity}
}

// Broadcaster publishes typed events to per-conversation and per-user channels.
//
// Delivery is best-effort: implementations log failures and never surface them
// to the caller, so none of these methods return an error.
type Broadcaster interface {
	// ConversationNew fans a full conversation object out to each listed
	// per-user channel (email-keyed).
	ConversationNew(ctx context.Context, emails []string, conv chatv1.ConversationPayload)

	// ConversationUpdate fans a single-message patch out to each listed
	// per-user channel.
	ConversationUpdate(ctx context.Context, emails []string, update chatv1.ConversationUpdatePayload)

	// MessagesNew publishes a newly accepted message to the conversation channel.
	MessagesNew(ctx context.Context, conversationID string, msg chatv1.MessagePayload)

	// MessageUpdate publishes a message whose seen set grew to the conversation channel.
	MessageUpdate(ctx context.Context, conversationID string, msg chatv1.MessagePayload)
}

// NotifyInput describes one best-effort push dispatch.
type NotifyInput struct {
	Recipients     []User
	SenderName     string
	BodyPreview    string
	ConversationID string
}

// Notifier delivers best-effort push notifications to offline participants.
type Notifier interface {
	Notify(ctx context.Context, in NotifyInput)
}

// NoopNotifier is used when push is not configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(_ context.Context, _ NotifyInput) {}

// Service implements the high-level messaging operations for Relay:
// SendMessage, MarkSeen, CreateDirect, and CreateGroup.
//
// The service treats each bounded-history update as read-current ->
// compute-next -> write-current; serialization of conflicting writes to the
// same record belongs to the Store.
type Service struct {
	log   *slog.Logger
	store Store
	bc    Broadcaster
	push  Notifier

	historyCapacity int
	now             func() time.Time
}

// NewService constructs a Service. A nil push notifier disables push dispatch.
func NewService(log *slog.Logger, store Store, bc Broadcaster, push Notifier, cfg Config) *Service {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if push == nil {
		push = NoopNotifier{}
	}
	if cfg.HistoryCapacity < 1 {
		cfg.HistoryCapacity = defaultHistoryCapacity
	}

	return &Service{
		log:             log,
		store:           store,
		bc:              bc,
		push:            push,
		historyCapacity: cfg.HistoryCapacity,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// recordHistory folds messageID and conversationID into userID's recency lists,
// persisting each list only when it actually changed.
func (s *Service) recordHistory(ctx context.Context, userID, messageID, conversationID string) error {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if next := AppendBounded(u.SeenMessageIDs, messageID, s.historyCapacity); !slices.Equal(next, u.SeenMessageIDs) {
		if err := s.store.UpdateUserHistory(ctx, userID, HistorySeenMessages, next); err != nil {
			return err
		}
	}

	if next := AppendBounded(u.ConversationIDs, conversationID, s.historyCapacity); !slices.Equal(next, u.ConversationIDs) {
		if err := s.store.UpdateUserHistory(ctx, userID, HistoryConversations, next); err != nil {
			return err
		}
	}

	return nil
}
