// Package messaging contains Relay's chat core: message ingestion, seen-state
// coordination, bounded recency history, and conversation creation.
package messaging

import (
	"context"
	"time"
)

// User is the durable per-user record.
//
// SeenMessageIDs and ConversationIDs are capacity-bounded recency lists; they
// are mutated only through AppendBounded followed by UpdateUserHistory.
type User struct {
	ID    string
	Name  string
	Email string

	SeenMessageIDs  []string
	ConversationIDs []string

	PushSubscriptions []PushSubscription
}

// PushSubscription is an opaque web-push endpoint descriptor registered by a client.
type PushSubscription struct {
	Endpoint string               `json:"endpoint"`
	Keys     PushSubscriptionKeys `json:"keys"`
}

// PushSubscriptionKeys carries the client's web-push encryption keys.
type PushSubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Conversation is the durable conversation record.
//
// MessageIDs is ordered by arrival; insertion order is authoritative for
// "last message" even though MessageOrder should be consistent with it.
type Conversation struct {
	ID      string
	Name    string
	IsGroup bool

	ParticipantIDs []string
	MessageIDs     []string

	LastMessageAt time.Time
	CreatedAt     time.Time
}

// Message is the durable message record. Immutable after creation except for
// SeenBy, which grows by set union and never shrinks.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string

	Body         string
	ImageURL     string
	MessageOrder int64

	SeenBy    []string
	CreatedAt time.Time
}

// HistoryField selects which bounded recency list of a User to replace.
type HistoryField string

const (
	HistorySeenMessages  HistoryField = "seen_message_ids"
	HistoryConversations HistoryField = "conversation_ids"
)

// CreateConversationInput describes a conversation creation request.
type CreateConversationInput struct {
	Name           string
	IsGroup        bool
	ParticipantIDs []string
	Now            time.Time
}

// CreateMessageInput describes a message creation request.
// The created message starts with SeenBy = {SenderID}: sending implies seeing.
type CreateMessageInput struct {
	ConversationID string
	SenderID       string
	Body           string
	ImageURL       string
	MessageOrder   int64
	Now            time.Time
}

// Store is the durable store adapter consumed by the messaging core.
//
// Requirements:
//   - CreateMessage appends the new id to the parent conversation's message
//     sequence atomically with the insert; within one conversation, insertion
//     order reflects call-arrival order as serialized by the store.
//   - UpdateMessageSeenBy is an idempotent set union.
//   - Conflicting writes to the same record are serialized by the store; the
//     core performs plain read-modify-write with no locking of its own.
//
// All methods return NotFoundError when an id does not resolve and StoreError
// on infrastructure failure.
type Store interface {
	GetConversation(ctx context.Context, id string) (Conversation, error)
	FindDirectConversation(ctx context.Context, userA, userB string) (Conversation, bool, error)
	CreateConversation(ctx context.Context, in CreateConversationInput) (Conversation, error)

	GetUser(ctx context.Context, id string) (User, error)
	GetUsers(ctx context.Context, ids []string) ([]User, error)

	GetMessage(ctx context.Context, id string) (Message, error)
	CreateMessage(ctx context.Context, in CreateMessageInput) (Message, error)
	UpdateMessageSeenBy(ctx context.Context, messageID, userID string) (Message, error)

	UpdateUserHistory(ctx context.Context, userID string, field HistoryField, list []string) error
	UpdateConversationLastMessageAt(ctx context.Context, id string, ts time.Time) error

	Close() error
}
