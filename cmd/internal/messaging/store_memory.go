package messaging

import (
	"context"
	"slices"
	"sync"
	"time"
)

// InMemoryStore is a dev-only fallback when DB is not configured, and the
// store used by unit tests. All reads return defensive copies.
type InMemoryStore struct {
	mu            sync.Mutex
	users         map[string]User
	conversations map[string]Conversation
	messages      map[string]Message
}

// NewInMemoryStore constructs an empty in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:         make(map[string]User),
		conversations: make(map[string]Conversation),
		messages:      make(map[string]Message),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// PutUser inserts or replaces a user record. User provisioning belongs to the
// external identity system; this exists for dev seeding and tests.
func (s *InMemoryStore) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = cloneUser(u)
}

// GetUser returns the user record for id.
func (s *InMemoryStore) GetUser(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, NotFoundError{Op: "store.GetUser", Resource: "user", ID: id}
	}
	return cloneUser(u), nil
}

// GetUsers returns the records for the given ids, in argument order.
// Unknown ids are skipped rather than failing the whole read.
func (s *InMemoryStore) GetUsers(_ context.Context, ids []string) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

// GetConversation returns the conversation record for id.
func (s *InMemoryStore) GetConversation(_ context.Context, id string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return Conversation{}, NotFoundError{Op: "store.GetConversation", Resource: "conversation", ID: id}
	}
	return cloneConversation(c), nil
}

// FindDirectConversation looks up an existing 1:1 conversation for the
// unordered pair {userA, userB}.
func (s *InMemoryStore) FindDirectConversation(_ context.Context, userA, userB string) (Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		if c.IsGroup || len(c.ParticipantIDs) != 2 {
			continue
		}
		if slices.Contains(c.ParticipantIDs, userA) && slices.Contains(c.ParticipantIDs, userB) {
			return cloneConversation(c), true, nil
		}
	}
	return Conversation{}, false, nil
}

// CreateConversation creates a conversation record.
func (s *InMemoryStore) CreateConversation(_ context.Context, in CreateConversationInput) (Conversation, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewID(now)
	if err != nil {
		return Conversation{}, StoreError{Op: "store.CreateConversation", Err: err}
	}

	c := Conversation{
		ID:             id,
		Name:           in.Name,
		IsGroup:        in.IsGroup,
		ParticipantIDs: slices.Clone(in.ParticipantIDs),
		LastMessageAt:  now,
		CreatedAt:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[id] = c
	return cloneConversation(c), nil
}

// GetMessage returns the message record for id.
func (s *InMemoryStore) GetMessage(_ context.Context, id string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return Message{}, NotFoundError{Op: "store.GetMessage", Resource: "message", ID: id}
	}
	return cloneMessage(m), nil
}

// CreateMessage persists a message and appends it to the parent conversation's
// message sequence in one critical section, so insertion order reflects
// arrival order.
func (s *InMemoryStore) CreateMessage(_ context.Context, in CreateMessageInput) (Message, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewID(now)
	if err != nil {
		return Message{}, StoreError{Op: "store.CreateMessage", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[in.ConversationID]
	if !ok {
		return Message{}, NotFoundError{Op: "store.CreateMessage", Resource: "conversation", ID: in.ConversationID}
	}

	m := Message{
		ID:             id,
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Body:           in.Body,
		ImageURL:       in.ImageURL,
		MessageOrder:   in.MessageOrder,
		SeenBy:         []string{in.SenderID},
		CreatedAt:      now,
	}

	s.messages[id] = m
	c.MessageIDs = append(c.MessageIDs, id)
	s.conversations[in.ConversationID] = c

	return cloneMessage(m), nil
}

// UpdateMessageSeenBy unions userID into the message's seen set (idempotent).
func (s *InMemoryStore) UpdateMessageSeenBy(_ context.Context, messageID, userID string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[messageID]
	if !ok {
		return Message{}, NotFoundError{Op: "store.UpdateMessageSeenBy", Resource: "message", ID: messageID}
	}

	if !slices.Contains(m.SeenBy, userID) {
		m.SeenBy = append(slices.Clone(m.SeenBy), userID)
		s.messages[messageID] = m
	}
	return cloneMessage(m), nil
}

// UpdateUserHistory replaces one of the user's bounded recency lists.
func (s *InMemoryStore) UpdateUserHistory(_ context.Context, userID string, field HistoryField, list []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return NotFoundError{Op: "store.UpdateUserHistory", Resource: "user", ID: userID}
	}

	switch field {
	case HistorySeenMessages:
		u.SeenMessageIDs = slices.Clone(list)
	case HistoryConversations:
		u.ConversationIDs = slices.Clone(list)
	default:
		return ValidationError{Op: "store.UpdateUserHistory", Field: "field", Msg: "unknown history field"}
	}

	s.users[userID] = u
	return nil
}

// UpdateConversationLastMessageAt stamps the conversation's last activity.
func (s *InMemoryStore) UpdateConversationLastMessageAt(_ context.Context, id string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return NotFoundError{Op: "store.UpdateConversationLastMessageAt", Resource: "conversation", ID: id}
	}

	c.LastMessageAt = ts
	s.conversations[id] = c
	return nil
}

func cloneUser(u User) User {
	u.SeenMessageIDs = slices.Clone(u.SeenMessageIDs)
	u.ConversationIDs = slices.Clone(u.ConversationIDs)
	u.PushSubscriptions = slices.Clone(u.PushSubscriptions)
	return u
}

func cloneConversation(c Conversation) Conversation {
	c.ParticipantIDs = slices.Clone(c.ParticipantIDs)
	c.MessageIDs = slices.Clone(c.MessageIDs)
	return c
}

func cloneMessage(m Message) Message {
	m.SeenBy = slices.Clone(m.SeenBy)
	return m
}
