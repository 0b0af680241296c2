package messaging

import (
	"context"
	"sync"
	"time"

	chatv1 "relay/shared/contracts/chat/v1"
)

// recordingBroadcaster captures every typed event for assertions.
type recordingBroadcaster struct {
	mu sync.Mutex

	conversationNew []struct {
		Emails []string
		Conv   chatv1.ConversationPayload
	}
	conversationUpdate []struct {
		Emails []string
		Update chatv1.ConversationUpdatePayload
	}
	messagesNew []struct {
		ConversationID string
		Msg            chatv1.MessagePayload
	}
	messageUpdate []struct {
		ConversationID string
		Msg            chatv1.MessagePayload
	}
}

func (b *recordingBroadcaster) ConversationNew(_ context.Context, emails []string, conv chatv1.ConversationPayload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversationNew = append(b.conversationNew, struct {
		Emails []string
		Conv   chatv1.ConversationPayload
	}{emails, conv})
}

func (b *recordingBroadcaster) ConversationUpdate(_ context.Context, emails []string, update chatv1.ConversationUpdatePayload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversationUpdate = append(b.conversationUpdate, struct {
		Emails []string
		Update chatv1.ConversationUpdatePayload
	}{emails, update})
}

func (b *recordingBroadcaster) MessagesNew(_ context.Context, conversationID string, msg chatv1.MessagePayload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messagesNew = append(b.messagesNew, struct {
		ConversationID string
		Msg            chatv1.MessagePayload
	}{conversationID, msg})
}

func (b *recordingBroadcaster) MessageUpdate(_ context.Context, conversationID string, msg chatv1.MessagePayload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messageUpdate = append(b.messageUpdate, struct {
		ConversationID string
		Msg            chatv1.MessagePayload
	}{conversationID, msg})
}

// recordingNotifier captures push dispatches.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []NotifyInput
}

func (n *recordingNotifier) Notify(_ context.Context, in NotifyInput) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, in)
}

// newTestService wires a Service over an in-memory store with recording
// collaborators and a fixed clock.
func newTestService(capacity int) (*Service, *InMemoryStore, *recordingBroadcaster, *recordingNotifier) {
	store := NewInMemoryStore()
	bc := &recordingBroadcaster{}
	push := &recordingNotifier{}

	svc := NewService(nil, store, bc, push, Config{HistoryCapacity: capacity})
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	return svc, store, bc, push
}

func seedUsers(store *InMemoryStore, users ...User) {
	for _, u := range users {
		store.PutUser(u)
	}
}
