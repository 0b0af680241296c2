package messaging

import (
	"context"
	"slices"
	"testing"
)

// seenFixture seeds two users and a direct conversation with one message from u1.
func seenFixture(t *testing.T, svc *Service, store *InMemoryStore) (Conversation, Message) {
	t.Helper()

	seedUsers(store,
		User{ID: "u1", Name: "Ada", Email: "ada@example.com"},
		User{ID: "u2", Name: "Ben", Email: "ben@example.com"},
	)
	conv, err := store.CreateConversation(context.Background(), CreateConversationInput{ParticipantIDs: []string{"u1", "u2"}})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	msg, err := svc.SendMessage(context.Background(), SendMessageInput{ConversationID: conv.ID, SenderID: "u1", Body: "hello"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	return conv, msg
}

func TestMarkSeenFirstAck(t *testing.T) {
	t.Parallel()

	svc, store, bc, _ := newTestService(10)
	conv, msg := seenFixture(t, svc, store)

	// Drop the send's own fanout so assertions below see only MarkSeen's.
	bc.messagesNew = nil
	bc.conversationUpdate = nil

	if _, err := svc.MarkSeen(context.Background(), conv.ID, "u2"); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	got, err := store.GetMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if !slices.Equal(got.SeenBy, []string{"u1", "u2"}) {
		t.Fatalf("SeenBy=%v want=[u1 u2]", got.SeenBy)
	}

	// conversation:update reaches every participant with the single patched message.
	if len(bc.conversationUpdate) != 1 {
		t.Fatalf("conversationUpdate events=%d want=1", len(bc.conversationUpdate))
	}
	upd := bc.conversationUpdate[0]
	if !slices.Equal(upd.Emails, []string{"ada@example.com", "ben@example.com"}) {
		t.Fatalf("update emails=%v", upd.Emails)
	}
	if upd.Update.ID != conv.ID || len(upd.Update.Messages) != 1 || upd.Update.Messages[0].ID != msg.ID {
		t.Fatalf("update payload=%+v", upd.Update)
	}

	// First ack also fires message:update on the conversation channel.
	if len(bc.messageUpdate) != 1 {
		t.Fatalf("messageUpdate events=%d want=1", len(bc.messageUpdate))
	}
	if bc.messageUpdate[0].ConversationID != conv.ID || bc.messageUpdate[0].Msg.ID != msg.ID {
		t.Fatalf("messageUpdate=%+v", bc.messageUpdate[0])
	}
}

func TestMarkSeenRepeatAckSkipsMessageUpdate(t *testing.T) {
	t.Parallel()

	svc, store, bc, _ := newTestService(10)
	conv, _ := seenFixture(t, svc, store)

	if _, err := svc.MarkSeen(context.Background(), conv.ID, "u2"); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	bc.conversationUpdate = nil
	bc.messageUpdate = nil

	if _, err := svc.MarkSeen(context.Background(), conv.ID, "u2"); err != nil {
		t.Fatalf("MarkSeen repeat: %v", err)
	}

	// conversation:update is re-sent, but the repeat ack carries no new
	// information for other viewers, so message:update stays silent.
	if len(bc.conversationUpdate) != 1 {
		t.Fatalf("conversationUpdate events=%d want=1", len(bc.conversationUpdate))
	}
	if len(bc.messageUpdate) != 0 {
		t.Fatalf("repeat ack must not fire messageUpdate: %d", len(bc.messageUpdate))
	}
}

func TestMarkSeenSenderAck(t *testing.T) {
	t.Parallel()

	svc, store, bc, _ := newTestService(10)
	conv, msg := seenFixture(t, svc, store)
	bc.messageUpdate = nil

	// The sender is in the seen set from creation; their own ack is a repeat.
	if _, err := svc.MarkSeen(context.Background(), conv.ID, "u1"); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	got, err := store.GetMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if !slices.Equal(got.SeenBy, []string{"u1"}) {
		t.Fatalf("SeenBy=%v want=[u1]", got.SeenBy)
	}
	if len(bc.messageUpdate) != 0 {
		t.Fatalf("sender ack must not fire messageUpdate")
	}
}

func TestMarkSeenEmptyConversation(t *testing.T) {
	t.Parallel()

	svc, store, bc, _ := newTestService(10)
	seedUsers(store,
		User{ID: "u1", Name: "Ada", Email: "ada@example.com"},
		User{ID: "u2", Name: "Ben", Email: "ben@example.com"},
	)
	conv, err := store.CreateConversation(context.Background(), CreateConversationInput{ParticipantIDs: []string{"u1", "u2"}})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	got, err := svc.MarkSeen(context.Background(), conv.ID, "u2")
	if err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if got.ID != conv.ID {
		t.Fatalf("got conversation %s want %s", got.ID, conv.ID)
	}
	if len(bc.conversationUpdate) != 0 || len(bc.messageUpdate) != 0 {
		t.Fatalf("empty conversation must not fan out")
	}
}

func TestMarkSeenUnknownConversation(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestService(10)

	_, err := svc.MarkSeen(context.Background(), "nope", "u1")
	if !IsNotFound(err) {
		t.Fatalf("want not-found error, got %v", err)
	}
}

func TestMarkSeenRecordsBoundedHistory(t *testing.T) {
	t.Parallel()

	svc, store, _, _ := newTestService(10)
	conv, msg := seenFixture(t, svc, store)

	if _, err := svc.MarkSeen(context.Background(), conv.ID, "u2"); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	for _, id := range []string{"u1", "u2"} {
		u, err := store.GetUser(context.Background(), id)
		if err != nil {
			t.Fatalf("GetUser(%s): %v", id, err)
		}
		if !slices.Equal(u.SeenMessageIDs, []string{msg.ID}) {
			t.Fatalf("user %s SeenMessageIDs=%v want=[%s]", id, u.SeenMessageIDs, msg.ID)
		}
		if !slices.Equal(u.ConversationIDs, []string{conv.ID}) {
			t.Fatalf("user %s ConversationIDs=%v want=[%s]", id, u.ConversationIDs, conv.ID)
		}
	}
}

func TestMarkSeenHistoryEvictsAtCapacity(t *testing.T) {
	t.Parallel()

	svc, store, _, _ := newTestService(3)
	seedUsers(store,
		User{ID: "u1", Name: "Ada", Email: "ada@example.com"},
		User{ID: "u2", Name: "Ben", Email: "ben@example.com"},
	)
	conv, err := store.CreateConversation(context.Background(), CreateConversationInput{ParticipantIDs: []string{"u1", "u2"}})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	var ids []string
	for _, body := range []string{"a", "b", "c", "d"} {
		msg, err := svc.SendMessage(context.Background(), SendMessageInput{ConversationID: conv.ID, SenderID: "u1", Body: body})
		if err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
		if _, err := svc.MarkSeen(context.Background(), conv.ID, "u2"); err != nil {
			t.Fatalf("MarkSeen: %v", err)
		}
		ids = append(ids, msg.ID)
	}

	u, err := store.GetUser(context.Background(), "u2")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	want := ids[1:] // oldest seen id evicted once capacity was reached
	if !slices.Equal(u.SeenMessageIDs, want) {
		t.Fatalf("SeenMessageIDs=%v want=%v", u.SeenMessageIDs, want)
	}
	if !slices.Equal(u.ConversationIDs, []string{conv.ID}) {
		t.Fatalf("repeat conversation must not duplicate: %v", u.ConversationIDs)
	}
}

func TestMarkSeenHistoryUnchangedSkipsWrite(t *testing.T) {
	t.Parallel()

	svc, store, _, _ := newTestService(10)
	conv, msg := seenFixture(t, svc, store)

	if _, err := svc.MarkSeen(context.Background(), conv.ID, "u2"); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if _, err := svc.MarkSeen(context.Background(), conv.ID, "u2"); err != nil {
		t.Fatalf("MarkSeen repeat: %v", err)
	}

	u, err := store.GetUser(context.Background(), "u2")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !slices.Equal(u.SeenMessageIDs, []string{msg.ID}) {
		t.Fatalf("repeat ack must not grow history: %v", u.SeenMessageIDs)
	}
}
