package messaging

import (
	"context"
	"slices"

	chatv1 "relay/shared/contracts/chat/v1"
)

// SendMessageInput describes a send-message request.
// MessageOrder is a caller-supplied ordering hint expected to be non-decreasing
// within a conversation; insertion order remains authoritative.
type SendMessageInput struct {
	ConversationID string
	SenderID       string
	Body           string
	ImageURL       string
	MessageOrder   int64
}

// SendMessage validates and persists a new message, stamps the conversation's
// last activity, fans the message out, and dispatches best-effort push
// notifications to the other participants.
//
// The created message is returned regardless of fanout and push outcome: the
// persisted write is the source of truth, delivery to live clients and push
// endpoints is independently reconcilable.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (Message, error) {
	const op = "messaging.SendMessage"

	if in.Body == "" && in.ImageURL == "" {
		return Message{}, ValidationError{Op: op, Field: "body", Msg: "message requires a body or an image"}
	}

	conv, err := s.store.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return Message{}, err
	}

	if !slices.Contains(conv.ParticipantIDs, in.SenderID) {
		return Message{}, ValidationError{Op: op, Field: "sender", Msg: "sender is not a participant of the conversation"}
	}

	now := s.now()

	msg, err := s.store.CreateMessage(ctx, CreateMessageInput{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		Body:           in.Body,
		ImageURL:       in.ImageURL,
		MessageOrder:   in.MessageOrder,
		Now:            now,
	})
	if err != nil {
		return Message{}, err
	}

	if err := s.store.UpdateConversationLastMessageAt(ctx, conv.ID, now); err != nil {
		return Message{}, err
	}

	s.fanoutNewMessage(ctx, conv, msg)

	return msg, nil
}

// fanoutNewMessage performs the best-effort half of SendMessage: typed event
// broadcasts plus push dispatch. Failures here never fail the send.
func (s *Service) fanoutNewMessage(ctx context.Context, conv Conversation, msg Message) {
	payload, err := s.messagePayload(ctx, msg)
	if err != nil {
		s.log.Warn("send.fanout.skip", "conversation_id", conv.ID, "message_id", msg.ID, "err", err)
		return
	}

	s.bc.MessagesNew(ctx, conv.ID, payload)

	participants, err := s.store.GetUsers(ctx, conv.ParticipantIDs)
	if err != nil {
		s.log.Warn("send.fanout.participants.skip", "conversation_id", conv.ID, "err", err)
		return
	}

	s.bc.ConversationUpdate(ctx, emailsOf(participants), chatv1.ConversationUpdatePayload{
		ID:       conv.ID,
		Messages: []chatv1.MessagePayload{payload},
	})

	recipients := make([]User, 0, len(participants)-1)
	var sender User
	for _, u := range participants {
		if u.ID == msg.SenderID {
			sender = u
			continue
		}
		recipients = append(recipients, u)
	}
	if len(recipients) == 0 {
		return
	}

	s.push.Notify(ctx, NotifyInput{
		Recipients:     recipients,
		SenderName:     sender.Name,
		BodyPreview:    msg.Body,
		ConversationID: conv.ID,
	})
}
