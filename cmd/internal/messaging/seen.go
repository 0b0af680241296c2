package messaging

import (
	"context"
	"slices"

	chatv1 "relay/shared/contracts/chat/v1"
)

// MarkSeen records that userID has seen the last message of a conversation.
//
// Behavior:
//   - The last message is the most recently appended one; insertion order is
//     authoritative, not MessageOrder.
//   - The seen set grows by idempotent union.
//   - Both the message sender's and the acting user's recency lists are folded
//     through AppendBounded and persisted only when changed.
//   - A conversation:update event is always re-sent to every participant's
//     per-user channel, even when the acting user had already seen the message.
//   - A message:update event fires on the conversation channel only when the
//     acting user was absent from the seen set captured BEFORE the union;
//     a repeat ack carries no incremental information for other viewers.
//
// Store errors propagate; fanout failures are logged and never returned.
func (s *Service) MarkSeen(ctx context.Context, conversationID, userID string) (Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return Conversation{}, err
	}

	if len(conv.MessageIDs) == 0 {
		return conv, nil
	}

	lastID := conv.MessageIDs[len(conv.MessageIDs)-1]
	last, err := s.store.GetMessage(ctx, lastID)
	if err != nil {
		return Conversation{}, err
	}

	alreadySeen := slices.Contains(last.SeenBy, userID)

	updated, err := s.store.UpdateMessageSeenBy(ctx, lastID, userID)
	if err != nil {
		return Conversation{}, err
	}

	if err := s.recordHistory(ctx, updated.SenderID, updated.ID, conv.ID); err != nil {
		return Conversation{}, err
	}
	if userID != updated.SenderID {
		if err := s.recordHistory(ctx, userID, updated.ID, conv.ID); err != nil {
			return Conversation{}, err
		}
	}

	payload, err := s.messagePayload(ctx, updated)
	if err != nil {
		// Seen state is already durable; delivery is reconcilable on re-fetch.
		s.log.Warn("seen.fanout.skip", "conversation_id", conv.ID, "err", err)
		return conv, nil
	}

	participants, err := s.store.GetUsers(ctx, conv.ParticipantIDs)
	if err != nil {
		s.log.Warn("seen.fanout.skip", "conversation_id", conv.ID, "err", err)
		return conv, nil
	}

	s.bc.ConversationUpdate(ctx, emailsOf(participants), chatv1.ConversationUpdatePayload{
		ID:       conv.ID,
		Messages: []chatv1.MessagePayload{payload},
	})

	if !alreadySeen {
		s.bc.MessageUpdate(ctx, conv.ID, payload)
	}

	return conv, nil
}
