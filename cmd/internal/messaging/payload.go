package messaging

import (
	"context"

	chatv1 "relay/shared/contracts/chat/v1"
)

// messagePayload builds the wire representation of a message with sender and
// seen set expanded to user summaries.
func (s *Service) messagePayload(ctx context.Context, msg Message) (chatv1.MessagePayload, error) {
	sender, err := s.store.GetUser(ctx, msg.SenderID)
	if err != nil {
		return chatv1.MessagePayload{}, err
	}

	seen, err := s.store.GetUsers(ctx, msg.SeenBy)
	if err != nil {
		return chatv1.MessagePayload{}, err
	}

	out := chatv1.MessagePayload{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Body:           msg.Body,
		Image:          msg.ImageURL,
		MessageOrder:   msg.MessageOrder,
		CreatedAt:      msg.CreatedAt,
		Sender:         userSummary(sender),
		Seen:           make([]chatv1.UserSummary, 0, len(seen)),
	}
	for _, u := range seen {
		out.Seen = append(out.Seen, userSummary(u))
	}
	return out, nil
}

// conversationPayload builds the wire representation of a conversation with
// the participant list expanded.
func conversationPayload(conv Conversation, participants []User) chatv1.ConversationPayload {
	out := chatv1.ConversationPayload{
		ID:            conv.ID,
		Name:          conv.Name,
		IsGroup:       conv.IsGroup,
		LastMessageAt: conv.LastMessageAt,
		CreatedAt:     conv.CreatedAt,
		Users:         make([]chatv1.UserSummary, 0, len(participants)),
	}
	for _, u := range participants {
		out.Users = append(out.Users, userSummary(u))
	}
	return out
}

func userSummary(u User) chatv1.UserSummary {
	return chatv1.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

func emailsOf(users []User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		if u.Email != "" {
			out = append(out, u.Email)
		}
	}
	return out
}
