package messaging

import (
	"context"
	"slices"
)

// CreateDirect returns the 1:1 conversation between two users, creating it on
// first contact. Lookup is order-independent: {A,B} and {B,A} resolve to the
// same conversation, so repeated calls are idempotent and never duplicate.
func (s *Service) CreateDirect(ctx context.Context, userA, userB string) (Conversation, error) {
	const op = "messaging.CreateDirect"

	if userA == "" || userB == "" {
		return Conversation{}, ValidationError{Op: op, Field: "user", Msg: "both user ids are required"}
	}
	if userA == userB {
		return Conversation{}, ValidationError{Op: op, Field: "user", Msg: "a direct conversation needs two distinct users"}
	}

	existing, ok, err := s.store.FindDirectConversation(ctx, userA, userB)
	if err != nil {
		return Conversation{}, err
	}
	if ok {
		return existing, nil
	}

	participants, err := s.store.GetUsers(ctx, []string{userA, userB})
	if err != nil {
		return Conversation{}, err
	}
	if len(participants) != 2 {
		return Conversation{}, NotFoundError{Op: op, Resource: "user"}
	}

	conv, err := s.store.CreateConversation(ctx, CreateConversationInput{
		ParticipantIDs: []string{userA, userB},
		Now:            s.now(),
	})
	if err != nil {
		return Conversation{}, err
	}

	s.bc.ConversationNew(ctx, emailsOf(participants), conversationPayload(conv, participants))

	return conv, nil
}

// CreateGroup creates a named group conversation with participants =
// members plus the creator, and announces it to every participant.
func (s *Service) CreateGroup(ctx context.Context, creatorID string, memberIDs []string, name string) (Conversation, error) {
	const op = "messaging.CreateGroup"

	if creatorID == "" {
		return Conversation{}, ValidationError{Op: op, Field: "creator", Msg: "creator id is required"}
	}
	if name == "" {
		return Conversation{}, ValidationError{Op: op, Field: "name", Msg: "group conversations require a name"}
	}

	ids := make([]string, 0, len(memberIDs)+1)
	for _, id := range memberIDs {
		if id == "" || id == creatorID || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) < 2 {
		return Conversation{}, ValidationError{Op: op, Field: "members", Msg: "a group requires at least 2 other members"}
	}
	ids = append(ids, creatorID)

	participants, err := s.store.GetUsers(ctx, ids)
	if err != nil {
		return Conversation{}, err
	}
	if len(participants) != len(ids) {
		return Conversation{}, NotFoundError{Op: op, Resource: "user"}
	}

	conv, err := s.store.CreateConversation(ctx, CreateConversationInput{
		Name:           name,
		IsGroup:        true,
		ParticipantIDs: ids,
		Now:            s.now(),
	})
	if err != nil {
		return Conversation{}, err
	}

	s.bc.ConversationNew(ctx, emailsOf(participants), conversationPayload(conv, participants))

	return conv, nil
}
