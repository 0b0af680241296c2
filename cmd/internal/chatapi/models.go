package chatapi

import (
	"time"

	"relay/cmd/internal/messaging"
)

// createConversationRequest covers both 1:1 and group creation, mirroring the
// product's single conversations endpoint.
type createConversationRequest struct {
	UserID  string   `json:"userId,omitempty"`
	IsGroup bool     `json:"isGroup,omitempty"`
	Members []string `json:"members,omitempty"`
	Name    string   `json:"name,omitempty"`
}

type sendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message,omitempty"`
	Image          string `json:"image,omitempty"`
	MessageOrder   int64  `json:"messageOrder,omitempty"`
}

type conversationResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name,omitempty"`
	IsGroup        bool      `json:"isGroup"`
	ParticipantIDs []string  `json:"participantIds"`
	MessageIDs     []string  `json:"messageIds"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

type messageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Body           string    `json:"body,omitempty"`
	Image          string    `json:"image,omitempty"`
	MessageOrder   int64     `json:"messageOrder"`
	SeenIDs        []string  `json:"seenIds"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toConversationResponse(c messaging.Conversation) conversationResponse {
	return conversationResponse{
		ID:             c.ID,
		Name:           c.Name,
		IsGroup:        c.IsGroup,
		ParticipantIDs: c.ParticipantIDs,
		MessageIDs:     c.MessageIDs,
		LastMessageAt:  c.LastMessageAt,
		CreatedAt:      c.CreatedAt,
	}
}

func toMessageResponse(m messaging.Message) messageResponse {
	return messageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		Image:          m.ImageURL,
		MessageOrder:   m.MessageOrder,
		SeenIDs:        m.SeenBy,
		CreatedAt:      m.CreatedAt,
	}
}
