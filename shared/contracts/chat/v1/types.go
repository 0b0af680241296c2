package v1

import "time"

// UserSummary is the expanded user representation embedded into message and
// conversation payloads.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// MessagePayload is the full message object carried by EventMessagesNew,
// EventMessageUpdate, and inside ConversationUpdatePayload.
//
// Sender and Seen are always expanded; Seen grows monotonically.
type MessagePayload struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	Body           string        `json:"body"`
	Image          string        `json:"image"`
	MessageOrder   int64         `json:"messageOrder"`
	CreatedAt      time.Time     `json:"createdAt"`
	Sender         UserSummary   `json:"sender"`
	Seen           []UserSummary `json:"seen"`
}

// ConversationPayload is the full conversation object carried by
// EventConversationNew, including the participant list.
type ConversationPayload struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	IsGroup       bool          `json:"isGroup"`
	LastMessageAt time.Time     `json:"lastMessageAt"`
	CreatedAt     time.Time     `json:"createdAt"`
	Users         []UserSummary `json:"users"`
}

// ConversationUpdatePayload is carried by EventConversationUpdate.
// Messages is always a single-element list holding the newest message.
type ConversationUpdatePayload struct {
	ID       string           `json:"id"`
	Messages []MessagePayload `json:"messages"`
}

// PushPayload is the JSON body delivered to web-push endpoints.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	ID    string `json:"id"`
}
