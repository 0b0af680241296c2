// Package v1 defines the Relay chat event contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Event names (wire-stable).
const (
	// EventConversationNew announces a newly created conversation
	// (server -> every participant's per-user channel).
	EventConversationNew = "conversation:new"

	// EventConversationUpdate carries the conversation's newest message as a
	// single-element list so clients can patch incrementally instead of
	// re-fetching (server -> per-user channels).
	EventConversationUpdate = "conversation:update"

	// EventMessagesNew broadcasts a newly accepted message
	// (server -> conversation channel).
	EventMessagesNew = "messages:new"

	// EventMessageUpdate broadcasts a message whose seen set grew
	// (server -> conversation channel).
	EventMessageUpdate = "message:update"
)

// Envelope is the canonical wire wrapper delivered to subscribers.
//
// Channel naming convention:
//   - conversation channel = conversation id
//   - per-user channel     = user's email (stable and unique)
type Envelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.Channel) == "" {
		return errors.New("missing field: channel")
	}
	if strings.TrimSpace(e.Event) == "" {
		return errors.New("missing field: event")
	}

	switch e.Event {
	case EventConversationNew,
		EventConversationUpdate,
		EventMessagesNew,
		EventMessageUpdate:
		return nil
	default:
		return fmt.Errorf("unknown event: %q", e.Event)
	}
}
