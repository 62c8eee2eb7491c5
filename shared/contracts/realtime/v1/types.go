// Package v1 defines the Counsel realtime protocol v1 contract.
//
// The package is shared between the server and tools and has no dependencies
// beyond the standard library.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Subprotocol is the websocket subprotocol clients must offer.
const Subprotocol = "counsel.realtime.v1"

// Type constants (wire-stable).
const (
	// TypeRegisterUser binds the connection to a user (client -> server).
	TypeRegisterUser = "registerUser"

	// TypeJoinChat joins the room for a conversation (client -> server).
	TypeJoinChat = "joinChat"
	// TypeChatJoined acknowledges a join (server -> client).
	TypeChatJoined = "chatJoined"

	// TypeSendMessage persists and broadcasts a message (client -> server).
	TypeSendMessage = "sendMessage"
	// TypeReceiveMessage carries a stored message (server -> room).
	TypeReceiveMessage = "receiveMessage"
	// TypeMessageError reports a failed send (server -> sender).
	TypeMessageError = "messageError"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitzero"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeRegisterUser,
		TypeJoinChat,
		TypeChatJoined,
		TypeSendMessage,
		TypeReceiveMessage,
		TypeMessageError,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// RegisterUserPayload binds a connection to UserID.
type RegisterUserPayload struct {
	UserID string `json:"userId"`
}

// JoinChatPayload requests the room shared by SelfID and OtherUserID.
type JoinChatPayload struct {
	OtherUserID string `json:"otherUserId"`
	SelfID      string `json:"selfId"`
}

// ChatJoinedPayload confirms membership in a conversation room.
type ChatJoinedPayload struct {
	ConversationID string `json:"conversationId"`
	OtherUserID    string `json:"otherUserId"`
}

// SendMessagePayload requests a new message. TempClientOriginID is echoed back verbatim.
type SendMessagePayload struct {
	SenderID           string  `json:"senderId"`
	RecipientID        string  `json:"recipientId"`
	Content            string  `json:"content"`
	TempClientOriginID *string `json:"tempClientOriginId,omitempty"`
}

// Sender is the author of a message with an optional display name.
type Sender struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Message is a stored chat message as seen on the wire.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Sender         Sender    `json:"sender"`
	Recipient      string    `json:"recipient"`
	Content        string    `json:"content"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ReceiveMessagePayload is broadcast to every member of a room.
// TempClientOriginID is null when the sender supplied none.
type ReceiveMessagePayload struct {
	Message            Message `json:"message"`
	TempClientOriginID *string `json:"tempClientOriginId"`
}

// MessageErrorPayload carries a human-readable send failure.
type MessageErrorPayload struct {
	Message string `json:"message"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
