package chat

import "time"

// MaxContentRunes bounds message content length.
const MaxContentRunes = 4000

// Sender identifies the author. Name is filled from the user directory when known.
type Sender struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Message is one persisted direct message.
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

// AppendInput is a validated append request.
type AppendInput struct {
	ConversationKey string `validate:"required"`
	SenderID        string `validate:"required"`
	RecipientID     string `validate:"required"`
	Content         string `validate:"required,max=4000"`
}
