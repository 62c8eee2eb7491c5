package chat

import (
	"context"
	"sync"

	"counsel/cmd/identity/ids"
)

// MemoryStore keeps messages in process. It is the default without a database.
type MemoryStore struct {
	mu    sync.Mutex
	clock appendClock
	convs map[string][]Message
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string][]Message)}
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Append stores a message; the lock makes slice order the append order.
func (s *MemoryStore) Append(ctx context.Context, in AppendInput) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.next()
	msg := Message{
		ID:             ids.Make(),
		ConversationID: in.ConversationKey,
		Sender:         Sender{ID: in.SenderID},
		Recipient:      in.RecipientID,
		Content:        in.Content,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.convs[in.ConversationKey] = append(s.convs[in.ConversationKey], msg)
	return msg, nil
}

// History returns a copy of the conversation in append order.
func (s *MemoryStore) History(ctx context.Context, key string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	out := append([]Message(nil), s.convs[key]...)
	s.mu.Unlock()
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
