package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"counsel/cmd/identity/ids"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps messages in an embedded Badger database.
//
// Keys are "msg\x00{conversation}\x00{sequence, 20 digits}" so a prefix scan
// returns a conversation in append order. Values are JSON.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence

	// mu serializes appends so the sequence, the clock and the write are one step.
	mu    sync.Mutex
	clock appendClock
}

const (
	badgerSep      = "\x00"
	badgerSeqKey   = "seq\x00msg"
	badgerSeqLease = 128
)

// OpenBadgerStore opens (or creates) a Badger directory at path.
// An empty path opens an in-memory database.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("chat: open badger: %w", err)
	}
	s, err := NewBadgerStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewBadgerStore wraps an already open database. Close closes it.
func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	seq, err := db.GetSequence([]byte(badgerSeqKey), badgerSeqLease)
	if err != nil {
		return nil, fmt.Errorf("chat: badger sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

// Close releases the sequence lease and closes the underlying database.
func (s *BadgerStore) Close() error {
	return errors.Join(s.seq.Release(), s.db.Close())
}

type diskMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	RecipientID    string `json:"recipientId"`
	Content        string `json:"content"`
	Read           bool   `json:"read"`
	CreatedAt      int64  `json:"createdAt"`
	UpdatedAt      int64  `json:"updatedAt"`
}

func badgerPrefix(key string) []byte {
	return []byte("msg" + badgerSep + key + badgerSep)
}

// Append writes one message.
func (s *BadgerStore) Append(ctx context.Context, in AppendInput) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.seq.Next()
	if err != nil {
		return Message{}, fmt.Errorf("chat: next sequence: %w", err)
	}
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

	raw, err := json.Marshal(diskMessage{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.Sender.ID,
		RecipientID:    msg.Recipient,
		Content:        msg.Content,
		CreatedAt:      now.UnixNano(),
		UpdatedAt:      now.UnixNano(),
	})
	if err != nil {
		return Message{}, err
	}

	k := fmt.Sprintf("%s%020d", badgerPrefix(in.ConversationKey), n)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(k), raw)
	}); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// History scans the conversation prefix in key order. Entries belonging to
// another conversation are skipped.
func (s *BadgerStore) History(ctx context.Context, key string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Message, 0, 32)
	prefix := badgerPrefix(key)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var dm diskMessage
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &dm)
			}); err != nil {
				return err
			}
			if dm.ConversationID != key {
				continue
			}
			out = append(out, Message{
				ID:             dm.ID,
				ConversationID: dm.ConversationID,
				Sender:         Sender{ID: dm.SenderID},
				Recipient:      dm.RecipientID,
				Content:        dm.Content,
				Read:           dm.Read,
				CreatedAt:      time.Unix(0, dm.CreatedAt).UTC(),
				UpdatedAt:      time.Unix(0, dm.UpdatedAt).UTC(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var _ Store = (*BadgerStore)(nil)
