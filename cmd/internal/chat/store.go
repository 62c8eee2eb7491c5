package chat

import (
	"context"
	"time"
)

// Store persists messages. Implementations assign id and timestamps at write
// time and serialize concurrent appends to the same conversation.
// History of an unknown key is empty, not an error, and is returned in append order.
type Store interface {
	Append(ctx context.Context, in AppendInput) (Message, error)
	History(ctx context.Context, key string) ([]Message, error)
	Close() error
}

// appendClock stamps appends so createdAt never decreases, even if the wall
// clock steps back. Callers hold the store's write lock.
type appendClock struct {
	now  func() time.Time
	last time.Time
}

func (c *appendClock) next() time.Time {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	t := now().UTC()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
