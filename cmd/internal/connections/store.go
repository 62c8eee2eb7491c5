package connections

import (
	"context"
	"time"
)

// Store persists connections.
type Store interface {
	// Create inserts a pending connection. Any existing connection between the
	// two users, in either direction, yields ErrConflict.
	Create(ctx context.Context, requesterID, recipientID string, now time.Time) (Connection, error)
	Get(ctx context.Context, id string) (Connection, error)
	SetStatus(ctx context.Context, id string, status Status, now time.Time) (Connection, error)

	// ListIncoming returns connections where userID is the recipient, oldest first.
	ListIncoming(ctx context.Context, userID string, status Status) ([]Connection, error)
	// ListAccepted returns accepted connections on either side, oldest first.
	ListAccepted(ctx context.Context, userID string) ([]Connection, error)
	// Between returns the connection for the unordered pair, if any.
	Between(ctx context.Context, a, b string) (Connection, error)
}
