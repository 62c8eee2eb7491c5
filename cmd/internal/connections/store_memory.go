package connections

import (
	"context"
	"sort"
	"sync"
	"time"

	"counsel/cmd/identity/ids"

	"github.com/samber/lo"
)

// MemoryStore keeps connections in process.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]Connection
	byPair map[[2]string]string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]Connection),
		byPair: make(map[[2]string]string),
	}
}

func pairKey(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

func (s *MemoryStore) Create(ctx context.Context, requesterID, recipientID string, now time.Time) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return Connection{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pk := pairKey(requesterID, recipientID)
	if _, exists := s.byPair[pk]; exists {
		return Connection{}, ErrConflict
	}

	c := Connection{
		ID:          ids.Make(),
		RequesterID: requesterID,
		RecipientID: recipientID,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.byID[c.ID] = c
	s.byPair[pk] = c.ID
	return c, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return Connection{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return Connection{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, id string, status Status, now time.Time) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return Connection{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return Connection{}, ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = now
	s.byID[id] = c
	return c, nil
}

func (s *MemoryStore) ListIncoming(ctx context.Context, userID string, status Status) ([]Connection, error) {
	return s.filter(ctx, func(c Connection) bool {
		return c.RecipientID == userID && c.Status == status
	})
}

func (s *MemoryStore) ListAccepted(ctx context.Context, userID string) ([]Connection, error) {
	return s.filter(ctx, func(c Connection) bool {
		return c.Status == StatusAccepted && (c.RequesterID == userID || c.RecipientID == userID)
	})
}

func (s *MemoryStore) Between(ctx context.Context, a, b string) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return Connection{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPair[pairKey(a, b)]
	if !ok {
		return Connection{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryStore) filter(ctx context.Context, keep func(Connection) bool) ([]Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := lo.Filter(lo.Values(s.byID), func(c Connection, _ int) bool { return keep(c) })
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
