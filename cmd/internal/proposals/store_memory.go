package proposals

import (
	"context"
	"sort"
	"sync"
	"time"

	"counsel/cmd/identity/ids"

	"github.com/samber/lo"
)

// MemoryStore keeps proposals in process.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Proposal
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Proposal)}
}

func (s *MemoryStore) Create(ctx context.Context, clientID, lawyerID, description string, now time.Time) (Proposal, error) {
	if err := ctx.Err(); err != nil {
		return Proposal{}, err
	}

	p := Proposal{
		ID:          ids.Make(),
		ClientID:    clientID,
		LawyerID:    lawyerID,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.byID[p.ID] = p
	s.mu.Unlock()
	return p, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Proposal, error) {
	if err := ctx.Err(); err != nil {
		return Proposal{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return Proposal{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, id string, status Status, now time.Time) (Proposal, error) {
	if err := ctx.Err(); err != nil {
		return Proposal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return Proposal{}, ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = now
	s.byID[id] = p
	return p, nil
}

func (s *MemoryStore) ListByLawyer(ctx context.Context, lawyerID string) ([]Proposal, error) {
	return s.filter(ctx, func(p Proposal) bool { return p.LawyerID == lawyerID })
}

func (s *MemoryStore) ListByClient(ctx context.Context, clientID string) ([]Proposal, error) {
	return s.filter(ctx, func(p Proposal) bool { return p.ClientID == clientID })
}

func (s *MemoryStore) filter(ctx context.Context, keep func(Proposal) bool) ([]Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := lo.Filter(lo.Values(s.byID), func(p Proposal, _ int) bool { return keep(p) })
	s.mu.RUnlock()

	// ULIDs sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
