package proposals

import (
	"context"
	"time"
)

// Store persists proposals. Lists are oldest first.
type Store interface {
	Create(ctx context.Context, clientID, lawyerID, description string, now time.Time) (Proposal, error)
	Get(ctx context.Context, id string) (Proposal, error)
	SetStatus(ctx context.Context, id string, status Status, now time.Time) (Proposal, error)

	ListByLawyer(ctx context.Context, lawyerID string) ([]Proposal, error)
	ListByClient(ctx context.Context, clientID string) ([]Proposal, error)
}
