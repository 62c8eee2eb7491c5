package proposals

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"counsel/cmd/identity"
)

// Service applies the proposal rules on top of a Store and the user directory.
type Service struct {
	store Store
	users identity.Store
	now   func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, users identity.Store) *Service {
	return &Service{store: store, users: users, now: time.Now}
}

// Received is a proposal in a lawyer's inbox with its client's public record.
type Received struct {
	Proposal Proposal
	Client   identity.User
}

// Sent is a proposal a client sent with its lawyer's public record.
type Sent struct {
	Proposal Proposal
	Lawyer   identity.User
}

// Create records a pending proposal from clientID to lawyerID. The addressee
// must exist and hold the lawyer role.
func (s *Service) Create(ctx context.Context, clientID, lawyerID, description string) (Sent, error) {
	clientID, lawyerID = strings.TrimSpace(clientID), strings.TrimSpace(lawyerID)
	description = strings.TrimSpace(description)
	switch {
	case clientID == "" || lawyerID == "" || description == "":
		return Sent{}, ErrInvalid
	case utf8.RuneCountInString(description) > MaxDescriptionLen:
		return Sent{}, ErrTooLong
	}

	lawyer, err := s.users.GetUserByID(ctx, lawyerID)
	if err != nil {
		return Sent{}, err
	}
	if lawyer.Role != identity.RoleLawyer {
		return Sent{}, ErrNotLawyer
	}

	p, err := s.store.Create(ctx, clientID, lawyerID, description, s.now().UTC())
	if err != nil {
		return Sent{}, err
	}
	return Sent{Proposal: p, Lawyer: lawyer}, nil
}

// Inbox lists proposals addressed to lawyerID. Clients that no longer exist are skipped.
func (s *Service) Inbox(ctx context.Context, lawyerID string) ([]Received, error) {
	ps, err := s.store.ListByLawyer(ctx, lawyerID)
	if err != nil {
		return nil, err
	}

	out := make([]Received, 0, len(ps))
	for _, p := range ps {
		u, err := s.users.GetUserByID(ctx, p.ClientID)
		if identity.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Received{Proposal: p, Client: u})
	}
	return out, nil
}

// Sent lists proposals clientID has sent. Lawyers that no longer exist are skipped.
func (s *Service) Sent(ctx context.Context, clientID string) ([]Sent, error) {
	ps, err := s.store.ListByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	out := make([]Sent, 0, len(ps))
	for _, p := range ps {
		u, err := s.users.GetUserByID(ctx, p.LawyerID)
		if identity.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Sent{Proposal: p, Lawyer: u})
	}
	return out, nil
}

// Respond sets the status of proposal id on behalf of actorID, who must be its lawyer.
func (s *Service) Respond(ctx context.Context, actorID, id string, status Status) (Proposal, error) {
	if _, ok := ParseResponse(string(status)); !ok {
		return Proposal{}, ErrBadStatus
	}

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	if p.LawyerID != actorID {
		return Proposal{}, ErrForbidden
	}
	return s.store.SetStatus(ctx, id, status, s.now().UTC())
}
