package connections

import (
	"context"
	"errors"
	"strings"
	"time"

	"counsel/cmd/identity"
)

// Service applies the connection rules on top of a Store and the user directory.
type Service struct {
	store Store
	users identity.Store
	now   func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, users identity.Store) *Service {
	return &Service{store: store, users: users, now: time.Now}
}

// Pending is an incoming request with its requester's public record.
type Pending struct {
	Connection Connection
	Requester  identity.User
}

// Contact is the other party of an accepted connection.
type Contact struct {
	User         identity.User
	ConnectionID string
}

// Request creates a pending connection from requesterID to recipientID.
func (s *Service) Request(ctx context.Context, requesterID, recipientID string) (Connection, error) {
	requesterID, recipientID = strings.TrimSpace(requesterID), strings.TrimSpace(recipientID)
	switch {
	case requesterID == "" || recipientID == "":
		return Connection{}, ErrInvalid
	case requesterID == recipientID:
		return Connection{}, ErrSelf
	}

	if _, err := s.users.GetUserByID(ctx, recipientID); err != nil {
		return Connection{}, err
	}
	return s.store.Create(ctx, requesterID, recipientID, s.now().UTC())
}

// Pending lists incoming pending requests for userID. Requesters that no longer
// exist are skipped.
func (s *Service) Pending(ctx context.Context, userID string) ([]Pending, error) {
	conns, err := s.store.ListIncoming(ctx, userID, StatusPending)
	if err != nil {
		return nil, err
	}

	out := make([]Pending, 0, len(conns))
	for _, c := range conns {
		u, err := s.users.GetUserByID(ctx, c.RequesterID)
		if identity.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Pending{Connection: c, Requester: u})
	}
	return out, nil
}

// Accepted lists the other party of every accepted connection of userID.
func (s *Service) Accepted(ctx context.Context, userID string) ([]Contact, error) {
	conns, err := s.store.ListAccepted(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]Contact, 0, len(conns))
	for _, c := range conns {
		u, err := s.users.GetUserByID(ctx, c.Other(userID))
		if identity.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Contact{User: u, ConnectionID: c.ID})
	}
	return out, nil
}

// Respond sets the status of connection id on behalf of actorID, who must be its recipient.
func (s *Service) Respond(ctx context.Context, actorID, id string, status Status) (Connection, error) {
	if _, ok := ParseResponse(string(status)); !ok {
		return Connection{}, ErrInvalid
	}

	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Connection{}, err
	}
	if c.RecipientID != actorID {
		return Connection{}, ErrForbidden
	}
	return s.store.SetStatus(ctx, id, status, s.now().UTC())
}

// AreConnected reports whether a and b share an accepted connection.
func (s *Service) AreConnected(ctx context.Context, a, b string) (bool, error) {
	c, err := s.store.Between(ctx, a, b)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return c.Status == StatusAccepted, nil
}
