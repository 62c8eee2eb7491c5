package identity

import (
	"context"
	"time"

	"counsel/cmd/identity/ids"
)

type memoryReset struct {
	tokenHash string
	expiresAt time.Time
}

func (s *MemoryStore) CreateVerification(ctx context.Context, v Verification) (Verification, error) {
	if err := ctx.Err(); err != nil {
		return Verification{}, err
	}
	v, err := validateVerification("identity.CreateVerification", v)
	if err != nil {
		return Verification{}, err
	}
	v.ID = ids.Make()
	v.Attempts = 0

	s.mu.Lock()
	s.verifications[v.ID] = v
	s.mu.Unlock()
	return v, nil
}

func (s *MemoryStore) LatestVerification(ctx context.Context, email string) (Verification, error) {
	if err := ctx.Err(); err != nil {
		return Verification{}, err
	}
	email = NormalizeEmail(email)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  Verification
		found bool
	)
	for id, v := range s.verifications {
		if v.Email != email || s.consumed[id] {
			continue
		}
		// ULIDs break ties between codes issued in the same instant.
		if !found || v.CreatedAt.After(best.CreatedAt) ||
			(v.CreatedAt.Equal(best.CreatedAt) && v.ID > best.ID) {
			best, found = v, true
		}
	}
	if !found {
		return Verification{}, NotFoundError{Op: "identity.LatestVerification", Resource: "verification"}
	}
	return best, nil
}

func (s *MemoryStore) FailVerification(ctx context.Context, id string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.verifications[id]
	if !ok {
		return 0, NotFoundError{Op: "identity.FailVerification", Resource: "verification"}
	}
	v.Attempts++
	s.verifications[id] = v
	return v.Attempts, nil
}

func (s *MemoryStore) ConsumeVerification(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.verifications[id]; !ok || s.consumed[id] {
		return NotFoundError{Op: "identity.ConsumeVerification", Resource: "verification"}
	}
	s.consumed[id] = true
	return nil
}

func (s *MemoryStore) PutPasswordReset(ctx context.Context, userID, tokenHash string, expiresAt, _ time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[userID]; !ok {
		return NotFoundError{Op: "identity.PutPasswordReset", Resource: "user"}
	}
	s.resets[userID] = memoryReset{tokenHash: tokenHash, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if passwordHash == "" {
		return User{}, invalid("identity.ResetPassword", "password hash is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, r := range s.resets {
		if r.tokenHash != tokenHash || !now.Before(r.expiresAt) {
			continue
		}
		ua := s.byID[userID]
		ua.PasswordHash = passwordHash
		ua.User.UpdatedAt = now
		s.byID[userID] = ua
		delete(s.resets, userID)
		return ua.User, nil
	}
	return User{}, NotFoundError{Op: "identity.ResetPassword", Resource: "reset token"}
}
