package identity

import (
	"context"
	"strings"
	"time"
)

// Verification is a pending signup code for an email address. Only the hash
// of the code is kept.
type Verification struct {
	ID             string
	Email          string
	CodeHash       string
	Role           Role
	Specialization *string
	Attempts       int
	ExpiresAt      time.Time
	CreatedAt      time.Time
}

// Expired reports whether the code can no longer be redeemed at now.
func (v Verification) Expired(now time.Time) bool { return !now.Before(v.ExpiresAt) }

// Recovery keeps signup codes and password reset tokens.
type Recovery interface {
	CreateVerification(ctx context.Context, v Verification) (Verification, error)
	// LatestVerification returns the newest unconsumed code for email, expired or not.
	LatestVerification(ctx context.Context, email string) (Verification, error)
	// FailVerification counts one wrong guess and returns the new total.
	FailVerification(ctx context.Context, id string) (int, error)
	// ConsumeVerification marks a code used. A consumed or unknown id is a NotFoundError.
	ConsumeVerification(ctx context.Context, id string) error

	// PutPasswordReset stores tokenHash as the only live reset token of userID.
	PutPasswordReset(ctx context.Context, userID, tokenHash string, expiresAt, now time.Time) error
	// ResetPassword replaces the password of the user owning a live token and
	// burns the token. Unknown or expired tokens are a NotFoundError.
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (User, error)
}

func validateVerification(op string, v Verification) (Verification, error) {
	v.Email = NormalizeEmail(v.Email)
	v.Specialization = trimPtr(v.Specialization)
	switch {
	case v.Email == "" || !strings.Contains(v.Email, "@"):
		return v, invalid(op, "valid email is required")
	case strings.TrimSpace(v.CodeHash) == "":
		return v, invalid(op, "code hash is required")
	case !v.Role.Valid():
		return v, invalid(op, "invalid role")
	case v.ExpiresAt.IsZero():
		return v, invalid(op, "expiry is required")
	}
	if v.Role != RoleLawyer {
		v.Specialization = nil
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	return v, nil
}
