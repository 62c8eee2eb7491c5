package identity

import (
	"context"
	"strings"
	"time"
)

// CreateUserInput describes a new account. PasswordHash is already hashed.
type CreateUserInput struct {
	Name           string
	Email          string
	PasswordHash   string
	Role           Role
	Specialization *string
	Profile        Profile
	Phone          *string
	Now            time.Time
}

// ListFilter narrows ListUsers. A zero Role lists everyone.
type ListFilter struct {
	Role Role
}

// Store is the user directory persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)
	ListUsers(ctx context.Context, f ListFilter) ([]User, error)

	// DisplayNames resolves user ids to names. Unknown ids are absent from the map.
	DisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}

// validateCreate normalizes in and enforces the account rules shared by all stores.
func validateCreate(op string, in CreateUserInput) (CreateUserInput, error) {
	in.Name = NormalizeName(in.Name)
	in.Email = NormalizeEmail(in.Email)
	in.Profile.Bio = strings.TrimSpace(in.Profile.Bio)
	in.Profile.Location = strings.TrimSpace(in.Profile.Location)
	in.Specialization = trimPtr(in.Specialization)
	in.Phone = trimPtr(in.Phone)

	switch {
	case in.Name == "":
		return in, invalid(op, "name is required")
	case in.Email == "" || !strings.Contains(in.Email, "@"):
		return in, invalid(op, "valid email is required")
	case strings.TrimSpace(in.PasswordHash) == "":
		return in, invalid(op, "password hash is required")
	case !in.Role.Valid():
		return in, invalid(op, "invalid role")
	}

	if in.Role == RoleLawyer {
		if in.Specialization == nil || !ValidSpecialization(*in.Specialization) {
			return in, invalid(op, "a valid specialization is required for lawyers")
		}
	} else {
		in.Specialization = nil
	}

	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}
