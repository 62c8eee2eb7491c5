package identity

import (
	"context"
	"sort"
	"strings"
	"sync"

	"counsel/cmd/identity/ids"

	"github.com/samber/lo"
)

// MemoryStore is the in-process user directory used when no database is configured
// and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]UserAuth
	byEmail map[string]string
	byPhone map[string]string

	verifications map[string]Verification
	consumed      map[string]bool
	resets        map[string]memoryReset // by user id
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]UserAuth),
		byEmail: make(map[string]string),
		byPhone: make(map[string]string),

		verifications: make(map[string]Verification),
		consumed:      make(map[string]bool),
		resets:        make(map[string]memoryReset),
	}
}

// CreateUser inserts a user after validating it. Email and phone are unique.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	in, err := validateCreate(op, in)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[in.Email]; taken {
		return User{}, ConflictError{Op: op, Field: "email"}
	}
	if in.Phone != nil {
		if _, taken := s.byPhone[*in.Phone]; taken {
			return User{}, ConflictError{Op: op, Field: "phone"}
		}
	}

	u := User{
		ID:             ids.NewUserID(),
		Name:           in.Name,
		Email:          in.Email,
		Role:           in.Role,
		Specialization: in.Specialization,
		Profile:        in.Profile,
		Phone:          in.Phone,
		CreatedAt:      in.Now,
		UpdatedAt:      in.Now,
	}
	s.byID[u.ID] = UserAuth{User: u, PasswordHash: in.PasswordHash}
	s.byEmail[u.Email] = u.ID
	if u.Phone != nil {
		s.byPhone[*u.Phone] = u.ID
	}
	return u, nil
}

// GetUserByID returns the user with id or a NotFoundError.
func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	ua, ok := s.byID[strings.TrimSpace(id)]
	s.mu.RUnlock()

	if !ok {
		return User{}, NotFoundError{Op: "identity.GetUserByID", Resource: "user"}
	}
	return ua.User, nil
}

// GetUserAuthByEmail returns the user and password hash for a normalized email.
func (s *MemoryStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return UserAuth{}, NotFoundError{Op: "identity.GetUserAuthByEmail", Resource: "user"}
	}
	return s.byID[id], nil
}

// ListUsers returns users ordered by creation time, optionally filtered by role.
func (s *MemoryStore) ListUsers(ctx context.Context, f ListFilter) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	users := lo.FilterMap(lo.Values(s.byID), func(ua UserAuth, _ int) (User, bool) {
		return ua.User, f.Role == "" || ua.User.Role == f.Role
	})
	s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// DisplayNames resolves ids to names, skipping unknown ids.
func (s *MemoryStore) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(userIDs))
	for _, id := range lo.Uniq(userIDs) {
		if ua, ok := s.byID[id]; ok {
			out[id] = ua.User.Name
		}
	}
	return out, nil
}

var (
	_ Store    = (*MemoryStore)(nil)
	_ Recovery = (*MemoryStore)(nil)
)
