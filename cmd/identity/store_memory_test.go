package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestMemoryStore_CreateUser_NormalizesAndAssignsID(t *testing.T) {
	r := require.New(t)
	s := NewMemoryStore()

	u, err := s.CreateUser(context.Background(), CreateUserInput{
		Name:         "  Ada   Lovelace ",
		Email:        "Ada@Example.COM ",
		PasswordHash: "hash",
		Role:         RoleClient,
	})
	r.NoError(err)
	r.NotEmpty(u.ID)
	r.Equal("Ada Lovelace", u.Name)
	r.Equal("ada@example.com", u.Email)
	r.False(u.CreatedAt.IsZero())
	r.Equal(u.CreatedAt, u.UpdatedAt)

	got, err := s.GetUserByID(context.Background(), u.ID)
	r.NoError(err)
	r.Equal(u, got)
}

func TestMemoryStore_CreateUser_ConflictEmail_CaseInsensitive(t *testing.T) {
	r := require.New(t)
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.CreateUser(ctx, CreateUserInput{Name: "A", Email: "user@example.com", PasswordHash: "h", Role: RoleClient})
	r.NoError(err)

	_, err = s.CreateUser(ctx, CreateUserInput{Name: "B", Email: "USER@example.com", PasswordHash: "h", Role: RoleStudent})
	r.Error(err)
	r.True(IsConflict(err))
	r.ErrorIs(err, ErrConflict)

	var ce ConflictError
	r.ErrorAs(err, &ce)
	r.Equal("email", ce.Field)
}

func TestMemoryStore_CreateUser_ConflictPhone(t *testing.T) {
	r := require.New(t)
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.CreateUser(ctx, CreateUserInput{Name: "A", Email: "a@example.com", PasswordHash: "h", Role: RoleClient, Phone: strPtr("+15550100")})
	r.NoError(err)

	_, err = s.CreateUser(ctx, CreateUserInput{Name: "B", Email: "b@example.com", PasswordHash: "h", Role: RoleClient, Phone: strPtr(" +15550100 ")})
	var ce ConflictError
	r.ErrorAs(err, &ce)
	r.Equal("phone", ce.Field)
}

func TestMemoryStore_CreateUser_Validation(t *testing.T) {
	cases := []struct {
		name string
		in   CreateUserInput
	}{
		{"missing name", CreateUserInput{Email: "a@example.com", PasswordHash: "h", Role: RoleClient}},
		{"bad email", CreateUserInput{Name: "A", Email: "nope", PasswordHash: "h", Role: RoleClient}},
		{"missing hash", CreateUserInput{Name: "A", Email: "a@example.com", Role: RoleClient}},
		{"unknown role", CreateUserInput{Name: "A", Email: "a@example.com", PasswordHash: "h", Role: "judge"}},
		{"lawyer without specialization", CreateUserInput{Name: "A", Email: "a@example.com", PasswordHash: "h", Role: RoleLawyer}},
		{"lawyer with unknown specialization", CreateUserInput{Name: "A", Email: "a@example.com", PasswordHash: "h", Role: RoleLawyer, Specialization: strPtr("Space Lawyer")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewMemoryStore().CreateUser(context.Background(), tc.in)
			require.Error(t, err)
			require.True(t, IsInvalidInput(err), "got %v", err)
		})
	}
}

func TestMemoryStore_CreateUser_SpecializationOnlyForLawyers(t *testing.T) {
	r := require.New(t)
	s := NewMemoryStore()

	lawyer, err := s.CreateUser(context.Background(), CreateUserInput{
		Name: "L", Email: "l@example.com", PasswordHash: "h", Role: RoleLawyer, Specialization: strPtr("Tax Lawyer"),
	})
	r.NoError(err)
	r.NotNil(lawyer.Specialization)
	r.Equal("Tax Lawyer", *lawyer.Specialization)

	client, err := s.CreateUser(context.Background(), CreateUserInput{
		Name: "C", Email: "c@example.com", PasswordHash: "h", Role: RoleClient, Specialization: strPtr("Tax Lawyer"),
	})
	r.NoError(err)
	r.Nil(client.Specialization)
}

func TestMemoryStore_GetUserAuthByEmail(t *testing.T) {
	r := require.New(t)
	s := NewMemoryStore()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, CreateUserInput{Name: "A", Email: "a@example.com", PasswordHash: "secret-hash", Role: RoleClient})
	r.NoError(err)

	ua, err := s.GetUserAuthByEmail(ctx, " A@EXAMPLE.com")
	r.NoError(err)
	r.Equal(u.ID, ua.User.ID)
	r.Equal("secret-hash", ua.PasswordHash)

	_, err = s.GetUserAuthByEmail(ctx, "missing@example.com")
	r.True(IsNotFound(err))

	_, err = s.GetUserByID(ctx, "missing")
	r.True(IsNotFound(err))
}

func TestMemoryStore_ListUsers_OrderAndRoleFilter(t *testing.T) {
	r := require.New(t)
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	second, err := s.CreateUser(ctx, CreateUserInput{Name: "B", Email: "b@example.com", PasswordHash: "h", Role: RoleStudent, Now: base.Add(time.Minute)})
	r.NoError(err)
	first, err := s.CreateUser(ctx, CreateUserInput{Name: "A", Email: "a@example.com", PasswordHash: "h", Role: RoleClient, Now: base})
	r.NoError(err)

	all, err := s.ListUsers(ctx, ListFilter{})
	r.NoError(err)
	r.Len(all, 2)
	r.Equal(first.ID, all[0].ID)
	r.Equal(second.ID, all[1].ID)

	students, err := s.ListUsers(ctx, ListFilter{Role: RoleStudent})
	r.NoError(err)
	r.Len(students, 1)
	r.Equal(second.ID, students[0].ID)

	lawyers, err := s.ListUsers(ctx, ListFilter{Role: RoleLawyer})
	r.NoError(err)
	r.Empty(lawyers)
}

func TestMemoryStore_DisplayNames_SkipsUnknown(t *testing.T) {
	r := require.New(t)
	s := NewMemoryStore()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, CreateUserInput{Name: "Ada", Email: "a@example.com", PasswordHash: "h", Role: RoleClient})
	r.NoError(err)

	names, err := s.DisplayNames(ctx, []string{u.ID, u.ID, "ghost"})
	r.NoError(err)
	r.Equal(map[string]string{u.ID: "Ada"}, names)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().ListUsers(ctx, ListFilter{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Lawyer ")
	require.True(t, ok)
	require.Equal(t, RoleLawyer, r)

	_, ok = ParseRole("judge")
	require.False(t, ok)
}
