package proposals

import (
	"context"
	"strings"
	"testing"

	"counsel/cmd/identity"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkUser(t *testing.T, users identity.Store, name string, role identity.Role) identity.User {
	t.Helper()
	in := identity.CreateUserInput{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         role,
	}
	if role == identity.RoleLawyer {
		in.Specialization = lo.ToPtr("Civil Lawyer")
	}
	u, err := users.CreateUser(context.Background(), in)
	require.NoError(t, err)
	return u
}

func newService(t *testing.T) (*Service, identity.Store) {
	t.Helper()
	users := identity.NewMemoryStore()
	return NewService(NewMemoryStore(), users), users
}

func TestService_CreateInboxSentRespond(t *testing.T) {
	ctx := context.Background()
	svc, users := newService(t)
	client := mkUser(t, users, "carol", identity.RoleClient)
	lawyer := mkUser(t, users, "larry", identity.RoleLawyer)

	sent, err := svc.Create(ctx, client.ID, lawyer.ID, "  Landlord kept my deposit.  ")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, sent.Proposal.Status)
	assert.Equal(t, "Landlord kept my deposit.", sent.Proposal.Description)
	assert.Equal(t, lawyer.ID, sent.Lawyer.ID)
	assert.Equal(t, "Civil Lawyer", *sent.Lawyer.Specialization)

	inbox, err := svc.Inbox(ctx, lawyer.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, client.Email, inbox[0].Client.Email)

	mine, err := svc.Sent(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, sent.Proposal.ID, mine[0].Proposal.ID)

	empty, err := svc.Inbox(ctx, client.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	p, err := svc.Respond(ctx, lawyer.ID, sent.Proposal.ID, StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, p.Status)
	assert.False(t, p.UpdatedAt.Before(p.CreatedAt))

	mine, err = svc.Sent(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, mine[0].Proposal.Status)
}

func TestService_CreateErrors(t *testing.T) {
	ctx := context.Background()
	svc, users := newService(t)
	client := mkUser(t, users, "carol", identity.RoleClient)
	other := mkUser(t, users, "dave", identity.RoleClient)
	lawyer := mkUser(t, users, "larry", identity.RoleLawyer)

	_, err := svc.Create(ctx, client.ID, "", "x")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.Create(ctx, client.ID, lawyer.ID, "   ")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Create(ctx, client.ID, lawyer.ID, strings.Repeat("é", MaxDescriptionLen))
	assert.NoError(t, err, "limit counts characters, not bytes")
	_, err = svc.Create(ctx, client.ID, lawyer.ID, strings.Repeat("a", MaxDescriptionLen+1))
	assert.ErrorIs(t, err, ErrTooLong)

	_, err = svc.Create(ctx, client.ID, "00000000-0000-0000-0000-000000000000", "x")
	assert.True(t, identity.IsNotFound(err), "got %v", err)

	_, err = svc.Create(ctx, client.ID, other.ID, "x")
	assert.ErrorIs(t, err, ErrNotLawyer)
}

func TestService_RespondErrors(t *testing.T) {
	ctx := context.Background()
	svc, users := newService(t)
	client := mkUser(t, users, "carol", identity.RoleClient)
	lawyer := mkUser(t, users, "larry", identity.RoleLawyer)
	rival := mkUser(t, users, "rita", identity.RoleLawyer)

	sent, err := svc.Create(ctx, client.ID, lawyer.ID, "contract dispute")
	require.NoError(t, err)

	_, err = svc.Respond(ctx, rival.ID, sent.Proposal.ID, StatusAccepted)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Respond(ctx, client.ID, sent.Proposal.ID, StatusAccepted)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Respond(ctx, lawyer.ID, "missing", StatusAccepted)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Respond(ctx, lawyer.ID, sent.Proposal.ID, StatusPending)
	assert.ErrorIs(t, err, ErrBadStatus)

	p, err := svc.Respond(ctx, lawyer.ID, sent.Proposal.ID, StatusDeclined)
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, p.Status)
}

func TestParseResponse(t *testing.T) {
	for in, want := range map[string]bool{
		"accepted": true,
		"declined": true,
		"pending":  false,
		"":         false,
	} {
		_, ok := ParseResponse(in)
		assert.Equal(t, want, ok, in)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore()
	_, err := s.ListByLawyer(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
