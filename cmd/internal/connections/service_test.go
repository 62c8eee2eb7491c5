package connections

import (
	"context"
	"testing"

	"counsel/cmd/identity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkUser(t *testing.T, users identity.Store, name string) identity.User {
	t.Helper()
	u, err := users.CreateUser(context.Background(), identity.CreateUserInput{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         identity.RoleClient,
	})
	require.NoError(t, err)
	return u
}

func newService(t *testing.T) (*Service, identity.Store) {
	t.Helper()
	users := identity.NewMemoryStore()
	return NewService(NewMemoryStore(), users), users
}

func TestService_RequestRespondAccept(t *testing.T) {
	ctx := context.Background()
	svc, users := newService(t)
	alice, bob := mkUser(t, users, "alice"), mkUser(t, users, "bob")

	c, err := svc.Request(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, c.Status)
	assert.Equal(t, alice.ID, c.RequesterID)

	pending, err := svc.Pending(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, alice.Name, pending[0].Requester.Name)

	none, err := svc.Pending(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	ok, err := svc.AreConnected(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	updated, err := svc.Respond(ctx, bob.ID, c.ID, StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, updated.Status)

	for _, pair := range [][2]string{{alice.ID, bob.ID}, {bob.ID, alice.ID}} {
		ok, err := svc.AreConnected(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, ok)
	}

	contacts, err := svc.Accepted(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, bob.ID, contacts[0].User.ID)
	assert.Equal(t, c.ID, contacts[0].ConnectionID)

	contacts, err = svc.Accepted(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, alice.ID, contacts[0].User.ID)
}

func TestService_RequestErrors(t *testing.T) {
	ctx := context.Background()
	svc, users := newService(t)
	alice, bob := mkUser(t, users, "alice"), mkUser(t, users, "bob")

	_, err := svc.Request(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, ErrSelf)

	_, err = svc.Request(ctx, alice.ID, "  ")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Request(ctx, alice.ID, "00000000-0000-0000-0000-000000000000")
	assert.True(t, identity.IsNotFound(err), "got %v", err)

	_, err = svc.Request(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = svc.Request(ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.Request(ctx, bob.ID, alice.ID)
	assert.ErrorIs(t, err, ErrConflict, "reverse direction counts as existing")
}

func TestService_RespondErrors(t *testing.T) {
	ctx := context.Background()
	svc, users := newService(t)
	alice, bob := mkUser(t, users, "alice"), mkUser(t, users, "bob")

	c, err := svc.Request(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = svc.Respond(ctx, alice.ID, c.ID, StatusAccepted)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Respond(ctx, bob.ID, "missing", StatusAccepted)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Respond(ctx, bob.ID, c.ID, StatusPending)
	assert.ErrorIs(t, err, ErrInvalid)

	declined, err := svc.Respond(ctx, bob.ID, c.ID, StatusDeclined)
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, declined.Status)

	ok, err := svc.AreConnected(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseResponse(t *testing.T) {
	for in, want := range map[string]bool{
		"accepted": true,
		"declined": true,
		"pending":  false,
		"blocked":  false,
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
	_, err := s.ListAccepted(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Between(ctx, "a", "b")
	assert.ErrorIs(t, err, context.Canceled)
}
