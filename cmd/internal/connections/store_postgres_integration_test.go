package connections

import (
	"context"
	"testing"
	"time"

	"counsel/cmd/identity"
	"counsel/cmd/internal/pgtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests are opt-in and require COUNSEL_DATABASE_URL.

func mustNewPostgresStores(t *testing.T) (*PostgresStore, *identity.PostgresStore) {
	t.Helper()

	pool := pgtest.Open(t)
	schema := pgtest.Schema(t, pool)

	users, err := identity.NewPostgresStore(pool, identity.WithSchema(schema))
	require.NoError(t, err)
	conns, err := NewPostgresStore(pool, WithSchema(schema))
	require.NoError(t, err)
	return conns, users
}

func TestPostgresStore_Lifecycle(t *testing.T) {
	t.Parallel()

	conns, users := mustNewPostgresStores(t)
	svc := NewService(conns, users)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	alice, bob := mkUser(t, users, "alice"), mkUser(t, users, "bob")

	c, err := svc.Request(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = svc.Request(ctx, bob.ID, alice.ID)
	assert.ErrorIs(t, err, ErrConflict)

	got, err := conns.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	pending, err := svc.Pending(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, alice.ID, pending[0].Requester.ID)

	_, err = svc.Respond(ctx, alice.ID, c.ID, StatusAccepted)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Respond(ctx, bob.ID, c.ID, StatusAccepted)
	require.NoError(t, err)

	ok, err := svc.AreConnected(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	contacts, err := svc.Accepted(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, alice.ID, contacts[0].User.ID)

	_, err = conns.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = conns.SetStatus(ctx, "missing", StatusDeclined, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewPostgresStore_RejectsBadSchema(t *testing.T) {
	t.Parallel()

	_, err := NewPostgresStore(nil, WithSchema("x;drop"))
	assert.Error(t, err)
	_, err = NewPostgresStore(nil)
	assert.Error(t, err)
}
