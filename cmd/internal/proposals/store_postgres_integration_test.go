package proposals

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

func TestPostgresStore_Lifecycle(t *testing.T) {
	t.Parallel()

	pool := pgtest.Open(t)
	schema := pgtest.Schema(t, pool)
	users, err := identity.NewPostgresStore(pool, identity.WithSchema(schema))
	require.NoError(t, err)
	store, err := NewPostgresStore(pool, WithSchema(schema))
	require.NoError(t, err)
	svc := NewService(store, users)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := mkUser(t, users, "carol", identity.RoleClient)
	lawyer := mkUser(t, users, "larry", identity.RoleLawyer)

	sent, err := svc.Create(ctx, client.ID, lawyer.ID, "custody question")
	require.NoError(t, err)

	got, err := store.Get(ctx, sent.Proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, "custody question", got.Description)
	assert.Equal(t, StatusPending, got.Status)

	inbox, err := svc.Inbox(ctx, lawyer.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, client.ID, inbox[0].Client.ID)

	_, err = svc.Respond(ctx, client.ID, sent.Proposal.ID, StatusAccepted)
	assert.ErrorIs(t, err, ErrForbidden)

	p, err := svc.Respond(ctx, lawyer.ID, sent.Proposal.ID, StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, p.Status)

	mine, err := svc.Sent(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, StatusAccepted, mine[0].Proposal.Status)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewPostgresStore_RejectsBadSchema(t *testing.T) {
	t.Parallel()

	_, err := NewPostgresStore(nil, WithSchema("x;drop"))
	assert.Error(t, err)
	_, err = NewPostgresStore(nil)
	assert.Error(t, err)
}
