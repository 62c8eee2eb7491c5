package connapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"counsel/cmd/identity"
	"counsel/cmd/internal/auth/session"
	"counsel/cmd/internal/connections"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv    *httptest.Server
	tokens session.TokenManager
	users  identity.Store
}

func setup(t *testing.T) *fixture {
	t.Helper()

	cfg := session.DefaultConfig()
	cfg.Secret = "0123456789abcdef0123456789abcdef"
	tokens, err := session.NewJWTManager(cfg)
	require.NoError(t, err)

	users := identity.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := connections.NewService(connections.NewMemoryStore(), users)

	mux := http.NewServeMux()
	NewHandler(log, svc, session.NewResolver(tokens, "token")).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, tokens: tokens, users: users}
}

func (f *fixture) user(t *testing.T, name string) (identity.User, string) {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), identity.CreateUserInput{
		Name: name, Email: name + "@example.com", PasswordHash: "x", Role: identity.RoleClient,
	})
	require.NoError(t, err)
	tok, _, err := f.tokens.Issue(session.Identity{ID: u.ID, Role: u.Role}, time.Now().UTC())
	require.NoError(t, err)
	return u, tok
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rdr)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func TestConnections_RequestPendingRespondAccepted(t *testing.T) {
	f := setup(t)
	alice, aliceTok := f.user(t, "alice")
	bob, bobTok := f.user(t, "bob")

	status, raw := f.do(t, http.MethodPost, "/api/connections/request", aliceTok, map[string]string{"recipientId": bob.ID})
	require.Equal(t, http.StatusCreated, status, string(raw))
	var created connectionResponse
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Equal(t, "pending", created.Connection.Status)
	assert.Equal(t, alice.ID, created.Connection.RequesterID)

	status, raw = f.do(t, http.MethodGet, "/api/connections/pending", bobTok, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var pending []pendingJSON
	require.NoError(t, json.Unmarshal(raw, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, created.Connection.ID, pending[0].ID)
	assert.Equal(t, "alice", pending[0].Requester.Name)

	status, raw = f.do(t, http.MethodPut, "/api/connections/respond/"+created.Connection.ID, aliceTok, map[string]string{"status": "accepted"})
	assert.Equal(t, http.StatusForbidden, status, string(raw))

	status, raw = f.do(t, http.MethodPut, "/api/connections/respond/"+created.Connection.ID, bobTok, map[string]string{"status": "accepted"})
	require.Equal(t, http.StatusOK, status, string(raw))
	var responded connectionResponse
	require.NoError(t, json.Unmarshal(raw, &responded))
	assert.Equal(t, "Request accepted.", responded.Message)

	status, raw = f.do(t, http.MethodGet, "/api/connections/accepted", aliceTok, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var contacts []map[string]any
	require.NoError(t, json.Unmarshal(raw, &contacts))
	require.Len(t, contacts, 1)
	assert.Equal(t, bob.ID, contacts[0]["id"])
	assert.Equal(t, created.Connection.ID, contacts[0]["connectionId"])
	assert.Equal(t, "bob", contacts[0]["name"])
}

func TestConnections_RequestErrors(t *testing.T) {
	f := setup(t)
	alice, aliceTok := f.user(t, "alice")
	bob, bobTok := f.user(t, "bob")

	status, _ := f.do(t, http.MethodPost, "/api/connections/request", "", map[string]string{"recipientId": bob.ID})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.do(t, http.MethodPost, "/api/connections/request", aliceTok, map[string]string{"recipientId": alice.ID})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/api/connections/request", aliceTok, map[string]string{"recipientId": "00000000-0000-0000-0000-000000000000"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodPost, "/api/connections/request", aliceTok, map[string]string{"nope": "x"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/api/connections/request", aliceTok, map[string]string{"recipientId": bob.ID})
	require.Equal(t, http.StatusCreated, status)

	status, _ = f.do(t, http.MethodPost, "/api/connections/request", bobTok, map[string]string{"recipientId": alice.ID})
	assert.Equal(t, http.StatusConflict, status)
}

func TestConnections_RespondErrors(t *testing.T) {
	f := setup(t)
	_, tok := f.user(t, "alice")

	status, _ := f.do(t, http.MethodPut, "/api/connections/respond/missing", tok, map[string]string{"status": "accepted"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodPut, "/api/connections/respond/missing", tok, map[string]string{"status": "blocked"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestConnections_EmptyListsAreArrays(t *testing.T) {
	f := setup(t)
	_, tok := f.user(t, "alice")

	for _, path := range []string{"/api/connections/pending", "/api/connections/accepted"} {
		status, raw := f.do(t, http.MethodGet, path, tok, nil)
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `[]`, string(raw), path)
	}
}
