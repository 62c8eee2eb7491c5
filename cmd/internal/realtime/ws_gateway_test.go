package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"counsel/cmd/identity"
	"counsel/cmd/internal/auth/session"
	"counsel/cmd/internal/chat"
	v1 "counsel/shared/contracts/realtime/v1"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatewayFixture struct {
	srv    *httptest.Server
	tokens session.TokenManager
	engine *Engine
	msgs   *chat.Messages
}

func newGatewayFixture(t *testing.T, mutate func(*Config)) *gatewayFixture {
	t.Helper()

	scfg := session.DefaultConfig()
	scfg.Secret = "0123456789abcdef0123456789abcdef"
	tokens, err := session.NewJWTManager(scfg)
	require.NoError(t, err)

	msgs := chat.NewMessages(chat.NewMemoryStore(), nil, discardLogger())
	engine, err := NewEngine(discardLogger(), EngineDeps{Messages: msgs})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.OriginRequired = false
	if mutate != nil {
		mutate(&cfg)
	}
	gw, err := NewWSGateway(discardLogger(), cfg, engine, session.NewResolver(tokens, "token"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("/ws", gw)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &gatewayFixture{srv: srv, tokens: tokens, engine: engine, msgs: msgs}
}

func (f *gatewayFixture) token(t *testing.T, userID string) string {
	t.Helper()
	tok, _, err := f.tokens.Issue(session.Identity{ID: userID, Role: identity.RoleClient}, time.Now().UTC())
	require.NoError(t, err)
	return tok
}

func dialWS(t *testing.T, baseHTTPURL, origin, bearerToken string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	u, err := url.Parse(baseHTTPURL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = "/ws"

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}
	if strings.TrimSpace(bearerToken) != "" {
		h.Set("Authorization", "Bearer "+bearerToken)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
}

func mustDial(t *testing.T, f *gatewayFixture, token string) *websocket.Conn {
	t.Helper()
	conn, resp, err := dialWS(t, f.srv.URL, "", token)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") })
	return conn
}

func writeEvent(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	b, err := json.Marshal(v1.Envelope{V: v1.Version, Type: typ, ID: NewEnvelopeID(), TS: time.Now().UTC(), Payload: raw})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, b))
}

func readUntilType(t *testing.T, conn *websocket.Conn, typ string, maxReads int) v1.Envelope {
	t.Helper()
	for range max(maxReads, 1) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, b, err := conn.Read(ctx)
		cancel()
		require.NoError(t, err)

		var env v1.Envelope
		require.NoError(t, json.Unmarshal(b, &env))
		if env.Type == typ {
			return env
		}
	}
	t.Fatalf("did not receive envelope type %q", typ)
	return v1.Envelope{}
}

func TestWSGateway_RejectsMissingOrInvalidCredential(t *testing.T) {
	f := newGatewayFixture(t, nil)

	for name, token := range map[string]string{"missing": "", "invalid": "not-a-token"} {
		t.Run(name, func(t *testing.T) {
			_, resp, err := dialWS(t, f.srv.URL, "", token)
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestWSGateway_RejectsDisallowedOrigin(t *testing.T) {
	f := newGatewayFixture(t, func(c *Config) { c.OriginRequired = true })

	_, resp, err := dialWS(t, f.srv.URL, "https://evil.example", f.token(t, "A"))
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = dialWS(t, f.srv.URL, "", f.token(t, "A"))
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.Error(t, err, "origin is required")
}

func TestWSGateway_EndToEndExchange(t *testing.T) {
	f := newGatewayFixture(t, nil)

	a := mustDial(t, f, f.token(t, "A"))
	b := mustDial(t, f, f.token(t, "B"))

	writeEvent(t, a, v1.TypeRegisterUser, v1.RegisterUserPayload{UserID: "A"})
	writeEvent(t, b, v1.TypeRegisterUser, v1.RegisterUserPayload{UserID: "B"})

	writeEvent(t, a, v1.TypeJoinChat, v1.JoinChatPayload{OtherUserID: "B", SelfID: "A"})
	joined := readUntilType(t, a, v1.TypeChatJoined, 2)
	var jp v1.ChatJoinedPayload
	require.NoError(t, json.Unmarshal(joined.Payload, &jp))
	assert.Equal(t, "A_B", jp.ConversationID)

	writeEvent(t, b, v1.TypeJoinChat, v1.JoinChatPayload{OtherUserID: "A", SelfID: "B"})
	readUntilType(t, b, v1.TypeChatJoined, 2)

	origin := "tmp-1"
	writeEvent(t, a, v1.TypeSendMessage, v1.SendMessagePayload{SenderID: "A", RecipientID: "B", Content: "hello", TempClientOriginID: &origin})

	for name, conn := range map[string]*websocket.Conn{"A": a, "B": b} {
		env := readUntilType(t, conn, v1.TypeReceiveMessage, 3)
		var p v1.ReceiveMessagePayload
		require.NoError(t, json.Unmarshal(env.Payload, &p), name)
		assert.Equal(t, "hello", p.Message.Content, name)
		assert.Equal(t, "A", p.Message.Sender.ID, name)
		require.NotNil(t, p.TempClientOriginID, name)
		assert.Equal(t, origin, *p.TempClientOriginID, name)
	}

	history, err := f.msgs.Between(context.Background(), "A", "B")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestWSGateway_SpoofedSenderRejected(t *testing.T) {
	f := newGatewayFixture(t, nil)
	a := mustDial(t, f, f.token(t, "A"))

	writeEvent(t, a, v1.TypeSendMessage, v1.SendMessagePayload{SenderID: "B", RecipientID: "C", Content: "spoof"})
	env := readUntilType(t, a, v1.TypeMessageError, 2)

	var p v1.MessageErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Contains(t, p.Message, "authenticated user")

	history, err := f.msgs.Between(context.Background(), "B", "C")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestWSGateway_BadFramesAndEnvelopes(t *testing.T) {
	f := newGatewayFixture(t, nil)
	a := mustDial(t, f, f.token(t, "A"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Write(ctx, websocket.MessageText, []byte("{not json")))
	env := readUntilType(t, a, v1.TypeError, 1)
	var p v1.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "bad_json", p.Code)

	require.NoError(t, a.Write(ctx, websocket.MessageText, []byte(`{"v":"v1","type":"hello"}`)))
	env = readUntilType(t, a, v1.TypeError, 1)
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "bad_envelope", p.Code)
}

func TestWSGateway_DisconnectUnregisters(t *testing.T) {
	f := newGatewayFixture(t, nil)
	a := mustDial(t, f, f.token(t, "A"))

	writeEvent(t, a, v1.TypeRegisterUser, v1.RegisterUserPayload{UserID: "A"})
	writeEvent(t, a, v1.TypeJoinChat, v1.JoinChatPayload{OtherUserID: "B", SelfID: "A"})
	readUntilType(t, a, v1.TypeChatJoined, 2)

	_, ok := f.engine.Registry().Lookup("A")
	require.True(t, ok)

	require.NoError(t, a.Close(websocket.StatusNormalClosure, "bye"))

	require.Eventually(t, func() bool {
		_, ok := f.engine.Registry().Lookup("A")
		return !ok && f.engine.Hub().Len() == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWSGateway_LegacyModeTrustsClientIDs(t *testing.T) {
	f := newGatewayFixture(t, func(c *Config) { c.RequireAuth = false })
	a := mustDial(t, f, "")

	writeEvent(t, a, v1.TypeJoinChat, v1.JoinChatPayload{OtherUserID: "B", SelfID: "A"})
	readUntilType(t, a, v1.TypeChatJoined, 1)

	writeEvent(t, a, v1.TypeSendMessage, v1.SendMessagePayload{SenderID: "A", RecipientID: "B", Content: "hi"})
	readUntilType(t, a, v1.TypeReceiveMessage, 1)
}

func TestNewWSGateway_RequiresResolverWhenAuthOn(t *testing.T) {
	msgs := chat.NewMessages(chat.NewMemoryStore(), nil, discardLogger())
	engine, err := NewEngine(discardLogger(), EngineDeps{Messages: msgs})
	require.NoError(t, err)

	_, err = NewWSGateway(discardLogger(), DefaultConfig(), engine, nil)
	assert.Error(t, err)
	_, err = NewWSGateway(discardLogger(), DefaultConfig(), nil, nil)
	assert.Error(t, err)
}
