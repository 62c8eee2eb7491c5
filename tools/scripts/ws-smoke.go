// Package main provides a CI-friendly WebSocket smoke test for Counsel realtime.
//
// It validates:
//   - demo account signup and bearer-authenticated handshake
//   - subprotocol selection
//   - registerUser + joinChat ack
//   - sendMessage fanout to both room members with the origin token echoed
//   - REST history contains the message with the sender name
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "counsel/shared/contracts/realtime/v1"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20 // 1MiB

type smokeClient struct {
	name   string
	userID string
	token  string
	conn   *websocket.Conn

	inbox chan v1.Envelope
	errCh chan error
}

type account struct {
	Token string `json:"token"`
	User  struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
}

func main() {
	var (
		baseURL = flag.String("base", "http://127.0.0.1:8080", "HTTP base URL of the server")
		wsPath  = flag.String("ws-path", "/ws", "WebSocket path")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		text    = flag.String("text", "hello counsel 👋", "Message text to send")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	base, err := validateBaseURL(*baseURL)
	if err != nil {
		fatalf("invalid -base: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root := context.Background()
	httpc := &http.Client{Timeout: *timeout}
	run := time.Now().UnixNano()

	accA := mustSignup(httpc, base, "Smoke A", fmt.Sprintf("smoke-a-%d@example.com", run))
	accB := mustSignup(httpc, base, "Smoke B", fmt.Sprintf("smoke-b-%d@example.com", run))

	wsURL := *base
	wsURL.Scheme = map[string]string{"http": "ws", "https": "wss"}[base.Scheme]
	wsURL.Path = *wsPath

	a := mustConnect(root, "A", accA, wsURL.String(), *origin, *timeout)
	defer closeWS(a.conn)

	b := mustConnect(root, "B", accB, wsURL.String(), *origin, *timeout)
	defer closeWS(b.conn)

	if *verbose {
		fmt.Printf("connected: A=%s B=%s origin=%q\n", a.userID, b.userID, *origin)
	}

	convA := mustJoin(root, a, b.userID, *timeout)
	convB := mustJoin(root, b, a.userID, *timeout)
	if convA != convB {
		fatalf("conversation mismatch: A=%q B=%q", convA, convB)
	}

	originToken := fmt.Sprintf("tmp-%d", run)
	mustSend(root, a, b.userID, *text, originToken, *timeout)

	msgID := mustAssertReceive(root, a, convA, a.userID, *text, originToken, *timeout)
	if got := mustAssertReceive(root, b, convA, a.userID, *text, originToken, *timeout); got != msgID {
		fatalf("fanout id mismatch: A=%q B=%q", msgID, got)
	}

	mustHistoryContains(httpc, base, b, a.userID, msgID, accA.User.Name, *text)

	mustAssertNoType(root, b, v1.TypeReceiveMessage, 1200*time.Millisecond)

	fmt.Printf("OK: A=%s B=%s conversation_id=%s message_id=%s\n", a.userID, b.userID, convA, msgID)
}

func validateBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustSignup(httpc *http.Client, base *url.URL, name, email string) account {
	body := mustJSON(map[string]string{
		"name":     name,
		"email":    email,
		"password": "smoke-test-password",
		"role":     "client",
	})

	resp, err := httpc.Post(base.JoinPath("/api/auth/demo-account").String(), "application/json", bytes.NewReader(body))
	if err != nil {
		fatalf("signup %s: %v", name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if resp.StatusCode != http.StatusCreated {
		fatalf("signup %s: status=%d body=%s", name, resp.StatusCode, raw)
	}

	var acc account
	if err := json.Unmarshal(raw, &acc); err != nil {
		fatalf("signup %s: decode: %v", name, err)
	}
	if acc.Token == "" || acc.User.ID == "" {
		fatalf("signup %s: missing token or user id", name)
	}
	return acc
}

func mustConnect(parent context.Context, name string, acc account, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}
	h.Set("Authorization", "Bearer "+acc.Token)

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		fatalf("connect %s: %v", name, err)
	}

	assertSubprotocol(resp, v1.Subprotocol)

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:   name,
		userID: acc.User.ID,
		token:  acc.Token,
		conn:   conn,
		inbox:  make(chan v1.Envelope, 512),
		errCh:  make(chan error, 1),
	}
	c.startReadLoop()

	mustWriteWithTimeout(parent, conn, envelope(name+"-register", v1.TypeRegisterUser, v1.RegisterUserPayload{UserID: c.userID}), stepTimeout)
	return c
}

func assertSubprotocol(resp *http.Response, want string) {
	if resp == nil {
		return
	}
	got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
	if got == "" {
		return
	}
	if got != want {
		fatalf("subprotocol mismatch: got=%q want=%q", got, want)
	}
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			if mt != websocket.MessageText && mt != websocket.MessageBinary {
				select {
				case c.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}
			if err := env.Validate(); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad envelope: %w", err):
				default:
				}
				return
			}

			select {
			case c.inbox <- env:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

func mustJoin(parent context.Context, c *smokeClient, otherUserID string, stepTimeout time.Duration) string {
	env := envelope(c.name+"-join", v1.TypeJoinChat, v1.JoinChatPayload{OtherUserID: otherUserID, SelfID: c.userID})
	mustWriteWithTimeout(parent, c.conn, env, stepTimeout)

	ack := c.mustReadUntilType(parent, v1.TypeChatJoined, stepTimeout, nil)

	var p v1.ChatJoinedPayload
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		fatalf("unmarshal chatJoined payload (%s): %v", c.name, err)
	}
	if p.OtherUserID != otherUserID {
		fatalf("chatJoined otherUserId mismatch (%s): got=%q want=%q", c.name, p.OtherUserID, otherUserID)
	}
	if strings.TrimSpace(p.ConversationID) == "" {
		fatalf("chatJoined missing conversationId (%s)", c.name)
	}
	return p.ConversationID
}

func mustSend(parent context.Context, c *smokeClient, recipientID, text, originToken string, stepTimeout time.Duration) {
	env := envelope(c.name+"-send", v1.TypeSendMessage, v1.SendMessagePayload{
		SenderID:           c.userID,
		RecipientID:        recipientID,
		Content:            text,
		TempClientOriginID: &originToken,
	})
	mustWriteWithTimeout(parent, c.conn, env, stepTimeout)
}

func mustAssertReceive(parent context.Context, c *smokeClient, convID, senderID, text, originToken string, stepTimeout time.Duration) string {
	env := c.mustReadUntilType(parent, v1.TypeReceiveMessage, stepTimeout, nil)

	var p v1.ReceiveMessagePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		fatalf("unmarshal receiveMessage payload (%s): %v", c.name, err)
	}

	m := p.Message
	switch {
	case m.ConversationID != convID:
		fatalf("receive conversationId mismatch (%s): got=%q want=%q", c.name, m.ConversationID, convID)
	case m.Sender.ID != senderID:
		fatalf("receive sender mismatch (%s): got=%q want=%q", c.name, m.Sender.ID, senderID)
	case m.Content != text:
		fatalf("receive content mismatch (%s): got=%q want=%q", c.name, m.Content, text)
	case strings.TrimSpace(m.ID) == "":
		fatalf("receive missing message id (%s)", c.name)
	case m.CreatedAt.IsZero():
		fatalf("receive createdAt missing/zero (%s)", c.name)
	case p.TempClientOriginID == nil || *p.TempClientOriginID != originToken:
		fatalf("receive tempClientOriginId mismatch (%s)", c.name)
	}
	return m.ID
}

func mustHistoryContains(httpc *http.Client, base *url.URL, c *smokeClient, otherUserID, msgID, senderName, text string) {
	req, err := http.NewRequest(http.MethodGet, base.JoinPath("/api/chat", otherUserID).String(), nil)
	if err != nil {
		fatalf("history request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := httpc.Do(req)
	if err != nil {
		fatalf("history (%s): %v", c.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fatalf("history (%s): status=%d", c.name, resp.StatusCode)
	}

	var msgs []v1.Message
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReadBytes)).Decode(&msgs); err != nil {
		fatalf("history decode (%s): %v", c.name, err)
	}

	for _, m := range msgs {
		if m.ID == msgID && m.Content == text && m.Sender.Name == senderName {
			return
		}
	}
	fatalf("history missing expected message (%s)", c.name)
}

func mustAssertNoType(parent context.Context, c *smokeClient, forbiddenType string, wait time.Duration) {
	ctx, cancel := context.WithTimeout(parent, wait)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-c.errCh:
			if err == nil {
				fatalf("connection closed unexpectedly (%s)", c.name)
			}
			fatalf("connection closed unexpectedly (%s): %v", c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed unexpectedly (%s)", c.name)
			}
			failOnServerError(c, env)
			if env.Type == forbiddenType {
				fatalf("unexpected %s received (%s)", forbiddenType, c.name)
			}
		}
	}
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration, skipTypes map[string]struct{}) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			if err == nil {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			if env.Type == wantType {
				return env
			}
			failOnServerError(c, env)
			if skipTypes != nil {
				if _, ok := skipTypes[env.Type]; ok {
					continue
				}
			}
			fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, wantType)
		}
	}
}

func failOnServerError(c *smokeClient, env v1.Envelope) {
	switch env.Type {
	case v1.TypeError:
		var ep v1.ErrorPayload
		_ = json.Unmarshal(env.Payload, &ep)
		fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
	case v1.TypeMessageError:
		var ep v1.MessageErrorPayload
		_ = json.Unmarshal(env.Payload, &ep)
		fatalf("message error (%s): %q", c.name, ep.Message)
	}
}

func envelope(id, typ string, payload any) v1.Envelope {
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      id,
		TS:      time.Now().UTC(),
		Payload: mustJSON(payload),
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, env v1.Envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
