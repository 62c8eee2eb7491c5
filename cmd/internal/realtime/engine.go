package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"counsel/cmd/internal/chat"
	v1 "counsel/shared/contracts/realtime/v1"

	"github.com/cespare/xxhash/v2"
)

// persistTimeout bounds a send's store write. The write is detached from the
// connection so a disconnect mid-send still completes it.
const persistTimeout = 10 * time.Second

var (
	// ErrForbidden is returned when a client-supplied id differs from the bound identity.
	ErrForbidden = errors.New("realtime: identity mismatch")
	// ErrNotConnected is returned when the contact policy refuses a pair.
	ErrNotConnected = errors.New("realtime: users are not connected")
	// ErrInvalidEvent is returned for events missing required fields.
	ErrInvalidEvent = errors.New("realtime: invalid event")
)

// MessageSender persists a direct message and returns it enriched.
type MessageSender interface {
	Send(ctx context.Context, senderID, recipientID, content string) (chat.Message, error)
}

// ContactPolicy decides whether two users may talk.
type ContactPolicy interface {
	AreConnected(ctx context.Context, a, b string) (bool, error)
}

// EngineDeps groups the collaborators of an Engine. Registry and Hub default to
// fresh instances; Policy and Metrics are optional.
type EngineDeps struct {
	Registry *Registry
	Hub      *Hub
	Messages MessageSender
	Policy   ContactPolicy
	Metrics  *Metrics
}

// Engine implements the realtime event handlers independently of the transport.
type Engine struct {
	log      *slog.Logger
	registry *Registry
	hub      *Hub
	messages MessageSender
	policy   ContactPolicy
	metrics  *Metrics

	// Sends to one conversation hold its stripe across append and broadcast, so
	// the room observes messages in store completion order.
	stripes [sendStripes]sync.Mutex
}

// NewEngine constructs an Engine.
func NewEngine(log *slog.Logger, deps EngineDeps) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}
	if deps.Messages == nil {
		return nil, errors.New("realtime: messages is required")
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry(log)
	}
	if deps.Hub == nil {
		deps.Hub = NewHub()
	}
	return &Engine{
		log:      log,
		registry: deps.Registry,
		hub:      deps.Hub,
		messages: deps.Messages,
		policy:   deps.Policy,
		metrics:  deps.Metrics,
	}, nil
}

// Registry returns the session registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Hub returns the room hub.
func (e *Engine) Hub() *Hub { return e.hub }

// Connect records a new connection.
func (e *Engine) Connect(c *Client) {
	e.metrics.connOpened()
	e.log.Info("ws.connect", "conn_id", c.ConnID, "auth_user_id", c.AuthUserID)
}

// Disconnect drops the registry entry held by c, leaves every room and stops c.
// Sends already in flight finish their write and broadcast to remaining members.
func (e *Engine) Disconnect(c *Client) {
	userID, registered := e.registry.UnregisterByHandle(c.ConnID)
	for _, key := range c.takeRooms() {
		e.hub.Leave(key, c.ConnID)
	}
	c.Close()

	e.metrics.connClosed()
	e.metrics.setRegistryUsers(e.registry.Len())
	e.log.Info("ws.disconnect", "conn_id", c.ConnID, "user_id", userID, "registered", registered)
}

// Handle dispatches one validated envelope from c.
func (e *Engine) Handle(ctx context.Context, c *Client, env v1.Envelope) {
	switch env.Type {
	case v1.TypeRegisterUser:
		var p v1.RegisterUserPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			e.emitError(c, "bad_payload", "invalid registerUser payload")
			return
		}
		if err := e.Register(c, p.UserID); errors.Is(err, ErrForbidden) {
			e.emitError(c, "forbidden", "userId does not match the authenticated user")
		}

	case v1.TypeJoinChat:
		var p v1.JoinChatPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			e.emitError(c, "bad_payload", "invalid joinChat payload")
			return
		}
		_, _ = e.Join(ctx, c, p.OtherUserID, p.SelfID)

	case v1.TypeSendMessage:
		var p v1.SendMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			e.metrics.messageError(reasonValidation)
			e.emitMessageError(c, "Invalid message payload.")
			return
		}
		_, _ = e.Send(ctx, c, p)

	default:
		e.emitError(c, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
	}
}

// Register binds c to userID in the registry. Invalid input is logged and ignored.
func (e *Engine) Register(c *Client, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		e.log.Warn("ws.register.invalid", "conn_id", c.ConnID)
		return ErrInvalidEvent
	}
	if !e.boundTo(c, userID) {
		e.log.Warn("ws.register.forbidden", "conn_id", c.ConnID, "auth_user_id", c.AuthUserID, "user_id", userID)
		return ErrForbidden
	}

	e.registry.Register(userID, c.ConnID)
	e.metrics.setRegistryUsers(e.registry.Len())
	e.log.Info("ws.register", "conn_id", c.ConnID, "user_id", userID)
	return nil
}

// Join puts c in the room shared by selfID and otherUserID and acks with chatJoined.
// Failures are reported to c as error{join_failed} or error{forbidden}.
func (e *Engine) Join(ctx context.Context, c *Client, otherUserID, selfID string) (string, error) {
	otherUserID, selfID = strings.TrimSpace(otherUserID), strings.TrimSpace(selfID)
	if otherUserID == "" || selfID == "" {
		e.log.Warn("ws.join.invalid", "conn_id", c.ConnID)
		e.emitError(c, "join_failed", "otherUserId and selfId are required")
		return "", ErrInvalidEvent
	}
	if !e.boundTo(c, selfID) {
		e.emitError(c, "forbidden", "selfId does not match the authenticated user")
		return "", ErrForbidden
	}

	key, err := chat.ConversationKey(selfID, otherUserID)
	if err != nil {
		if errors.Is(err, chat.ErrSelfConversation) {
			e.emitError(c, "join_failed", "cannot open a conversation with yourself")
		} else {
			e.emitError(c, "join_failed", "invalid user id")
		}
		return "", err
	}

	if err := e.allowed(ctx, selfID, otherUserID); err != nil {
		e.emitError(c, "join_failed", "you can only chat with accepted connections")
		return "", err
	}

	e.hub.Join(key, c)
	e.log.Info("ws.join", "conn_id", c.ConnID, "conversation_id", key)

	p, _ := json.Marshal(v1.ChatJoinedPayload{ConversationID: key, OtherUserID: otherUserID})
	e.emit(c, newEnvelope(v1.TypeChatJoined, p))
	return key, nil
}

// Send validates, persists and broadcasts one message. Every failure is reported
// to the sender alone as messageError; nothing is broadcast.
func (e *Engine) Send(ctx context.Context, c *Client, p v1.SendMessagePayload) (chat.Message, error) {
	sender, recipient := strings.TrimSpace(p.SenderID), strings.TrimSpace(p.RecipientID)
	if sender == "" || recipient == "" || strings.TrimSpace(p.Content) == "" {
		e.metrics.messageError(reasonValidation)
		e.emitMessageError(c, "senderId, recipientId and content are required.")
		return chat.Message{}, ErrInvalidEvent
	}
	if !e.boundTo(c, sender) {
		e.metrics.messageError(reasonForbidden)
		e.emitMessageError(c, "senderId does not match the authenticated user.")
		return chat.Message{}, ErrForbidden
	}

	key, err := chat.ConversationKey(sender, recipient)
	if err != nil {
		e.metrics.messageError(reasonValidation)
		if errors.Is(err, chat.ErrSelfConversation) {
			e.emitMessageError(c, "You cannot message yourself.")
		} else {
			e.emitMessageError(c, "Invalid recipient.")
		}
		return chat.Message{}, err
	}

	if err := e.allowed(ctx, sender, recipient); err != nil {
		e.metrics.messageError(reasonPolicy)
		e.emitMessageError(c, "You can only message accepted connections.")
		return chat.Message{}, err
	}

	mu := e.stripe(key)
	mu.Lock()
	defer mu.Unlock()

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	msg, err := e.messages.Send(wctx, sender, recipient, p.Content)
	if err != nil {
		var ve chat.ValidationError
		switch {
		case errors.As(err, &ve):
			e.metrics.messageError(reasonValidation)
			e.emitMessageError(c, "Invalid message: "+ve.Msg)
		default:
			e.metrics.messageError(reasonPersistence)
			e.log.Error("ws.send.persist.fail", "conn_id", c.ConnID, "conversation_id", key, "err", err)
			e.emitMessageError(c, "Failed to send message.")
		}
		return chat.Message{}, err
	}

	payload, _ := json.Marshal(v1.ReceiveMessagePayload{
		Message:            toWireMessage(msg),
		TempClientOriginID: p.TempClientOriginID,
	})
	delivered, dropped := e.hub.Broadcast(key, newEnvelope(v1.TypeReceiveMessage, payload))

	e.metrics.messageSent()
	e.metrics.dropped(dropped)
	if dropped > 0 {
		e.log.Warn("ws.broadcast.dropped", "conversation_id", key, "dropped", dropped)
	}
	e.log.Debug("ws.send", "conversation_id", key, "message_id", msg.ID, "delivered", delivered)
	return msg, nil
}

// boundTo reports whether userID may act on c. Unbound clients may act as anyone.
func (e *Engine) boundTo(c *Client, userID string) bool {
	return c.AuthUserID == "" || c.AuthUserID == userID
}

func (e *Engine) allowed(ctx context.Context, a, b string) error {
	if e.policy == nil {
		return nil
	}
	ok, err := e.policy.AreConnected(ctx, a, b)
	if err != nil {
		e.log.Error("ws.policy.fail", "user_a", a, "user_b", b, "err", err)
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	if !ok {
		return ErrNotConnected
	}
	return nil
}

func (e *Engine) stripe(key string) *sync.Mutex {
	return &e.stripes[xxhash.Sum64String(key)%sendStripes]
}

// emit enqueues env for c without blocking. A full queue drops the envelope.
func (e *Engine) emit(c *Client, env v1.Envelope) bool {
	select {
	case <-c.Done():
		return false
	default:
	}

	select {
	case c.Send <- env:
		return true
	default:
		e.metrics.dropped(1)
		return false
	}
}

func (e *Engine) emitError(c *Client, code, msg string) {
	p, _ := json.Marshal(v1.ErrorPayload{Code: code, Message: msg})
	e.emit(c, newEnvelope(v1.TypeError, p))
}

func (e *Engine) emitMessageError(c *Client, msg string) {
	p, _ := json.Marshal(v1.MessageErrorPayload{Message: msg})
	e.emit(c, newEnvelope(v1.TypeMessageError, p))
}

func newEnvelope(typ string, payload json.RawMessage) v1.Envelope {
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      NewEnvelopeID(),
		TS:      time.Now().UTC(),
		Payload: payload,
	}
}

func toWireMessage(m chat.Message) v1.Message {
	return v1.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         v1.Sender{ID: m.Sender.ID, Name: m.Sender.Name},
		Recipient:      m.Recipient,
		Content:        m.Content,
		Read:           m.Read,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
