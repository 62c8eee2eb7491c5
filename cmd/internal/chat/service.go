package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// DisplayNames resolves user ids to display names. identity.Store satisfies it.
type DisplayNames interface {
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// Messages validates, persists and enriches messages. It is the single write
// path for REST and realtime callers.
type Messages struct {
	store    Store
	names    DisplayNames
	log      *slog.Logger
	validate *validator.Validate
}

// NewMessages builds the service. names may be nil (no enrichment).
func NewMessages(store Store, names DisplayNames, log *slog.Logger) *Messages {
	if log == nil {
		log = slog.Default()
	}
	return &Messages{
		store:    store,
		names:    names,
		log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Append validates in, writes it and fills the sender's display name when known.
// Errors are ValidationError or PersistenceError.
func (m *Messages) Append(ctx context.Context, in AppendInput) (Message, error) {
	in.ConversationKey = strings.TrimSpace(in.ConversationKey)
	in.SenderID = strings.TrimSpace(in.SenderID)
	in.RecipientID = strings.TrimSpace(in.RecipientID)
	if err := m.check(in); err != nil {
		return Message{}, err
	}

	msg, err := m.store.Append(ctx, in)
	if err != nil {
		return Message{}, PersistenceError{Op: "append", Err: err}
	}

	m.enrich(ctx, []*Message{&msg})
	return msg, nil
}

// Send appends content from sender to recipient under their conversation key.
func (m *Messages) Send(ctx context.Context, senderID, recipientID, content string) (Message, error) {
	key, err := ConversationKey(senderID, recipientID)
	if err != nil {
		return Message{}, err
	}
	return m.Append(ctx, AppendInput{
		ConversationKey: key,
		SenderID:        senderID,
		RecipientID:     recipientID,
		Content:         content,
	})
}

// History returns the conversation with sender names filled best-effort.
func (m *Messages) History(ctx context.Context, key string) ([]Message, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ValidationError{Field: "conversationId", Msg: "conversation key is required"}
	}

	msgs, err := m.store.History(ctx, key)
	if err != nil {
		return nil, PersistenceError{Op: "history", Err: err}
	}
	if msgs == nil {
		msgs = []Message{}
	}

	ptrs := make([]*Message, len(msgs))
	for i := range msgs {
		ptrs[i] = &msgs[i]
	}
	m.enrich(ctx, ptrs)
	return msgs, nil
}

// Between returns the history of the conversation between a and b.
func (m *Messages) Between(ctx context.Context, a, b string) ([]Message, error) {
	key, err := ConversationKey(a, b)
	if err != nil {
		return nil, err
	}
	return m.History(ctx, key)
}

func (m *Messages) check(in AppendInput) error {
	// Blank means whitespace-only too; the stored content keeps its spacing.
	candidate := in
	if strings.TrimSpace(in.Content) == "" {
		candidate.Content = ""
	}

	err := m.validate.Struct(candidate)
	if err == nil {
		want, err := ConversationKey(candidate.SenderID, candidate.RecipientID)
		if err != nil {
			return err
		}
		if want != in.ConversationKey {
			return ValidationError{Field: "conversationKey", Msg: "does not match sender and recipient"}
		}
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ValidationError{Msg: err.Error()}
	}
	fe := verrs[0]
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "max":
		return ValidationError{Field: field, Msg: "must be at most " + fe.Param() + " characters"}
	default:
		return ValidationError{Field: field, Msg: "is required"}
	}
}

func (m *Messages) enrich(ctx context.Context, msgs []*Message) {
	if m.names == nil || len(msgs) == 0 {
		return
	}

	senderIDs := lo.Uniq(lo.Map(msgs, func(msg *Message, _ int) string { return msg.Sender.ID }))
	names, err := m.names.DisplayNames(ctx, senderIDs)
	if err != nil {
		m.log.Warn("chat.enrich.fail", "senders", len(senderIDs), "err", err)
		return
	}
	for _, msg := range msgs {
		if n, ok := names[msg.Sender.ID]; ok {
			msg.Sender.Name = n
		}
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
