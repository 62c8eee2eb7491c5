package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"counsel/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// The pool is owned by the caller; Close is a no-op. Appends take a
// transaction-scoped advisory lock on the conversation key so seq and
// timestamps are assigned in commit order.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the DB schema used by this store (default: "counsel").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("chat: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return errors.New("chat: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "counsel"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("chat: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// Append inserts one message under the conversation's advisory lock.
func (s *PostgresStore) Append(ctx context.Context, in AppendInput) (Message, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Message{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, in.ConversationKey); err != nil {
		return Message{}, fmt.Errorf("advisory lock: %w", err)
	}

	// Microsecond precision matches timestamptz so the returned value equals a later read.
	now := time.Now().UTC().Truncate(time.Microsecond)
	var last time.Time
	err = tx.QueryRow(ctx,
		`SELECT created_at FROM `+s.table("messages")+`
		  WHERE conversation_id = $1 ORDER BY seq DESC LIMIT 1`,
		in.ConversationKey,
	).Scan(&last)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return Message{}, fmt.Errorf("last message: %w", err)
	case now.Before(last):
		now = last.UTC()
	}
	msg := Message{
		ID:             ids.Make(),
		ConversationID: in.ConversationKey,
		Sender:         Sender{ID: in.SenderID},
		Recipient:      in.RecipientID,
		Content:        in.Content,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+s.table("messages")+` (
		     id, conversation_id, sender_id, recipient_id, content, read, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, false, $6, $6)`,
		msg.ID, msg.ConversationID, msg.Sender.ID, msg.Recipient, msg.Content, now,
	); err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("commit: %w", err)
	}
	return msg, nil
}

// History returns the conversation in append order.
func (s *PostgresStore) History(ctx context.Context, key string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, sender_id, recipient_id, content, read, created_at, updated_at
		   FROM `+s.table("messages")+`
		  WHERE conversation_id = $1
		  ORDER BY seq ASC`,
		key,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0, 32)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender.ID, &m.Recipient,
			&m.Content, &m.Read, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		m.UpdatedAt = m.UpdatedAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

var _ Store = (*PostgresStore)(nil)
