package connections

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"counsel/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists connections in PostgreSQL. The pool is owned by the caller.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the DB schema (default: "counsel").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return errors.New("connections: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
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
		return nil, errors.New("connections: nil pool")
	}
	return st, nil
}

const connColumns = `id, requester_id, recipient_id, status, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, requesterID, recipientID string, now time.Time) (Connection, error) {
	c := Connection{
		ID:          ids.Make(),
		RequesterID: requesterID,
		RecipientID: recipientID,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// uq_connections_pair covers both directions.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (`+connColumns+`) VALUES ($1, $2, $3, $4, $5, $5)`,
		c.ID, c.RequesterID, c.RecipientID, string(c.Status), now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Connection{}, ErrConflict
		}
		return Connection{}, fmt.Errorf("connections.Create: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Connection, error) {
	c, err := scanConnection(s.pool.QueryRow(ctx,
		`SELECT `+connColumns+` FROM `+s.table()+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Connection{}, ErrNotFound
	}
	if err != nil {
		return Connection{}, fmt.Errorf("connections.Get: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, id string, status Status, now time.Time) (Connection, error) {
	c, err := scanConnection(s.pool.QueryRow(ctx,
		`UPDATE `+s.table()+` SET status = $2, updated_at = $3 WHERE id = $1 RETURNING `+connColumns,
		id, string(status), now))
	if errors.Is(err, pgx.ErrNoRows) {
		return Connection{}, ErrNotFound
	}
	if err != nil {
		return Connection{}, fmt.Errorf("connections.SetStatus: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListIncoming(ctx context.Context, userID string, status Status) ([]Connection, error) {
	return s.list(ctx, "connections.ListIncoming",
		`SELECT `+connColumns+` FROM `+s.table()+`
		  WHERE recipient_id = $1 AND status = $2
		  ORDER BY created_at ASC, id ASC`,
		userID, string(status))
}

func (s *PostgresStore) ListAccepted(ctx context.Context, userID string) ([]Connection, error) {
	return s.list(ctx, "connections.ListAccepted",
		`SELECT `+connColumns+` FROM `+s.table()+`
		  WHERE (requester_id = $1 OR recipient_id = $1) AND status = 'accepted'
		  ORDER BY created_at ASC, id ASC`,
		userID)
}

func (s *PostgresStore) Between(ctx context.Context, a, b string) (Connection, error) {
	c, err := scanConnection(s.pool.QueryRow(ctx,
		`SELECT `+connColumns+` FROM `+s.table()+`
		  WHERE (requester_id = $1 AND recipient_id = $2) OR (requester_id = $2 AND recipient_id = $1)
		  LIMIT 1`, a, b))
	if errors.Is(err, pgx.ErrNoRows) {
		return Connection{}, ErrNotFound
	}
	if err != nil {
		return Connection{}, fmt.Errorf("connections.Between: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) list(ctx context.Context, op, sql string, args ...any) ([]Connection, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "connections"}.Sanitize()
}

func scanConnection(row pgx.Row) (Connection, error) {
	var (
		c      Connection
		status string
	)
	err := row.Scan(&c.ID, &c.RequesterID, &c.RecipientID, &status, &c.CreatedAt, &c.UpdatedAt)
	c.Status = Status(status)
	return c, err
}

var _ Store = (*PostgresStore)(nil)
