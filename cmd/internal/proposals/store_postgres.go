package proposals

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

// PostgresStore persists proposals in PostgreSQL. The pool is owned by the caller.
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
			return errors.New("proposals: invalid schema identifier")
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
		return nil, errors.New("proposals: nil pool")
	}
	return st, nil
}

const proposalColumns = `id, client_id, lawyer_id, description, status, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, clientID, lawyerID, description string, now time.Time) (Proposal, error) {
	p := Proposal{
		ID:          ids.Make(),
		ClientID:    clientID,
		LawyerID:    lawyerID,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (`+proposalColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		p.ID, p.ClientID, p.LawyerID, p.Description, string(p.Status), now)
	if err != nil {
		return Proposal{}, fmt.Errorf("proposals.Create: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Proposal, error) {
	p, err := scanProposal(s.pool.QueryRow(ctx,
		`SELECT `+proposalColumns+` FROM `+s.table()+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Proposal{}, ErrNotFound
	}
	if err != nil {
		return Proposal{}, fmt.Errorf("proposals.Get: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, id string, status Status, now time.Time) (Proposal, error) {
	p, err := scanProposal(s.pool.QueryRow(ctx,
		`UPDATE `+s.table()+` SET status = $2, updated_at = $3 WHERE id = $1 RETURNING `+proposalColumns,
		id, string(status), now))
	if errors.Is(err, pgx.ErrNoRows) {
		return Proposal{}, ErrNotFound
	}
	if err != nil {
		return Proposal{}, fmt.Errorf("proposals.SetStatus: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListByLawyer(ctx context.Context, lawyerID string) ([]Proposal, error) {
	return s.list(ctx, "proposals.ListByLawyer",
		`SELECT `+proposalColumns+` FROM `+s.table()+`
		  WHERE lawyer_id = $1
		  ORDER BY created_at ASC, id ASC`,
		lawyerID)
}

func (s *PostgresStore) ListByClient(ctx context.Context, clientID string) ([]Proposal, error) {
	return s.list(ctx, "proposals.ListByClient",
		`SELECT `+proposalColumns+` FROM `+s.table()+`
		  WHERE client_id = $1
		  ORDER BY created_at ASC, id ASC`,
		clientID)
}

func (s *PostgresStore) list(ctx context.Context, op, sql string, args ...any) ([]Proposal, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "proposals"}.Sanitize()
}

func scanProposal(row pgx.Row) (Proposal, error) {
	var (
		p      Proposal
		status string
	)
	err := row.Scan(&p.ID, &p.ClientID, &p.LawyerID, &p.Description, &status, &p.CreatedAt, &p.UpdatedAt)
	p.Status = Status(status)
	return p, err
}

var _ Store = (*PostgresStore)(nil)
