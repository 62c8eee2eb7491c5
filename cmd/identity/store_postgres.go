package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"counsel/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the user directory over PostgreSQL.
//
// The pgx pool is owned by the caller; this store never closes it.
// Schema/table identifiers are validated and quoted.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the identity store (default "counsel").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "counsel",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const userColumns = `id, name, email, role, specialization, bio, location, phone, created_at, updated_at`

// CreateUser inserts a user. Unique violations map to ConflictError.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	in, err := validateCreate(op, in)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:             ids.NewUserID(),
		Name:           in.Name,
		Email:          in.Email,
		Role:           in.Role,
		Specialization: in.Specialization,
		Profile:        in.Profile,
		Phone:          in.Phone,
		CreatedAt:      in.Now,
		UpdatedAt:      in.Now,
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.table("users")+` (
		     id, name, email, password_hash, role, specialization, bio, location, phone, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		u.ID, u.Name, u.Email, in.PasswordHash, string(u.Role), u.Specialization,
		u.Profile.Bio, u.Profile.Location, u.Phone, in.Now,
	)
	if err != nil {
		if field, ok := classifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByID returns the user with id or a NotFoundError.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	id = strings.TrimSpace(id)
	if !ids.IsUserID(id) {
		// User ids are UUIDs; anything else cannot match.
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+s.table("users")+` WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserAuthByEmail returns the user and password hash for email.
func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	var (
		ua   UserAuth
		hash string
	)
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+`, password_hash FROM `+s.table("users")+` WHERE email = $1`,
		NormalizeEmail(email))

	var (
		role string
		u    User
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.Specialization, &u.Profile.Bio,
		&u.Profile.Location, &u.Phone, &u.CreatedAt, &u.UpdatedAt, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return UserAuth{}, fmt.Errorf("%s: %w", op, err)
	}
	u.Role = Role(role)
	ua.User = u
	ua.PasswordHash = hash
	return ua, nil
}

// ListUsers returns users ordered by created_at, optionally filtered by role.
func (s *PostgresStore) ListUsers(ctx context.Context, f ListFilter) ([]User, error) {
	const op = "identity.ListUsers"

	var (
		rows pgx.Rows
		err  error
	)
	if f.Role == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT `+userColumns+` FROM `+s.table("users")+` ORDER BY created_at ASC, id ASC`)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+userColumns+` FROM `+s.table("users")+` WHERE role = $1 ORDER BY created_at ASC, id ASC`,
			string(f.Role))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// DisplayNames resolves ids to names in a single query.
func (s *PostgresStore) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	const op = "identity.DisplayNames"

	valid := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if ids.IsUserID(id) {
			valid = append(valid, id)
		}
	}
	out := make(map[string]string, len(valid))
	if len(valid) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, name FROM `+s.table("users")+` WHERE id = ANY($1)`, valid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresStore) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.Specialization, &u.Profile.Bio,
		&u.Profile.Location, &u.Phone, &u.CreatedAt, &u.UpdatedAt)
	u.Role = Role(role)
	return u, err
}

func classifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_users_email" || strings.Contains(c, "email"):
		return "email", true
	case c == "uq_users_phone" || strings.Contains(c, "phone"):
		return "phone", true
	default:
		return "", true
	}
}

var _ Store = (*PostgresStore)(nil)
