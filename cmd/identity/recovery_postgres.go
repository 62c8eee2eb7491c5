package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"counsel/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const verificationColumns = `id, email, code_hash, role, specialization, attempts, expires_at, created_at`

func (s *PostgresStore) CreateVerification(ctx context.Context, v Verification) (Verification, error) {
	const op = "identity.CreateVerification"

	v, err := validateVerification(op, v)
	if err != nil {
		return Verification{}, err
	}
	v.ID = ids.Make()
	v.Attempts = 0

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.table("signup_verifications")+` (`+verificationColumns+`)
		   VALUES ($1, $2, $3, $4, $5, 0, $6, $7)`,
		v.ID, v.Email, v.CodeHash, string(v.Role), v.Specialization, v.ExpiresAt, v.CreatedAt)
	if err != nil {
		return Verification{}, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

func (s *PostgresStore) LatestVerification(ctx context.Context, email string) (Verification, error) {
	const op = "identity.LatestVerification"

	var (
		v    Verification
		role string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT `+verificationColumns+` FROM `+s.table("signup_verifications")+`
		  WHERE email = $1 AND NOT consumed
		  ORDER BY created_at DESC, id DESC
		  LIMIT 1`,
		NormalizeEmail(email),
	).Scan(&v.ID, &v.Email, &v.CodeHash, &role, &v.Specialization, &v.Attempts, &v.ExpiresAt, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Verification{}, NotFoundError{Op: op, Resource: "verification"}
	}
	if err != nil {
		return Verification{}, fmt.Errorf("%s: %w", op, err)
	}
	v.Role = Role(role)
	return v, nil
}

func (s *PostgresStore) FailVerification(ctx context.Context, id string) (int, error) {
	const op = "identity.FailVerification"

	var attempts int
	err := s.pool.QueryRow(ctx,
		`UPDATE `+s.table("signup_verifications")+` SET attempts = attempts + 1
		  WHERE id = $1 RETURNING attempts`, id,
	).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, NotFoundError{Op: op, Resource: "verification"}
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return attempts, nil
}

func (s *PostgresStore) ConsumeVerification(ctx context.Context, id string) error {
	const op = "identity.ConsumeVerification"

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.table("signup_verifications")+` SET consumed = true
		  WHERE id = $1 AND NOT consumed`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "verification"}
	}
	return nil
}

func (s *PostgresStore) PutPasswordReset(ctx context.Context, userID, tokenHash string, expiresAt, now time.Time) error {
	const op = "identity.PutPasswordReset"

	if !ids.IsUserID(userID) {
		return NotFoundError{Op: op, Resource: "user"}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table("password_resets")+` (user_id, token_hash, expires_at, created_at)
		   VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE
		   SET token_hash = EXCLUDED.token_hash,
		       expires_at = EXCLUDED.expires_at,
		       created_at = EXCLUDED.created_at`,
		userID, tokenHash, expiresAt, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
			return NotFoundError{Op: op, Resource: "user"}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *PostgresStore) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (User, error) {
	const op = "identity.ResetPassword"

	if passwordHash == "" {
		return User{}, invalid(op, "password hash is required")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return User{}, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The delete claims the token; a concurrent redemption finds no row.
	var userID string
	err = tx.QueryRow(ctx,
		`DELETE FROM `+s.table("password_resets")+`
		  WHERE token_hash = $1 AND expires_at > $2
		  RETURNING user_id`,
		tokenHash, now,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "reset token"}
	}
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	u, err := scanUser(tx.QueryRow(ctx,
		`UPDATE `+s.table("users")+` SET password_hash = $2, updated_at = $3
		  WHERE id = $1 RETURNING `+userColumns,
		userID, passwordHash, now))
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, fmt.Errorf("%s: commit: %w", op, err)
	}
	return u, nil
}

var _ Recovery = (*PostgresStore)(nil)
