package session

import (
	"fmt"
	"strings"
	"time"

	"counsel/cmd/identity"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload. "id" and "role" are the public contract with web clients.
type Claims struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies access tokens.
type TokenManager interface {
	Issue(id Identity, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (Identity, error)
}

type hs256Manager struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
}

// NewJWTManager builds an HS256 TokenManager. The signing algorithm is pinned on verify.
func NewJWTManager(cfg Config) (TokenManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &hs256Manager{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		ttl:       cfg.TokenTTL,
		clockSkew: cfg.ClockSkew,
	}, nil
}

func (m *hs256Manager) Issue(id Identity, now time.Time) (string, time.Time, error) {
	if strings.TrimSpace(id.ID) == "" || !id.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("session: issue: %w", ErrInvalidToken)
	}

	exp := now.Add(m.ttl)
	claims := Claims{
		ID:   id.ID,
		Role: string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: sign: %w", err)
	}
	return signed, exp, nil
}

func (m *hs256Manager) Verify(token string, now time.Time) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	role, ok := identity.ParseRole(claims.Role)
	if strings.TrimSpace(claims.ID) == "" || !ok {
		return Identity{}, fmt.Errorf("%w: missing id or role claim", ErrInvalidToken)
	}
	return Identity{ID: claims.ID, Role: role}, nil
}
