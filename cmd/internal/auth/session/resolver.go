package session

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Resolver turns an inbound request into a verified Identity.
type Resolver struct {
	tokens     TokenManager
	cookieName string
	now        func() time.Time
}

// NewResolver builds a Resolver reading cookieName first, then the bearer header.
func NewResolver(tokens TokenManager, cookieName string) *Resolver {
	if cookieName == "" {
		cookieName = "token"
	}
	return &Resolver{tokens: tokens, cookieName: cookieName, now: time.Now}
}

// Resolve returns the caller's identity or an error wrapping ErrUnauthorized.
func (r *Resolver) Resolve(req *http.Request) (Identity, error) {
	if r == nil || r.tokens == nil || req == nil {
		return Identity{}, ErrUnauthorized
	}

	tok := r.Credential(req)
	if tok == "" {
		return Identity{}, ErrUnauthorized
	}

	id, err := r.tokens.Verify(tok, r.now().UTC())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return id, nil
}

// Credential extracts the raw token: cookie first, then Authorization: Bearer.
func (r *Resolver) Credential(req *http.Request) string {
	if c, err := req.Cookie(r.cookieName); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v
		}
	}
	return bearerToken(req.Header.Get("Authorization"))
}

func bearerToken(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return ""
	}
	scheme, rest, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(rest)
}
