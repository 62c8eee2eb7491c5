package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"counsel/cmd/identity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Secret = testSecret
	return cfg
}

func mustManager(t *testing.T) TokenManager {
	t.Helper()
	m, err := NewJWTManager(testConfig())
	require.NoError(t, err)
	return m
}

func TestJWT_IssueAndVerify(t *testing.T) {
	r := require.New(t)
	m := mustManager(t)
	now := time.Now().UTC()

	tok, exp, err := m.Issue(Identity{ID: "u-1", Role: identity.RoleLawyer}, now)
	r.NoError(err)
	r.Equal(now.Add(7*24*time.Hour), exp)

	id, err := m.Verify(tok, now.Add(time.Second))
	r.NoError(err)
	r.Equal(Identity{ID: "u-1", Role: identity.RoleLawyer}, id)
}

func TestJWT_Verify_Rejects(t *testing.T) {
	m := mustManager(t)
	now := time.Now().UTC()

	good, _, err := m.Issue(Identity{ID: "u-1", Role: identity.RoleClient}, now)
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, key any, claims Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func(id, role string) Claims {
		return Claims{ID: id, Role: role, RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "counsel",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}}
	}

	otherIssuer := valid("u-1", "client")
	otherIssuer.Issuer = "someone-else"
	noExp := valid("u-1", "client")
	noExp.ExpiresAt = nil

	cases := map[string]struct {
		token string
		at    time.Time
	}{
		"expired":       {good, now.Add(8 * 24 * time.Hour)},
		"garbage":       {"not.a.jwt", now},
		"wrong secret":  {sign(jwt.SigningMethodHS256, []byte("ffffffffffffffffffffffffffffffff"), valid("u-1", "client")), now},
		"wrong alg":     {sign(jwt.SigningMethodHS512, []byte(testSecret), valid("u-1", "client")), now},
		"alg none":      {sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid("u-1", "client")), now},
		"missing id":    {sign(jwt.SigningMethodHS256, []byte(testSecret), valid("", "client")), now},
		"unknown role":  {sign(jwt.SigningMethodHS256, []byte(testSecret), valid("u-1", "judge")), now},
		"other issuer":  {sign(jwt.SigningMethodHS256, []byte(testSecret), otherIssuer), now},
		"no expiration": {sign(jwt.SigningMethodHS256, []byte(testSecret), noExp), now},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.Verify(tc.token, tc.at)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWT_Verify_ToleratesClockSkew(t *testing.T) {
	m := mustManager(t)
	now := time.Now().UTC()

	tok, exp, err := m.Issue(Identity{ID: "u-1", Role: identity.RoleStudent}, now)
	require.NoError(t, err)

	_, err = m.Verify(tok, exp.Add(10*time.Second))
	require.NoError(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	short := cfg
	short.Secret = "too-short"
	require.ErrorIs(t, short.Validate(), ErrConfig)

	noTTL := cfg
	noTTL.TokenTTL = 0
	require.ErrorIs(t, noTTL.Validate(), ErrConfig)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("COUNSEL_JWT_SECRET", testSecret)
	t.Setenv("COUNSEL_TOKEN_TTL", "1h")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, "counsel", cfg.Issuer)
	assert.Equal(t, "token", cfg.CookieName)

	t.Setenv("COUNSEL_JWT_SECRET", "short")
	_, err = LoadConfigFromEnv()
	require.ErrorIs(t, err, ErrConfig)
}

func TestResolver_CookieThenBearer(t *testing.T) {
	r := require.New(t)
	m := mustManager(t)
	res := NewResolver(m, "token")
	now := time.Now().UTC()

	cookieTok, _, err := m.Issue(Identity{ID: "from-cookie", Role: identity.RoleClient}, now)
	r.NoError(err)
	bearerTok, _, err := m.Issue(Identity{ID: "from-bearer", Role: identity.RoleClient}, now)
	r.NoError(err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: cookieTok})
	req.Header.Set("Authorization", "Bearer "+bearerTok)
	id, err := res.Resolve(req)
	r.NoError(err)
	r.Equal("from-cookie", id.ID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+bearerTok)
	id, err = res.Resolve(req)
	r.NoError(err)
	r.Equal("from-bearer", id.ID)
}

func TestResolver_Unauthorized(t *testing.T) {
	res := NewResolver(mustManager(t), "token")

	for name, mutate := range map[string]func(*http.Request){
		"no credential":  func(*http.Request) {},
		"basic scheme":   func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
		"bad bearer":     func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
		"empty cookie":   func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: ""}) },
		"garbage cookie": func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: "x.y.z"}) },
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			mutate(req)
			_, err := res.Resolve(req)
			require.True(t, errors.Is(err, ErrUnauthorized), "got %v", err)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	m := mustManager(t)
	res := NewResolver(m, "token")

	var seen Identity
	h := res.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"unauthorized"`)

	tok, _, err := m.Issue(Identity{ID: "u-9", Role: identity.RoleAdvisor}, time.Now().UTC())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, Identity{ID: "u-9", Role: identity.RoleAdvisor}, seen)
}
