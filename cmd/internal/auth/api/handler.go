package authapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"counsel/cmd/identity"
	"counsel/cmd/internal/auth/session"
	"counsel/cmd/security/password"

	"github.com/go-playground/validator/v10"
)

// Handler wires the HTTP auth and user directory endpoints.
type Handler struct {
	log *slog.Logger
	cfg Config

	users     identity.Store
	recovery  identity.Recovery
	tokens    session.TokenManager
	resolver  *session.Resolver
	passwords password.Config
	codes     password.Config

	email   EmailSender
	captcha CaptchaVerifier

	validate   *validator.Validate
	throttle   *loginThrottle
	cookieName string
	sameSite   http.SameSite
	dummyHash  string
	now        func() time.Time
}

// Deps groups the collaborators a Handler needs. Recovery is optional; without
// it the signup code and password reset routes are not registered.
type Deps struct {
	Users      identity.Store
	Recovery   identity.Recovery
	Tokens     session.TokenManager
	Resolver   *session.Resolver
	Passwords  password.Config
	CookieName string
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, deps Deps, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if deps.Users == nil || deps.Tokens == nil || deps.Resolver == nil {
		return nil, errors.New("authapi: users, tokens and resolver are required")
	}
	sameSite, err := parseSameSite(cfg.CookieSameSite)
	if err != nil {
		return nil, err
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	if deps.Passwords.Params.MemoryKiB == 0 {
		deps.Passwords = password.DefaultConfig()
	}
	if deps.CookieName == "" {
		deps.CookieName = "token"
	}
	def := DefaultConfig()
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = def.OTPTTL
	}
	if cfg.OTPMaxAttempts <= 0 {
		cfg.OTPMaxAttempts = def.OTPMaxAttempts
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = def.ResetTTL
	}
	if cfg.ResetURL == "" {
		cfg.ResetURL = def.ResetURL
	}

	// Signup codes are short digit strings; only the hashing applies to them.
	codes := deps.Passwords
	codes.Policy.MinLength = 1
	codes.Policy.RejectVeryWeak = false

	h := &Handler{
		log:        log,
		cfg:        cfg,
		users:      deps.Users,
		recovery:   deps.Recovery,
		tokens:     deps.Tokens,
		resolver:   deps.Resolver,
		passwords:  deps.Passwords,
		codes:      codes,
		email:      NoopEmailSender{},
		captcha:    NoopCaptchaVerifier{},
		validate:   newValidator(),
		throttle:   newLoginThrottle(cfg.LoginIPMax, cfg.LoginIPWindow),
		cookieName: deps.CookieName,
		sameSite:   sameSite,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	// Unknown emails still pay for one Argon2 verify.
	dummyCfg := deps.Passwords
	dummyCfg.Policy.MinLength = 1
	if hash, err := dummyCfg.Hash("dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	}
	return h, nil
}

// Register wires auth and user routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	auth := h.resolver.RequireAuth

	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", h.handleLogout)
	mux.Handle("GET /api/auth/me", auth(http.HandlerFunc(h.handleMe)))
	if h.cfg.DemoSignup {
		mux.HandleFunc("POST /api/auth/demo-account", h.handleDemoAccount)
	}
	if h.recovery != nil {
		mux.HandleFunc("POST /api/auth/signup-request-otp", h.handleSignupRequestOTP)
		mux.HandleFunc("POST /api/auth/signup-complete", h.handleSignupComplete)
		mux.HandleFunc("POST /api/auth/forgot-password", h.handleForgotPassword)
		mux.HandleFunc("POST /api/auth/reset-password/{token}", h.handleResetPassword)
	}

	mux.Handle("GET /api/users", auth(http.HandlerFunc(h.handleListUsers)))
	mux.Handle("GET /api/users/profile/{id}", auth(http.HandlerFunc(h.handleProfile)))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	req.Email = identity.NormalizeEmail(req.Email)
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	now := h.now().UTC()
	ipk := ipKey(clientIP(r, h.cfg.TrustProxy))

	if blocked, retryAfter := h.throttle.Check(ipk, now); blocked {
		h.log.Warn("auth.login.rate_limited", "ip", ipk, "retry_after", retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}

	ua, err := h.users.GetUserAuthByEmail(ctx, req.Email)
	if err != nil {
		if !identity.IsNotFound(err) {
			h.log.Error("auth.login.lookup.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		if h.dummyHash != "" {
			_, _ = h.passwords.Verify(h.dummyHash, req.Password)
		}
		h.throttle.Fail(ipk, now)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	ok, err := h.passwords.Verify(ua.PasswordHash, req.Password)
	if err != nil || !ok {
		if err != nil {
			h.log.Warn("auth.login.hash.invalid", "user_id", ua.User.ID, "err", err)
		}
		h.throttle.Fail(ipk, now)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}
	h.throttle.Reset(ipk)

	token, exp, err := h.tokens.Issue(session.Identity{ID: ua.User.ID, Role: ua.User.Role}, now)
	if err != nil {
		h.log.Error("auth.login.issue.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.setTokenCookie(w, token, exp)
	h.log.Info("auth.login.ok", "user_id", ua.User.ID, "role", ua.User.Role)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: toUserResponse(ua.User)})
}

func (h *Handler) handleLogout(w http.ResponseWriter, _ *http.Request) {
	h.clearTokenCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := session.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	u, err := h.users.GetUserByID(r.Context(), id.ID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.log.Error("auth.me.lookup.fail", "user_id", id.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleDemoAccount(w http.ResponseWriter, r *http.Request) {
	var req demoAccountRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	req.Email = identity.NormalizeEmail(req.Email)
	req.Name = identity.NormalizeName(req.Name)
	req.Specialization = strings.TrimSpace(req.Specialization)
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", describeValidation(err))
		return
	}

	hash, ok := h.hashPassword(w, req.Password, "auth.demo.hash.fail")
	if !ok {
		return
	}

	role, _ := identity.ParseRole(req.Role)
	var spec *string
	if role == identity.RoleLawyer {
		spec = &req.Specialization
	}

	now := h.now().UTC()
	u, err := h.users.CreateUser(r.Context(), identity.CreateUserInput{
		Name:           req.Name,
		Email:          req.Email,
		PasswordHash:   hash,
		Role:           role,
		Specialization: spec,
		Profile: identity.Profile{
			Bio:      fmt.Sprintf("This is a demo %s account for testing purposes.", role),
			Location: req.Location,
		},
		Now: now,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid account details")
		default:
			h.log.Error("auth.demo.create.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	token, _, err := h.tokens.Issue(session.Identity{ID: u.ID, Role: u.Role}, now)
	if err != nil {
		h.log.Error("auth.demo.issue.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.demo.created", "user_id", u.ID, "role", u.Role)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: toUserResponse(u)})
}

// hashPassword applies the password policy and hashes pw, writing the error
// response when it fails.
func (h *Handler) hashPassword(w http.ResponseWriter, pw, event string) (string, bool) {
	hash, err := h.passwords.Hash(pw)
	if err == nil {
		return hash, true
	}
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, "invalid_request",
			fmt.Sprintf("password must be at least %d characters long", h.passwords.Policy.MinLength))
	case errors.Is(err, password.ErrPasswordTooLong), errors.Is(err, password.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.log.Error(event, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
	return "", false
}
