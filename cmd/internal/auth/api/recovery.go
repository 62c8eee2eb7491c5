package authapi

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"counsel/cmd/identity"
	"counsel/cmd/internal/auth/session"
)

const (
	otpSubject   = "Your Counsel verification code"
	resetSubject = "Reset your Counsel password"

	forgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."
)

// newOTP returns a uniformly random 6 digit code.
func newOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// newResetToken returns a 32 byte random token in hex and its SHA-256 digest.
// Only the digest is stored.
func newResetToken() (token, digest string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(b)
	return token, hashResetToken(token), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (h *Handler) checkCaptcha(w http.ResponseWriter, r *http.Request, token string) bool {
	if err := h.captcha.Verify(r.Context(), normalizeCaptchaToken(token), clientIP(r, h.cfg.TrustProxy)); err != nil {
		writeError(w, http.StatusBadRequest, "captcha_invalid", "captcha verification failed")
		return false
	}
	return true
}

func (h *Handler) handleSignupRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	req.Email = identity.NormalizeEmail(req.Email)
	req.Specialization = strings.TrimSpace(req.Specialization)
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", describeValidation(err))
		return
	}
	if !h.checkCaptcha(w, r, req.CaptchaToken) {
		return
	}

	ctx := r.Context()
	_, err := h.users.GetUserAuthByEmail(ctx, req.Email)
	switch {
	case err == nil:
		writeError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
		return
	case !identity.IsNotFound(err):
		h.log.Error("auth.otp.lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	code, err := newOTP()
	if err != nil {
		h.log.Error("auth.otp.generate.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	codeHash, err := h.codes.Hash(code)
	if err != nil {
		h.log.Error("auth.otp.hash.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	role, _ := identity.ParseRole(req.Role)
	var spec *string
	if role == identity.RoleLawyer {
		spec = &req.Specialization
	}

	now := h.now().UTC()
	v, err := h.recovery.CreateVerification(ctx, identity.Verification{
		Email:          req.Email,
		CodeHash:       codeHash,
		Role:           role,
		Specialization: spec,
		ExpiresAt:      now.Add(h.cfg.OTPTTL),
		CreatedAt:      now,
	})
	if err != nil {
		h.log.Error("auth.otp.store.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	body := fmt.Sprintf("Your Counsel verification code is %s.\nIt expires in %d minutes.\n",
		code, int(h.cfg.OTPTTL.Minutes()))
	if err := h.email.SendMail(ctx, req.Email, otpSubject, body); err != nil {
		h.log.Error("auth.otp.mail.fail", "verification_id", v.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "mail_failed", "could not send the verification email")
		return
	}

	h.log.Info("auth.otp.sent", "verification_id", v.ID, "role", role)
	writeJSON(w, http.StatusOK, statusResponse{
		Success: true,
		Message: "An OTP has been sent to your email for verification.",
	})
}

func (h *Handler) handleSignupComplete(w http.ResponseWriter, r *http.Request) {
	var req signupCompleteRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	req.Email = identity.NormalizeEmail(req.Email)
	req.Name = identity.NormalizeName(req.Name)
	req.OTP = strings.TrimSpace(req.OTP)
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", describeValidation(err))
		return
	}

	ctx := r.Context()
	now := h.now().UTC()

	v, err := h.recovery.LatestVerification(ctx, req.Email)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusBadRequest, "invalid_otp", "OTP not found. Please request a new one.")
			return
		}
		h.log.Error("auth.signup.lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	switch {
	case v.Expired(now):
		writeError(w, http.StatusBadRequest, "otp_expired", "OTP has expired.")
		return
	case v.Attempts >= h.cfg.OTPMaxAttempts:
		writeError(w, http.StatusBadRequest, "otp_locked", "Too many wrong attempts. Please request a new OTP.")
		return
	}

	if ok, err := h.codes.Verify(v.CodeHash, req.OTP); err != nil || !ok {
		if err != nil {
			h.log.Warn("auth.signup.otp_hash.invalid", "verification_id", v.ID, "err", err)
		}
		if _, err := h.recovery.FailVerification(ctx, v.ID); err != nil {
			h.log.Error("auth.signup.attempt.fail", "verification_id", v.ID, "err", err)
		}
		writeError(w, http.StatusBadRequest, "invalid_otp", "Invalid OTP provided.")
		return
	}

	// A password rejected by policy must not burn the code.
	hash, ok := h.hashPassword(w, req.Password, "auth.signup.hash.fail")
	if !ok {
		return
	}

	if err := h.recovery.ConsumeVerification(ctx, v.ID); err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusBadRequest, "invalid_otp", "Invalid OTP provided.")
			return
		}
		h.log.Error("auth.signup.consume.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	u, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Name:           req.Name,
		Email:          req.Email,
		PasswordHash:   hash,
		Role:           v.Role,
		Specialization: v.Specialization,
		Now:            now,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid account details")
		default:
			h.log.Error("auth.signup.create.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	token, exp, err := h.tokens.Issue(session.Identity{ID: u.ID, Role: u.Role}, now)
	if err != nil {
		h.log.Error("auth.signup.issue.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.setTokenCookie(w, token, exp)
	h.log.Info("auth.signup.created", "user_id", u.ID, "role", u.Role)
	writeJSON(w, http.StatusCreated, signupResponse{
		Success: true,
		Token:   token,
		User:    toUserResponse(u),
		Message: "Account created successfully!",
	})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	req.Email = identity.NormalizeEmail(req.Email)
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", describeValidation(err))
		return
	}
	if !h.checkCaptcha(w, r, req.CaptchaToken) {
		return
	}

	ctx := r.Context()
	generic := statusResponse{Success: true, Message: forgotPasswordMessage}

	ua, err := h.users.GetUserAuthByEmail(ctx, req.Email)
	if err != nil {
		if identity.IsNotFound(err) {
			writeJSON(w, http.StatusOK, generic)
			return
		}
		h.log.Error("auth.forgot.lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	token, digest, err := newResetToken()
	if err != nil {
		h.log.Error("auth.forgot.generate.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	now := h.now().UTC()
	if err := h.recovery.PutPasswordReset(ctx, ua.User.ID, digest, now.Add(h.cfg.ResetTTL), now); err != nil {
		h.log.Error("auth.forgot.store.fail", "user_id", ua.User.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	link := strings.TrimRight(h.cfg.ResetURL, "/") + "/" + token
	body := fmt.Sprintf("A password reset was requested for your Counsel account.\n\n%s\n\nThe link expires in %d minutes. Ignore this email if you did not ask for it.\n",
		link, int(h.cfg.ResetTTL.Minutes()))
	if err := h.email.SendMail(ctx, ua.User.Email, resetSubject, body); err != nil {
		h.log.Error("auth.forgot.mail.fail", "user_id", ua.User.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "mail_failed", "could not send the reset email")
		return
	}

	h.log.Info("auth.forgot.sent", "user_id", ua.User.ID)
	writeJSON(w, http.StatusOK, generic)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.PathValue("token"))

	var req resetPasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "password is required")
		return
	}
	if token == "" {
		writeError(w, http.StatusBadRequest, "invalid_token", "Token is invalid or has expired.")
		return
	}

	hash, ok := h.hashPassword(w, req.Password, "auth.reset.hash.fail")
	if !ok {
		return
	}

	u, err := h.recovery.ResetPassword(r.Context(), hashResetToken(token), hash, h.now().UTC())
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusBadRequest, "invalid_token", "Token is invalid or has expired.")
			return
		}
		h.log.Error("auth.reset.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.reset.ok", "user_id", u.ID)
	writeJSON(w, http.StatusOK, statusResponse{
		Success: true,
		Message: "Password has been updated successfully.",
	})
}
