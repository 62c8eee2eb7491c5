package app

import (
	"errors"
	"slices"

	"counsel/cmd/internal/realtime"
)

// ValidateSecurityConfig enforces Counsel's security policy at startup.
//
// Fail-fast: a browser-facing misconfiguration is a startup error, not a warning.
func ValidateSecurityConfig(cfg Config, ws realtime.Config) error {
	if cfg.CORSAllowCredentials && slices.Contains(cfg.CORSAllowedOrigins, "*") {
		return errors.New("security policy: COUNSEL_CORS_ALLOWED_ORIGINS=* cannot be combined with COUNSEL_CORS_ALLOW_CREDENTIALS=true")
	}

	if ws.OriginRequired && len(ws.AllowedOrigins) == 0 && !ws.DevInsecure {
		return errors.New("security policy: COUNSEL_WS_ORIGIN_REQUIRED=true but COUNSEL_WS_ALLOWED_ORIGINS is empty")
	}

	// Unauthenticated sockets trust client-supplied ids; allowing any origin on top of that is never intended.
	if !ws.RequireAuth && slices.Contains(ws.AllowedOrigins, "*") && !ws.DevInsecure {
		return errors.New("security policy: COUNSEL_WS_REQUIRE_AUTH=false with COUNSEL_WS_ALLOWED_ORIGINS=* requires COUNSEL_WS_DEV_INSECURE=true")
	}

	return nil
}
