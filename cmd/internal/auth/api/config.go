package authapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool  `envconfig:"AUTH_TRUST_PROXY" default:"false"`
	MaxBodyBytes int64 `envconfig:"AUTH_MAX_BODY_BYTES" default:"65536"`

	// Failed logins per client IP inside LoginIPWindow before 429.
	LoginIPMax    int           `envconfig:"AUTH_LOGIN_IP_MAX" default:"20"`
	LoginIPWindow time.Duration `envconfig:"AUTH_LOGIN_IP_WINDOW" default:"5m"`

	CookieSecure   bool   `envconfig:"AUTH_COOKIE_SECURE" default:"false"`
	CookieDomain   string `envconfig:"AUTH_COOKIE_DOMAIN"`
	CookiePath     string `envconfig:"AUTH_COOKIE_PATH" default:"/"`
	CookieSameSite string `envconfig:"AUTH_COOKIE_SAMESITE" default:"lax"`

	// DemoSignup enables POST /api/auth/demo-account.
	DemoSignup bool `envconfig:"DEMO_SIGNUP" default:"true"`

	// Signup codes and password reset links.
	OTPTTL         time.Duration `envconfig:"AUTH_OTP_TTL" default:"10m"`
	OTPMaxAttempts int           `envconfig:"AUTH_OTP_MAX_ATTEMPTS" default:"5"`
	ResetTTL       time.Duration `envconfig:"AUTH_RESET_TTL" default:"10m"`
	ResetURL       string        `envconfig:"AUTH_RESET_URL" default:"http://localhost:3000/reset-password"`

	// Mail relay. Without SMTPAddr account mail is dropped.
	SMTPAddr     string `envconfig:"SMTP_ADDR"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	MailFrom     string `envconfig:"MAIL_FROM" default:"Counsel <no-reply@localhost>"`
}

// DefaultConfig mirrors the envconfig defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   64 << 10,
		LoginIPMax:     20,
		LoginIPWindow:  5 * time.Minute,
		CookiePath:     "/",
		CookieSameSite: "lax",
		DemoSignup:     true,
		OTPTTL:         10 * time.Minute,
		OTPMaxAttempts: 5,
		ResetTTL:       10 * time.Minute,
		ResetURL:       "http://localhost:3000/reset-password",
		MailFrom:       "Counsel <no-reply@localhost>",
	}
}

// LoadConfigFromEnv loads COUNSEL_AUTH_*, COUNSEL_SMTP_*, COUNSEL_MAIL_FROM and COUNSEL_DEMO_SIGNUP.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("COUNSEL", &cfg); err != nil {
		return Config{}, fmt.Errorf("auth api config: %w", err)
	}
	if _, err := parseSameSite(cfg.CookieSameSite); err != nil {
		return Config{}, err
	}
	if cfg.MaxBodyBytes <= 0 || cfg.LoginIPWindow <= 0 {
		return Config{}, fmt.Errorf("auth api config: body limit and login window must be positive")
	}
	if cfg.OTPTTL <= 0 || cfg.ResetTTL <= 0 || cfg.OTPMaxAttempts <= 0 {
		return Config{}, fmt.Errorf("auth api config: otp and reset limits must be positive")
	}
	return cfg, nil
}

func parseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("COUNSEL_AUTH_COOKIE_SAMESITE: invalid value %q", s)
	}
}
