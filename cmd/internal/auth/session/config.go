package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// MinSecretBytes is the shortest accepted HS256 secret.
const MinSecretBytes = 32

// Config defines runtime configuration for token issuance and verification.
type Config struct {
	// Secret is the HS256 signing key.
	Secret string `envconfig:"JWT_SECRET" required:"true"`

	// Issuer is set in "iss" and required on verify.
	Issuer string `envconfig:"JWT_ISSUER" default:"counsel"`

	// TokenTTL is the access token lifetime; the login cookie uses the same Max-Age.
	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"168h"`

	// ClockSkew is the leeway applied to exp/iat/nbf checks.
	ClockSkew time.Duration `envconfig:"CLOCK_SKEW" default:"30s"`

	// CookieName carries the token for browser clients.
	CookieName string `envconfig:"AUTH_COOKIE_NAME" default:"token"`
}

// DefaultConfig returns the defaults without a secret.
func DefaultConfig() Config {
	return Config{
		Issuer:     "counsel",
		TokenTTL:   7 * 24 * time.Hour,
		ClockSkew:  30 * time.Second,
		CookieName: "token",
	}
}

// LoadConfigFromEnv reads COUNSEL_JWT_SECRET (required), COUNSEL_JWT_ISSUER,
// COUNSEL_TOKEN_TTL, COUNSEL_CLOCK_SKEW and COUNSEL_AUTH_COOKIE_NAME.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("COUNSEL", &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces secret length and positive durations.
func (c Config) Validate() error {
	switch {
	case len(c.Secret) < MinSecretBytes:
		return fmt.Errorf("%w: JWT secret must be at least %d bytes", ErrConfig, MinSecretBytes)
	case strings.TrimSpace(c.Issuer) == "":
		return fmt.Errorf("%w: empty issuer", ErrConfig)
	case c.TokenTTL <= 0:
		return fmt.Errorf("%w: token ttl must be positive", ErrConfig)
	case c.ClockSkew < 0:
		return fmt.Errorf("%w: clock skew must not be negative", ErrConfig)
	case strings.TrimSpace(c.CookieName) == "":
		return fmt.Errorf("%w: empty cookie name", ErrConfig)
	}
	return nil
}
