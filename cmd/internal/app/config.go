package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// Config contains the process-level runtime configuration (COUNSEL_*).
// Auth, websocket and password settings are loaded by their own packages.
type Config struct {
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:"0.0.0.0:8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogColor  bool   `envconfig:"LOG_COLOR" default:"false"`

	ReadHeaderTimeout time.Duration `envconfig:"HTTP_READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout      time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout       time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes    int           `envconfig:"HTTP_MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	DatabaseURL   string `envconfig:"DATABASE_URL"`
	DBSchema      string `envconfig:"DB_SCHEMA" default:"counsel"`
	DBMaxConns    int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns    int32  `envconfig:"DB_MIN_CONNS" default:"0"`
	DBAutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`

	// StoreBackend selects message persistence. Empty picks postgres when a
	// DSN is configured and memory otherwise.
	StoreBackend string `envconfig:"STORE_BACKEND"`
	BadgerPath   string `envconfig:"BADGER_PATH" default:"data/messages"`

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool `envconfig:"READINESS_REQUIRE_DB" default:"false"`

	CORSAllowedOrigins   []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
	CORSAllowCredentials bool     `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	CORSMaxAgeSeconds    int      `envconfig:"CORS_MAX_AGE_SECONDS" default:"600"`

	// ChatRequireConnection limits realtime chat to users with an accepted connection.
	ChatRequireConnection bool `envconfig:"CHAT_REQUIRE_CONNECTION" default:"false"`
}

// LoadConfig loads a .env file when present, then reads COUNSEL_* variables.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("app: load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("COUNSEL", &cfg); err != nil {
		return Config{}, fmt.Errorf("app: %w", err)
	}
	return cfg.normalized()
}

// Backend returns the effective message store backend.
func (c Config) Backend() string {
	if c.StoreBackend != "" {
		return c.StoreBackend
	}
	if c.DatabaseURL != "" {
		return BackendPostgres
	}
	return BackendMemory
}

func (c Config) normalized() (Config, error) {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)

	switch c.StoreBackend {
	case "", BackendMemory, BackendBadger:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return Config{}, errors.New("app: COUNSEL_STORE_BACKEND=postgres requires COUNSEL_DATABASE_URL")
		}
	default:
		return Config{}, fmt.Errorf("app: unknown COUNSEL_STORE_BACKEND %q", c.StoreBackend)
	}

	origins := c.CORSAllowedOrigins[:0]
	for _, o := range c.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSAllowedOrigins = origins
	return c, nil
}
