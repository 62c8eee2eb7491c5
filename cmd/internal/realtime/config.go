package realtime

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds websocket gateway settings (COUNSEL_WS_*).
type Config struct {
	// RequireAuth refuses handshakes without a valid credential and binds the
	// connection to the verified identity.
	RequireAuth bool `envconfig:"WS_REQUIRE_AUTH" default:"true"`

	OriginRequired bool     `envconfig:"WS_ORIGIN_REQUIRED" default:"true"`
	AllowedOrigins []string `envconfig:"WS_ALLOWED_ORIGINS" default:"http://localhost,http://127.0.0.1"`

	// DevInsecure disables the websocket library's own origin check. Dev only.
	DevInsecure bool `envconfig:"WS_DEV_INSECURE" default:"false"`

	WriteTimeout     time.Duration `envconfig:"WS_WRITE_TIMEOUT" default:"5s"`
	ReadIdleTimeout  time.Duration `envconfig:"WS_READ_IDLE_TIMEOUT" default:"2m"`
	SendQueueSize    int           `envconfig:"WS_SEND_QUEUE" default:"256"`
	MaxFrameBytes    int64         `envconfig:"WS_MAX_FRAME_BYTES" default:"65536"`
	HeartbeatEvery   time.Duration `envconfig:"WS_HEARTBEAT_INTERVAL" default:"25s"`
	HeartbeatTimeout time.Duration `envconfig:"WS_HEARTBEAT_TIMEOUT" default:"5s"`
	RateEvents       int           `envconfig:"WS_RATE_EVENTS" default:"120"`
	RateWindow       time.Duration `envconfig:"WS_RATE_WINDOW" default:"10s"`
}

// DefaultConfig returns secure defaults.
func DefaultConfig() Config {
	return Config{
		RequireAuth:      true,
		OriginRequired:   true,
		AllowedOrigins:   []string{"http://localhost", "http://127.0.0.1"},
		WriteTimeout:     defaultWriteTimeout,
		ReadIdleTimeout:  defaultReadIdle,
		SendQueueSize:    defaultSendQueueSize,
		MaxFrameBytes:    defaultMaxFrameBytes,
		HeartbeatEvery:   defaultHeartbeatInterval,
		HeartbeatTimeout: defaultHeartbeatTimeout,
		RateEvents:       defaultRateLimitEvents,
		RateWindow:       defaultRateLimitWindow,
	}
}

// LoadConfigFromEnv reads COUNSEL_WS_* variables.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("COUNSEL", &cfg); err != nil {
		return Config{}, fmt.Errorf("realtime: %w", err)
	}
	return cfg.normalized(), nil
}

// normalized clamps non-positive values back to defaults.
func (c Config) normalized() Config {
	def := DefaultConfig()

	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = def.ReadIdleTimeout
	}
	if c.SendQueueSize < minSendQueueSize {
		c.SendQueueSize = minSendQueueSize
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = def.MaxFrameBytes
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = def.HeartbeatEvery
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if c.RateEvents <= 0 {
		c.RateEvents = def.RateEvents
	}
	if c.RateWindow <= 0 {
		c.RateWindow = def.RateWindow
	}

	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.AllowedOrigins = origins
	return c
}
