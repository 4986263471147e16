package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all client configuration.
type Config struct {
	Client    ClientConfig
	Chat      ChatConfig
	HTTP      HTTPConfig
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Prefs     PrefsConfig
}

// ClientConfig locates the workspace backend.
type ClientConfig struct {
	// Origin plays the role of the page origin in the browser build: the
	// chat socket and REST base are derived from it when not set explicitly.
	Origin  string `envconfig:"ARC_ORIGIN" default:"http://localhost:3000"`
	ChatURL string `envconfig:"NEXT_PUBLIC_CHAT_WS_URL"`
	APIURL  string `envconfig:"ARC_API_URL"`
}

// ChatConfig holds streaming chat transport timings.
type ChatConfig struct {
	InitialDelay     time.Duration `envconfig:"ARC_CHAT_INITIAL_DELAY" default:"100ms"`
	ReconnectDelay   time.Duration `envconfig:"ARC_CHAT_RECONNECT_DELAY" default:"2s"`
	MaxReconnects    int           `envconfig:"ARC_CHAT_MAX_RECONNECTS" default:"5"`
	HandshakeTimeout time.Duration `envconfig:"ARC_CHAT_HANDSHAKE_TIMEOUT" default:"10s"`
}

// HTTPConfig holds REST client behaviour.
type HTTPConfig struct {
	Timeout          time.Duration `envconfig:"ARC_HTTP_TIMEOUT" default:"30s"`
	RetryMax         int           `envconfig:"ARC_HTTP_RETRY_MAX" default:"3"`
	RequestsPerSec   float64       `envconfig:"ARC_HTTP_RPS" default:"0"`
	BreakerThreshold uint32        `envconfig:"ARC_HTTP_BREAKER_THRESHOLD" default:"5"`
}

// ServerConfig holds the mock backend settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// Token, when set, is required as a bearer token on REST routes.
	Token     string        `envconfig:"ARC_MOCK_TOKEN"`
	EventPoll time.Duration `envconfig:"ARC_MOCK_EVENT_POLL" default:"2s"`
	// Progress advances active fixture runs one status per tick. Zero
	// freezes them.
	Progress time.Duration `envconfig:"ARC_MOCK_PROGRESS" default:"5s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds mock server rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// PrefsConfig locates the persisted preferences file. Empty means the
// platform default under the user config directory.
type PrefsConfig struct {
	Path string `envconfig:"ARC_PREFS_PATH"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			Origin: "http://localhost:3000",
		},
		Chat: ChatConfig{
			InitialDelay:     100 * time.Millisecond,
			ReconnectDelay:   2 * time.Second,
			MaxReconnects:    5,
			HandshakeTimeout: 10 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:          30 * time.Second,
			RetryMax:         3,
			BreakerThreshold: 5,
		},
		Server: ServerConfig{
			Port:      "8000",
			Host:      "0.0.0.0",
			EventPoll: 2 * time.Second,
			Progress:  5 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// APIBaseURL returns the REST base: the explicit API URL, else <origin>/api.
func (c ClientConfig) APIBaseURL() string {
	if c.APIURL != "" {
		return strings.TrimRight(c.APIURL, "/")
	}
	return strings.TrimRight(c.Origin, "/") + "/api"
}
