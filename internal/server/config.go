package server

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/samber/lo"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// RateLimitConfig defines per-sender message rate limiting.
type RateLimitConfig struct {
	Burst          int           `envconfig:"BURST" default:"5"`
	RefillInterval time.Duration `envconfig:"REFILL_INTERVAL" default:"1s"`
}

// Config holds the server configuration, read from the environment.
type Config struct {
	Port              string          `envconfig:"SERVER_PORT" default:":8080"`
	AllowedOrigins    []string        `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	MaxMessageSize    int64           `envconfig:"MAX_MESSAGE_SIZE" default:"4096"`
	RateLimit         RateLimitConfig `envconfig:"RATE_LIMIT"`
	SubscriberBuffer  int             `envconfig:"SUBSCRIBER_BUFFER" default:"64"`
	HeartbeatInterval time.Duration   `envconfig:"HEARTBEAT_INTERVAL" default:"25s"`
	RoomDirectory     bool            `envconfig:"ROOM_DIRECTORY" default:"true"`
	RetainAdminRooms  bool            `envconfig:"RETAIN_ADMIN_ROOMS" default:"true"`
	AdminSecret       string          `envconfig:"ADMIN_SECRET"`
	AdminTokenTTL     time.Duration   `envconfig:"ADMIN_TOKEN_TTL" default:"1h"`
	TokenSigningKey   string          `envconfig:"TOKEN_SIGNING_KEY"`
	ShutdownTimeout   time.Duration   `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	LogLevel          string          `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat         string          `envconfig:"LOG_FORMAT" default:"text"`
}

// DefaultConfig returns the configuration used when no variables are set.
func DefaultConfig() Config {
	return Config{
		Port:           ":8080",
		AllowedOrigins: []string{"http://localhost:8080"},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		SubscriberBuffer:  64,
		HeartbeatInterval: 25 * time.Second,
		RoomDirectory:     true,
		RetainAdminRooms:  true,
		AdminTokenTTL:     time.Hour,
		ShutdownTimeout:   10 * time.Second,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	return cfg.Sanitize(), nil
}

// Sanitize replaces unusable values with their defaults.
func (c Config) Sanitize() Config {
	def := DefaultConfig()

	if c.Port == "" {
		c.Port = def.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = def.SubscriberBuffer
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.AdminTokenTTL <= 0 {
		c.AdminTokenTTL = def.AdminTokenTTL
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	c.AllowedOrigins = lo.FilterMap(c.AllowedOrigins, func(origin string, _ int) (string, bool) {
		origin = strings.TrimSpace(origin)
		return origin, origin != ""
	})
	return c
}

// ChatConfig derives the chat service settings.
func (c Config) ChatConfig() chat.Config {
	return chat.Config{
		SubscriberBuffer:   c.SubscriberBuffer,
		Directory:          c.RoomDirectory,
		RetainCreatedRooms: c.RetainAdminRooms,
		MaxContentLength:   int(c.MaxMessageSize),
		RateLimit: chat.RateLimit{
			Burst:          c.RateLimit.Burst,
			RefillInterval: c.RateLimit.RefillInterval,
		},
	}
}
