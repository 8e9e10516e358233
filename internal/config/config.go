// Package config centralizes runtime settings: hard defaults, an
// optional .env file, then CHATRELAY_* environment variables, each layer
// overriding the one before it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTP       HTTPConfig
	Chat       ChatConfig
	Moderation ModerationConfig
	Bot        BotConfig

	// AuditDB is the SQLite path for the moderation audit trail. An
	// explicitly empty value disables auditing.
	AuditDB   string
	StaticDir string
}

type HTTPConfig struct {
	Host string
	Port int
	// PublicOrigin is the externally reachable base URL, used for the
	// bot's deep link. Empty derives http://localhost:<port>.
	PublicOrigin string
}

type ChatConfig struct {
	HistoryCapacity int
	MessageMaxLen   int
	AnnounceLeave   bool
}

type ModerationConfig struct {
	// Secret authenticates moderation HTTP calls. Required.
	Secret     string
	RateLimit  int
	RateWindow time.Duration
}

type BotConfig struct {
	// Token enables the bot relay; empty disables it.
	Token     string
	Moderator string
}

func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Chat: ChatConfig{
			HistoryCapacity: 200,
			MessageMaxLen:   1000,
			AnnounceLeave:   true,
		},
		Moderation: ModerationConfig{
			RateLimit:  5,
			RateWindow: 10 * time.Second,
		},
		AuditDB:   "./chatrelay-audit.db",
		StaticDir: "./static",
	}
}

// Load reads a .env file when one is present, then applies environment
// overrides on top of the defaults and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := fromEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func fromEnv() *Config {
	config := DefaultConfig()

	if host := os.Getenv("CHATRELAY_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if port := os.Getenv("CHATRELAY_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if origin := os.Getenv("CHATRELAY_PUBLIC_ORIGIN"); origin != "" {
		config.HTTP.PublicOrigin = origin
	}

	config.Moderation.Secret = os.Getenv("CHATRELAY_MOD_SECRET")
	if limit := os.Getenv("CHATRELAY_RATE_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			config.Moderation.RateLimit = n
		}
	}
	if window := os.Getenv("CHATRELAY_RATE_WINDOW"); window != "" {
		if d, err := time.ParseDuration(window); err == nil {
			config.Moderation.RateWindow = d
		}
	}

	if capacity := os.Getenv("CHATRELAY_HISTORY_CAPACITY"); capacity != "" {
		if n, err := strconv.Atoi(capacity); err == nil {
			config.Chat.HistoryCapacity = n
		}
	}
	if maxLen := os.Getenv("CHATRELAY_MESSAGE_MAX_LEN"); maxLen != "" {
		if n, err := strconv.Atoi(maxLen); err == nil {
			config.Chat.MessageMaxLen = n
		}
	}
	if announce := os.Getenv("CHATRELAY_ANNOUNCE_LEAVE"); announce != "" {
		if b, err := strconv.ParseBool(announce); err == nil {
			config.Chat.AnnounceLeave = b
		}
	}

	config.Bot.Token = os.Getenv("CHATRELAY_BOT_TOKEN")
	config.Bot.Moderator = os.Getenv("CHATRELAY_MODERATOR")

	// Audit and static dir distinguish "unset" from "explicitly empty":
	// an empty CHATRELAY_AUDIT_DB turns the audit trail off.
	if auditDB, ok := os.LookupEnv("CHATRELAY_AUDIT_DB"); ok {
		config.AuditDB = auditDB
	}
	if staticDir := os.Getenv("CHATRELAY_STATIC_DIR"); staticDir != "" {
		config.StaticDir = staticDir
	}

	if config.HTTP.PublicOrigin == "" {
		config.HTTP.PublicOrigin = fmt.Sprintf("http://localhost:%d", config.HTTP.Port)
	}
	return config
}

func (c *Config) Validate() error {
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.Moderation.Secret == "" {
		return fmt.Errorf("moderation secret is required (set CHATRELAY_MOD_SECRET)")
	}
	if c.Moderation.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.Moderation.RateWindow <= 0 {
		return fmt.Errorf("rate window must be positive")
	}
	if c.Chat.HistoryCapacity <= 0 {
		return fmt.Errorf("history capacity must be positive")
	}
	if c.Chat.MessageMaxLen <= 0 {
		return fmt.Errorf("message max length must be positive")
	}
	if c.Bot.Token != "" && c.Bot.Moderator == "" {
		return fmt.Errorf("bot token set without a moderator identity (set CHATRELAY_MODERATOR)")
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}
