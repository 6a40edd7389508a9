// Package config handles application configuration from environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tweet_relay/internal/secret"
)

// Storage driver names accepted in STORAGE_DRIVER.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	EncryptionKey    []byte
	StorageDriver    string
	DataDir          string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64

	PollInterval time.Duration
	Lookback     time.Duration
	FetchCount   int
	SeenCap      int
	SendDelay    time.Duration

	TwitterBaseURL string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	rawKey := os.Getenv("ENCRYPTION_KEY")
	if rawKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(rawKey)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY is not valid base64: %w", err)
	}
	if len(key) != secret.KeySize {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to %d bytes, got %d", secret.KeySize, len(key))
	}

	driver := strings.ToLower(envOrDefault("STORAGE_DRIVER", DriverFile))
	if driver != DriverFile && driver != DriverSQLite {
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q, use %q or %q", driver, DriverFile, DriverSQLite)
	}

	pollInterval, err := envMinutes("POLL_INTERVAL_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	lookback, err := envMinutes("LOOKBACK_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	fetchCount, err := envInt("FETCH_COUNT", 150)
	if err != nil {
		return nil, err
	}
	seenCap, err := envInt("SEEN_CAP", 200)
	if err != nil {
		return nil, err
	}
	sendDelaySecs, err := envInt("SEND_DELAY_SECONDS", 1)
	if err != nil {
		return nil, err
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	return &Config{
		TelegramBotToken: token,
		EncryptionKey:    key,
		StorageDriver:    driver,
		DataDir:          envOrDefault("DATA_DIR", "./data"),
		DatabasePath:     envOrDefault("DATABASE_PATH", "./data/relay.db"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		AllowedUsers:     allowedUsers,
		PollInterval:     pollInterval,
		Lookback:         lookback,
		FetchCount:       fetchCount,
		SeenCap:          seenCap,
		SendDelay:        time.Duration(sendDelaySecs) * time.Second,
		TwitterBaseURL:   os.Getenv("TWITTER_BASE_URL"),
	}, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return v, nil
}

func envMinutes(key string, def int) (time.Duration, error) {
	v, err := envInt(key, def)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Minute, nil
}
