package config

import (
	"bytes"
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tweet_relay/internal/secret"
)

var testKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x11}, secret.KeySize))

var configVars = []string{
	"TELEGRAM_BOT_TOKEN", "ENCRYPTION_KEY", "STORAGE_DRIVER", "DATA_DIR",
	"DATABASE_PATH", "LOG_LEVEL", "ALLOWED_USERS", "POLL_INTERVAL_MINUTES",
	"LOOKBACK_MINUTES", "FETCH_COUNT", "SEEN_CAP", "SEND_DELAY_SECONDS",
	"TWITTER_BASE_URL",
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "missing token",
			env:     map[string]string{"ENCRYPTION_KEY": testKey},
			wantErr: true,
		},
		{
			name:    "missing encryption key",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok"},
			wantErr: true,
		},
		{
			name: "key not base64",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"ENCRYPTION_KEY":     "%%%not-base64%%%",
			},
			wantErr: true,
		},
		{
			name: "key wrong length",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"ENCRYPTION_KEY":     base64.StdEncoding.EncodeToString([]byte("short")),
			},
			wantErr: true,
		},
		{
			name: "required only, defaults applied",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "test-token",
				"ENCRYPTION_KEY":     testKey,
			},
			want: &Config{
				TelegramBotToken: "test-token",
				EncryptionKey:    bytes.Repeat([]byte{0x11}, secret.KeySize),
				StorageDriver:    DriverFile,
				DataDir:          "./data",
				DatabasePath:     "./data/relay.db",
				LogLevel:         "info",
				PollInterval:     15 * time.Minute,
				Lookback:         30 * time.Minute,
				FetchCount:       150,
				SeenCap:          200,
				SendDelay:        time.Second,
			},
		},
		{
			name: "all values set",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN":    "tok",
				"ENCRYPTION_KEY":        testKey,
				"STORAGE_DRIVER":        "sqlite",
				"DATA_DIR":              "/var/lib/relay",
				"DATABASE_PATH":         "/var/lib/relay/relay.db",
				"LOG_LEVEL":             "debug",
				"ALLOWED_USERS":         "111,222,333",
				"POLL_INTERVAL_MINUTES": "5",
				"LOOKBACK_MINUTES":      "60",
				"FETCH_COUNT":           "50",
				"SEEN_CAP":              "500",
				"SEND_DELAY_SECONDS":    "2",
				"TWITTER_BASE_URL":      "http://localhost:8080/1.1",
			},
			want: &Config{
				TelegramBotToken: "tok",
				EncryptionKey:    bytes.Repeat([]byte{0x11}, secret.KeySize),
				StorageDriver:    DriverSQLite,
				DataDir:          "/var/lib/relay",
				DatabasePath:     "/var/lib/relay/relay.db",
				LogLevel:         "debug",
				AllowedUsers:     []int64{111, 222, 333},
				PollInterval:     5 * time.Minute,
				Lookback:         time.Hour,
				FetchCount:       50,
				SeenCap:          500,
				SendDelay:        2 * time.Second,
				TwitterBaseURL:   "http://localhost:8080/1.1",
			},
		},
		{
			name: "unknown storage driver",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"ENCRYPTION_KEY":     testKey,
				"STORAGE_DRIVER":     "postgres",
			},
			wantErr: true,
		},
		{
			name: "non numeric interval",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN":    "tok",
				"ENCRYPTION_KEY":        testKey,
				"POLL_INTERVAL_MINUTES": "soon",
			},
			wantErr: true,
		},
		{
			name: "invalid user id",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"ENCRYPTION_KEY":     testKey,
				"ALLOWED_USERS":      "123,abc",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range configVars {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name         string
		allowedUsers []int64
		userID       int64
		want         bool
	}{
		{name: "empty list allows everyone", userID: 42, want: true},
		{name: "user in list", allowedUsers: []int64{10, 20, 30}, userID: 20, want: true},
		{name: "user not in list", allowedUsers: []int64{10, 20, 30}, userID: 99, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{AllowedUsers: tt.allowedUsers}
			if got := c.IsUserAllowed(tt.userID); got != tt.want {
				t.Errorf("IsUserAllowed(%d) = %v, want %v", tt.userID, got, tt.want)
			}
		})
	}
}
