package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"tweet_relay/internal/bot"
	"tweet_relay/internal/config"
	"tweet_relay/internal/poller"
	"tweet_relay/internal/secret"
	"tweet_relay/internal/storage"
	"tweet_relay/internal/twitter"
	"tweet_relay/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	codec, err := secret.New(cfg.EncryptionKey)
	if err != nil {
		log.Error("init encryption", "error", err)
		os.Exit(1)
	}

	store, err := openStorage(cfg)
	if err != nil {
		log.Error("open storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	clients := func(cookies map[string]string) twitter.Client {
		var opts []twitter.Option
		if cfg.TwitterBaseURL != "" {
			opts = append(opts, twitter.WithBaseURL(cfg.TwitterBaseURL))
		}
		return twitter.New(cookies, opts...)
	}

	b, err := bot.New(cfg.TelegramBotToken, store, codec, clients, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	engine := poller.New(store, codec, clients, webhook.New(http.DefaultClient), b, log, poller.Options{
		Interval:   cfg.PollInterval,
		Lookback:   cfg.Lookback,
		FetchCount: cfg.FetchCount,
		SeenCap:    cfg.SeenCap,
		SendDelay:  cfg.SendDelay,
	})
	b.SetChecker(engine)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting relay")

	go engine.Run(ctx, b.Ready())

	b.Run(ctx)

	log.Info("relay stopped")
}

func openStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, err
			}
		}
		return storage.NewSQLite(cfg.DatabasePath)
	default:
		return storage.NewFile(cfg.DataDir)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
