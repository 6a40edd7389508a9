// Package bot implements the Telegram control surface: tenant setup,
// pause/resume, status and manual checks.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tweet_relay/internal/config"
	"tweet_relay/internal/poller"
	"tweet_relay/internal/secret"
	"tweet_relay/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// checker runs an on-demand poll for one tenant.
type checker interface {
	CheckNow(ctx context.Context, tenantID int64) error
}

// Bot handles user commands and delivers tenant notifications. It satisfies
// the poller's Notifier so deactivation messages arrive over the same chat.
type Bot struct {
	api     telegramAPI
	store   storage.Storage
	codec   *secret.Codec
	clients poller.ClientFactory
	checker checker
	cfg     *config.Config
	log     *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*session

	readyOnce sync.Once
	ready     chan struct{}

	now func() time.Time
}

// New creates a Bot with the given Telegram token and collaborators. The
// checker is attached later with SetChecker because the poller is built
// around the bot's notifier.
func New(token string, store storage.Storage, codec *secret.Codec, clients poller.ClientFactory, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:      api,
		store:    store,
		codec:    codec,
		clients:  clients,
		cfg:      cfg,
		log:      log,
		sessions: make(map[int64]*session),
		ready:    make(chan struct{}),
		now:      time.Now,
	}, nil
}

// SetChecker wires the manual-check backend. Must be called before Run.
func (b *Bot) SetChecker(c checker) {
	b.checker = c
}

// Ready is closed once the bot's update loop is receiving. The poller waits
// on it so deactivation messages are never dropped on startup.
func (b *Bot) Ready() <-chan struct{} {
	return b.ready
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.readyOnce.Do(func() { close(b.ready) })

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat. Failures are logged,
// never propagated; callers treat delivery as best effort.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	// Setup collects credentials; group chats never see it.
	if !msg.Chat.IsPrivate() {
		return
	}
	if !b.cfg.IsUserAllowed(msg.From.ID) {
		b.reply(chatID, "Access denied.")
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Non-command text only matters inside a setup conversation.
	if b.sessionFor(chatID) != nil {
		b.advanceSetup(ctx, chatID, msg.Text)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	// Any command interrupts a setup in progress, except /cancel which
	// reports it.
	if cmd != "cancel" {
		b.dropSession(chatID)
	}

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "setup":
		b.handleSetup(chatID)
	case "cancel":
		b.handleCancel(chatID)
	case "toggle":
		b.handleToggle(ctx, chatID)
	case "status":
		b.handleStatus(ctx, chatID)
	case "checknow":
		b.handleCheckNow(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Tweet Relay!

Track one Twitter account and get its new tweets relayed to a Discord webhook.

Quick start:
1. /setup — connect your Twitter cookies, pick an account, set a webhook
2. /status — see what is being tracked
3. /toggle — pause or resume tracking

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Commands:
/setup — configure tracking (cookies, target account, webhook URL)
/cancel — abort a setup in progress
/toggle — pause or resume tracking
/status — show current configuration
/checknow — run a check immediately
/help — this message

Tweets are checked every `+fmt.Sprintf("%d", int(b.cfg.PollInterval.Minutes()))+` minutes. Retweets are not relayed.`)
}

func (b *Bot) handleToggle(ctx context.Context, chatID int64) {
	t, err := b.store.GetTenant(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if t == nil || !t.Configured() {
		b.reply(chatID, "Nothing is configured yet. Run /setup first.")
		return
	}

	t.Enabled = !t.Enabled
	if err := b.store.SaveTenant(ctx, t); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if t.Enabled {
		b.reply(chatID, fmt.Sprintf("Tracking @%s resumed.", t.TargetScreenName))
	} else {
		b.reply(chatID, fmt.Sprintf("Tracking @%s paused.", t.TargetScreenName))
	}
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	t, err := b.store.GetTenant(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatStatus(t, b.cfg.PollInterval))
}

func (b *Bot) handleCheckNow(ctx context.Context, chatID int64) {
	if b.checker == nil {
		b.reply(chatID, "Manual checks are not available right now.")
		return
	}

	b.reply(chatID, "Checking now...")
	err := b.checker.CheckNow(ctx, chatID)
	switch {
	case err == nil:
		b.reply(chatID, "Check finished.")
	case errors.Is(err, poller.ErrNotConfigured):
		b.reply(chatID, "Nothing is configured yet. Run /setup first.")
	case errors.Is(err, poller.ErrTrackingDisabled):
		b.reply(chatID, "Tracking is paused. Use /toggle to resume it first.")
	case errors.Is(err, poller.ErrCheckInFlight):
		b.reply(chatID, "A check is already running, hold on.")
	default:
		b.reply(chatID, fmt.Sprintf("Check failed: %v", err))
	}
}
