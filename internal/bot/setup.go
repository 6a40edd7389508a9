package bot

import (
	"context"
	"fmt"
	"time"

	"tweet_relay/internal/model"
	"tweet_relay/internal/twitter"
)

// setupTimeout bounds each step of the setup conversation. An expired
// session is dropped on the next input.
const setupTimeout = 5 * time.Minute

type setupState int

const (
	stateCookies setupState = iota
	stateTarget
	stateWebhook
)

// session is one in-progress setup conversation. Collected values live only
// in memory until the final step persists the tenant.
type session struct {
	state    setupState
	cookies  map[string]string
	targetID string
	target   string
	deadline time.Time
}

func (b *Bot) sessionFor(chatID int64) *session {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[chatID]
	if !ok {
		return nil
	}
	if b.now().After(s.deadline) {
		delete(b.sessions, chatID)
		b.log.Debug("setup session expired", "chat_id", chatID)
		return nil
	}
	return s
}

func (b *Bot) putSession(chatID int64, s *session) {
	s.deadline = b.now().Add(setupTimeout)
	b.mu.Lock()
	b.sessions[chatID] = s
	b.mu.Unlock()
}

func (b *Bot) dropSession(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[chatID]; !ok {
		return false
	}
	delete(b.sessions, chatID)
	return true
}

func (b *Bot) handleSetup(chatID int64) {
	b.putSession(chatID, &session{state: stateCookies})
	b.reply(chatID, `Setup step 1 of 3: Twitter cookies.

Export your cookies for twitter.com with the EditThisCookie extension and paste the JSON here. The export must include the auth_token and ct0 cookies.

Cookies are encrypted before they are stored. Send /cancel to abort.`)
}

func (b *Bot) handleCancel(chatID int64) {
	if b.dropSession(chatID) {
		b.reply(chatID, "Setup cancelled.")
	} else {
		b.reply(chatID, "Nothing to cancel.")
	}
}

// advanceSetup feeds one message into the conversation. Invalid input keeps
// the session on the same step so the user can just try again.
func (b *Bot) advanceSetup(ctx context.Context, chatID int64, text string) {
	s := b.sessionFor(chatID)
	if s == nil {
		b.reply(chatID, "Setup timed out. Run /setup to start over.")
		return
	}

	switch s.state {
	case stateCookies:
		b.setupCookies(chatID, s, text)
	case stateTarget:
		b.setupTarget(ctx, chatID, s, text)
	case stateWebhook:
		b.setupWebhook(ctx, chatID, s, text)
	}
}

func (b *Bot) setupCookies(chatID int64, s *session, text string) {
	cookies, err := ParseCookieExport(text)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("That does not look like a cookie export: %v\nPaste the EditThisCookie JSON, or /cancel.", err))
		return
	}

	s.cookies = cookies
	s.state = stateTarget
	b.putSession(chatID, s)
	b.reply(chatID, fmt.Sprintf("Got %d cookies.\n\nSetup step 2 of 3: which account should be tracked? Send the @username.", len(cookies)))
}

func (b *Bot) setupTarget(ctx context.Context, chatID int64, s *session, text string) {
	name, err := ParseScreenName(text)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("%v\nSend the account's @username, or /cancel.", err))
		return
	}

	// Resolving with the submitted cookies doubles as a credential check.
	client := b.clients(s.cookies)
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	acct, err := client.UserByScreenName(ctx, name)
	switch {
	case twitter.IsNotFound(err):
		b.reply(chatID, fmt.Sprintf("Account @%s was not found. Check the spelling and try again.", name))
		return
	case twitter.IsAuthError(err):
		b.reply(chatID, "Twitter rejected the cookies you submitted. Run /setup again with a fresh export.")
		b.dropSession(chatID)
		return
	case err != nil:
		b.reply(chatID, fmt.Sprintf("Could not reach Twitter: %v\nTry again in a moment.", err))
		return
	}

	s.targetID = acct.ID
	s.target = acct.ScreenName
	s.state = stateWebhook
	b.putSession(chatID, s)
	b.reply(chatID, fmt.Sprintf("Tracking @%s (%s).\n\nSetup step 3 of 3: send the Discord webhook URL for delivery.", acct.ScreenName, acct.Name))
}

func (b *Bot) setupWebhook(ctx context.Context, chatID int64, s *session, text string) {
	url, err := ParseWebhookURL(text)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("%v\nSend a Discord webhook URL, or /cancel.", err))
		return
	}

	enc, err := b.codec.EncryptMap(s.cookies)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Could not store your credentials: %v", err))
		b.dropSession(chatID)
		return
	}

	// The record replaces any previous configuration wholesale, seen
	// history included.
	t := &model.Tenant{
		ID:               chatID,
		EncryptedCookies: enc,
		TargetID:         s.targetID,
		TargetScreenName: s.target,
		WebhookURL:       url,
		Enabled:          true,
	}
	if err := b.store.SaveTenant(ctx, t); err != nil {
		b.reply(chatID, fmt.Sprintf("Could not save configuration: %v", err))
		return
	}

	b.dropSession(chatID)
	b.reply(chatID, fmt.Sprintf(
		"Setup complete. New tweets from @%s will be relayed to your webhook, checked every %d minutes.\nUse /checknow to test it.",
		s.target, int(b.cfg.PollInterval.Minutes())))
}
