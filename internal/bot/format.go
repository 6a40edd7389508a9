package bot

import (
	"fmt"
	"strings"
	"time"

	"tweet_relay/internal/model"
)

// FormatStatus renders the /status reply for a tenant record, which may be
// nil when nothing was ever configured.
func FormatStatus(t *model.Tenant, interval time.Duration) string {
	if t == nil || !t.Configured() {
		return "Nothing is configured yet. Run /setup to start tracking an account."
	}

	state := "paused"
	if t.Enabled {
		state = "active"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Tracking: @%s\n", t.TargetScreenName)
	fmt.Fprintf(&sb, "State: %s\n", state)
	fmt.Fprintf(&sb, "Webhook: %s\n", maskWebhook(t.WebhookURL))
	fmt.Fprintf(&sb, "Check interval: every %d minutes\n", int(interval.Minutes()))
	fmt.Fprintf(&sb, "Remembered tweets: %d", len(t.SeenTweetIDs))
	return sb.String()
}

// maskWebhook hides the webhook token so /status output is safe to screen
// share. Only the channel ID part stays visible.
func maskWebhook(url string) string {
	i := strings.LastIndex(url, "/")
	if i < 0 || i == len(url)-1 {
		return url
	}
	return url[:i+1] + "..."
}
