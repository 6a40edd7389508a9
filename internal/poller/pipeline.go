package poller

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strconv"

	"golang.org/x/time/rate"

	"tweet_relay/internal/model"
	"tweet_relay/internal/twitter"
	"tweet_relay/internal/webhook"
)

// reshareRe matches reposted tweets, which are excluded from notification.
var reshareRe = regexp.MustCompile(`(?i)^RT @`)

// processTenant runs one tenant's check: decrypt credentials, fetch recent
// tweets, filter against the recency window and the seen-set, deliver new
// tweets oldest-first, and persist the updated seen-set.
//
// Unrecoverable tenant states (bad credentials, vanished target, dead
// webhook) notify the tenant and flip Enabled off. Transient transport
// problems leave the record untouched for the next tick. The returned error
// is for the engine's accounting only; it is never re-raised.
func (e *Engine) processTenant(ctx context.Context, t *model.Tenant) error {
	log := e.log.With("tenant_id", t.ID, "target", t.TargetScreenName)

	// Partially-written records are silently healed by disabling them;
	// notifying would loop the user on a record they never finished.
	if !t.Configured() {
		log.Warn("tenant record incomplete, disabling")
		t.Enabled = false
		if err := e.store.SaveTenant(ctx, t); err != nil {
			return fmt.Errorf("disable incomplete tenant: %w", err)
		}
		return nil
	}

	val, err := e.codec.Decrypt(t.EncryptedCookies)
	if err != nil || val.Values == nil {
		log.Error("cookie decryption failed", "error", err)
		e.notifyAndDisable(ctx, t,
			"Your stored Twitter credentials could not be read. Run /setup again to re-enter them.")
		return fmt.Errorf("decrypt cookies: %w", errCredential(err))
	}

	client := e.clients(val.Values)

	acct, err := e.resolveTarget(ctx, client, t.TargetID)
	if err != nil {
		return e.classifyFetchError(ctx, t, log, err, "resolve target account")
	}

	tweets, err := e.fetchTweets(ctx, client, t.TargetID)
	if err != nil {
		return e.classifyFetchError(ctx, t, log, err, "fetch tweets")
	}
	if len(tweets) == 0 {
		// An empty batch is not evidence the account posted nothing;
		// leave the seen-set alone.
		log.Debug("no tweets returned")
		return nil
	}

	windowStart := e.now().UTC().Add(-e.opts.Lookback)

	// Tweets arrive newest-first, so the first one older than the window
	// ends the scan.
	seen := make(map[string]struct{}, len(t.SeenTweetIDs))
	for _, id := range t.SeenTweetIDs {
		seen[id] = struct{}{}
	}
	windowIDs := make(map[string]struct{})
	var candidates []model.Tweet
	for _, tw := range tweets {
		if tw.CreatedAt.Before(windowStart) {
			break
		}
		windowIDs[tw.ID] = struct{}{}
		if reshareRe.MatchString(tw.Text) {
			// Reshares are never delivered but still count as seen.
			continue
		}
		if _, ok := seen[tw.ID]; !ok {
			candidates = append(candidates, tw)
		}
	}

	// Deliver in real posting order.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	limiter := rate.NewLimiter(rate.Every(e.opts.SendDelay), 1)
	delivered := 0
	for _, tw := range candidates {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		res, err := e.postWithRetry(ctx, t.WebhookURL, webhook.NewTweetMessage(acct, &tw))
		if err != nil {
			// One bad tweet must not sink its siblings.
			log.Error("deliver tweet", "tweet_id", tw.ID, "error", err)
			continue
		}

		switch {
		case res.StatusCode >= 200 && res.StatusCode < 300:
			delivered++
			log.Info("tweet delivered", "tweet_id", tw.ID, "status", res.StatusCode)
		case res.StatusCode == http.StatusBadRequest ||
			res.StatusCode == http.StatusUnauthorized ||
			res.StatusCode == http.StatusNotFound:
			log.Error("webhook rejected delivery", "tweet_id", tw.ID, "status", res.StatusCode)
			e.notifyAndDisable(ctx, t, fmt.Sprintf(
				"Delivery to your webhook failed with status %d. Check the URL and run /setup again.", res.StatusCode))
			return fmt.Errorf("webhook endpoint failure: status %d", res.StatusCode)
		default:
			log.Error("webhook delivery failed", "tweet_id", tw.ID, "status", res.StatusCode)
		}
	}

	updated := mergeSeen(t.SeenTweetIDs, windowIDs, e.opts.SeenCap)
	if !sameIDSet(t.SeenTweetIDs, updated) {
		t.SeenTweetIDs = updated
		if err := e.store.SaveTenant(ctx, t); err != nil {
			return fmt.Errorf("persist seen ids: %w", err)
		}
		log.Info("seen set updated", "delivered", delivered, "seen", len(updated))
	} else {
		log.Debug("seen set unchanged", "delivered", delivered)
	}
	return nil
}

// classifyFetchError sorts a resolve/fetch failure into the taxonomy:
// vanished target and credential rejection are terminal for the tenant,
// everything else is left for the next tick.
func (e *Engine) classifyFetchError(ctx context.Context, t *model.Tenant, log *slog.Logger, err error, op string) error {
	switch {
	case twitter.IsNotFound(err):
		log.Error("target account not found", "error", err)
		e.notifyAndDisable(ctx, t, fmt.Sprintf(
			"The tracked account @%s could not be found. It may have been deleted or restricted.", t.TargetScreenName))
		return fmt.Errorf("%s: %w", op, err)
	case twitter.IsAuthError(err):
		log.Error("authentication rejected", "error", err)
		e.notifyAndDisable(ctx, t,
			"Twitter rejected your credentials. They may have expired; run /setup again with fresh cookies.")
		return fmt.Errorf("%s: %w", op, err)
	default:
		// Transient: no state change, the next tick retries.
		log.Warn("transient fetch failure", "op", op, "error", err)
		return nil
	}
}

func (e *Engine) resolveTarget(ctx context.Context, client twitter.Client, targetID string) (*model.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()
	return client.UserByID(ctx, targetID)
}

func (e *Engine) fetchTweets(ctx context.Context, client twitter.Client, targetID string) ([]model.Tweet, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()
	return client.UserTweets(ctx, targetID, e.opts.FetchCount)
}

// postWithRetry posts one payload, retrying exactly once after a rate-limit
// response, padded past the server's hint.
func (e *Engine) postWithRetry(ctx context.Context, endpoint string, msg *webhook.Message) (*webhook.Result, error) {
	res, err := e.postOnce(ctx, endpoint, msg)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusTooManyRequests {
		e.log.Warn("webhook rate limited", "retry_after", res.RetryAfter)
		e.sleep(ctx, res.RetryAfter+e.opts.RetryPad)
		return e.postOnce(ctx, endpoint, msg)
	}
	return res, nil
}

func (e *Engine) postOnce(ctx context.Context, endpoint string, msg *webhook.Message) (*webhook.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()
	return e.channel.Post(ctx, endpoint, msg)
}

// notifyAndDisable sends a best-effort direct message and then disables the
// tenant. The disable+persist step always runs, even when the message
// cannot be delivered.
func (e *Engine) notifyAndDisable(ctx context.Context, t *model.Tenant, message string) {
	e.log.Warn("disabling tenant", "tenant_id", t.ID, "reason", message)
	if e.notifier != nil {
		e.notifier.SendMessage(t.ID, fmt.Sprintf(
			"Tweet tracking error (@%s):\n%s\nTracking has been disabled; use /toggle to re-enable once fixed.",
			t.TargetScreenName, message))
	}
	t.Enabled = false
	if err := e.store.SaveTenant(ctx, t); err != nil {
		e.log.Error("persist disabled tenant", "tenant_id", t.ID, "error", err)
	}
}

// mergeSeen unions the prior seen-set with this run's in-window IDs, keeps
// the numerically largest cap entries, and orders them most-recent-first.
// Non-numeric IDs sort below all numeric ones.
func mergeSeen(prior []string, window map[string]struct{}, limit int) []string {
	union := make(map[string]struct{}, len(prior)+len(window))
	for _, id := range prior {
		union[id] = struct{}{}
	}
	for id := range window {
		union[id] = struct{}{}
	}

	merged := make([]string, 0, len(union))
	for id := range union {
		merged = append(merged, id)
	}
	sort.Slice(merged, func(i, j int) bool {
		return idLess(merged[j], merged[i]) // descending
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// idLess orders tweet IDs numerically; a non-numeric ID compares below any
// numeric one, and ties fall back to the string ordering so the result is
// deterministic.
func idLess(a, b string) bool {
	av, aok := parseID(a)
	bv, bok := parseID(b)
	switch {
	case aok && bok:
		if av != bv {
			return av < bv
		}
		return a < b
	case aok:
		return false
	case bok:
		return true
	default:
		return a < b
	}
}

func parseID(s string) (uint64, bool) {
	v, err := strconv.ParseUint(s, 10, 64)
	return v, err == nil
}

// sameIDSet compares two ID slices as sets.
func sameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

func errCredential(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("decrypted payload is not a credential mapping")
}
