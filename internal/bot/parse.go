package bot

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Cookies the scraping client cannot work without.
var requiredCookies = []string{"auth_token", "ct0"}

// ParseCookieExport parses a pasted cookie export into a name to value map.
// Both the EditThisCookie array format and a plain JSON object are accepted.
func ParseCookieExport(text string) (map[string]string, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil, fmt.Errorf("empty input")
	}

	cookies, err := decodeCookies(raw)
	if err != nil {
		return nil, err
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("no cookies in export")
	}

	for _, name := range requiredCookies {
		if cookies[name] == "" {
			return nil, fmt.Errorf("missing required cookie %q", name)
		}
	}
	return cookies, nil
}

func decodeCookies(raw string) (map[string]string, error) {
	// EditThisCookie exports an array of cookie objects.
	var entries []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(raw), &entries); err == nil {
		cookies := make(map[string]string, len(entries))
		for _, e := range entries {
			if e.Name != "" {
				cookies[e.Name] = e.Value
			}
		}
		return cookies, nil
	}

	var obj map[string]string
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		return obj, nil
	}

	return nil, fmt.Errorf("not a JSON cookie export")
}

// ParseScreenName validates and normalizes a Twitter handle argument,
// stripping a leading @ and any profile URL prefix.
func ParseScreenName(text string) (string, error) {
	name := strings.TrimSpace(text)
	for _, prefix := range []string{"https://twitter.com/", "https://x.com/", "twitter.com/", "x.com/"} {
		if strings.HasPrefix(name, prefix) {
			name = strings.TrimPrefix(name, prefix)
			break
		}
	}
	name = strings.TrimPrefix(name, "@")
	name = strings.TrimSuffix(name, "/")

	if name == "" {
		return "", fmt.Errorf("username is required")
	}
	if strings.ContainsAny(name, " /?#") {
		return "", fmt.Errorf("invalid username %q", name)
	}
	return name, nil
}

// Webhook URL prefixes Discord hands out.
var webhookPrefixes = []string{
	"https://discord.com/api/webhooks/",
	"https://discordapp.com/api/webhooks/",
	"https://canary.discord.com/api/webhooks/",
	"https://ptb.discord.com/api/webhooks/",
}

// ParseWebhookURL validates a Discord webhook URL.
func ParseWebhookURL(text string) (string, error) {
	url := strings.TrimSpace(text)
	if url == "" {
		return "", fmt.Errorf("webhook URL is required")
	}
	for _, prefix := range webhookPrefixes {
		if strings.HasPrefix(url, prefix) && len(url) > len(prefix) {
			return url, nil
		}
	}
	return "", fmt.Errorf("that is not a Discord webhook URL (expected https://discord.com/api/webhooks/...)")
}
