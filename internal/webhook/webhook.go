// Package webhook delivers formatted notifications to a tenant-configured
// Discord-compatible webhook endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Message is the JSON payload posted to the webhook endpoint.
type Message struct {
	Embeds []Embed `json:"embeds"`
}

// Embed is one rich block inside a Message, shaped after the Discord embed
// object.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Image       *EmbedImage  `json:"image,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

// EmbedImage references the primary image of an embed.
type EmbedImage struct {
	URL string `json:"url"`
}

// EmbedAuthor identifies the tracked account in the embed header.
type EmbedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

// EmbedFooter is the footer line of an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

// EmbedField is a labeled counter rendered inside the embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Result is the delivery outcome the caller interprets: 2xx success, 429
// rate-limited (RetryAfter carries the server hint), 400/401/404 permanent
// endpoint failure, anything else transient.
type Result struct {
	StatusCode int
	RetryAfter time.Duration
}

// Channel posts messages to webhook endpoints.
type Channel struct {
	client HTTPClient
}

// New creates a Channel with the given HTTP client.
func New(client HTTPClient) *Channel {
	return &Channel{client: client}
}

// Post sends one message to the endpoint. A non-2xx status is not an error
// here; transport failures are.
func (c *Channel) Post(ctx context.Context, endpoint string, msg *Message) (*Result, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	res := &Result{StatusCode: resp.StatusCode}
	if resp.StatusCode == http.StatusTooManyRequests {
		res.RetryAfter = retryAfter(resp, body)
	}
	return res, nil
}

// retryAfter extracts the server's retry hint from a 429 response: the JSON
// body's retry_after (seconds, possibly fractional) first, then the
// Retry-After header, then a 5s fallback.
func retryAfter(resp *http.Response, body []byte) time.Duration {
	var e struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if json.Unmarshal(body, &e) == nil && e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter * float64(time.Second))
	}
	if h := resp.Header.Get("Retry-After"); h != "" {
		if secs, err := strconv.ParseFloat(h, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return 5 * time.Second
}
