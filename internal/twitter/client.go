// Package twitter implements the cookie-authenticated scraping client used
// to read a tracked account's recent tweets.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tweet_relay/internal/model"
)

const defaultBaseURL = "https://api.twitter.com/1.1"

// Client is the read-only view of a tracked account. Implementations fetch
// through whatever transport the credentials allow; tests substitute fakes.
type Client interface {
	UserByScreenName(ctx context.Context, name string) (*model.Account, error)
	UserByID(ctx context.Context, id string) (*model.Account, error)
	// UserTweets returns up to count recent tweets, newest first.
	UserTweets(ctx context.Context, userID string, count int) ([]model.Tweet, error)
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures the scraping client.
type Option func(*scrapeClient)

// WithBaseURL overrides the API base URL (useful for testing).
func WithBaseURL(base string) Option {
	return func(c *scrapeClient) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h HTTPClient) Option {
	return func(c *scrapeClient) { c.http = h }
}

type scrapeClient struct {
	http    HTTPClient
	baseURL string
	cookies map[string]string
}

// New creates a Client authenticated with a browser cookie export.
// Bad credentials are not detected here; they surface as an auth error on
// the first request.
func New(cookies map[string]string, opts ...Option) Client {
	c := &scrapeClient{
		http:    &http.Client{Timeout: 20 * time.Second},
		baseURL: defaultBaseURL,
		cookies: cookies,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type userDTO struct {
	ID              string `json:"id"`
	ScreenName      string `json:"screen_name"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profile_image_url"`
}

type mediaDTO struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type quoteDTO struct {
	ID         string `json:"id"`
	ScreenName string `json:"screen_name"`
	Text       string `json:"text"`
}

type tweetDTO struct {
	ID            string     `json:"id"`
	Text          string     `json:"text"`
	CreatedAt     time.Time  `json:"created_at"`
	FavoriteCount int        `json:"favorite_count"`
	RetweetCount  int        `json:"retweet_count"`
	Media         []mediaDTO `json:"media"`
	Quoted        *quoteDTO  `json:"quoted"`
}

func (c *scrapeClient) UserByScreenName(ctx context.Context, name string) (*model.Account, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "@")
	if name == "" {
		return nil, fmt.Errorf("screen name is empty")
	}
	var dto userDTO
	if err := c.get(ctx, "/users/by/screen_name/"+url.PathEscape(name), nil, &dto); err != nil {
		return nil, err
	}
	return accountFromDTO(dto), nil
}

func (c *scrapeClient) UserByID(ctx context.Context, id string) (*model.Account, error) {
	var dto userDTO
	if err := c.get(ctx, "/users/"+url.PathEscape(id), nil, &dto); err != nil {
		return nil, err
	}
	return accountFromDTO(dto), nil
}

func (c *scrapeClient) UserTweets(ctx context.Context, userID string, count int) ([]model.Tweet, error) {
	q := url.Values{"count": {strconv.Itoa(count)}}
	var dto struct {
		Tweets []tweetDTO `json:"tweets"`
	}
	if err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/tweets", q, &dto); err != nil {
		return nil, err
	}

	tweets := make([]model.Tweet, 0, len(dto.Tweets))
	for _, td := range dto.Tweets {
		tweets = append(tweets, tweetFromDTO(td))
	}
	return tweets, nil
}

func (c *scrapeClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "TweetRelayBot/1.0")
	req.Header.Set("Cookie", cookieHeader(c.cookies))
	if csrf, ok := c.cookies["ct0"]; ok {
		req.Header.Set("X-Csrf-Token", csrf)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrUserNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func cookieHeader(cookies map[string]string) string {
	pairs := make([]string, 0, len(cookies))
	for name, value := range cookies {
		pairs = append(pairs, name+"="+value)
	}
	return strings.Join(pairs, "; ")
}

func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func accountFromDTO(dto userDTO) *model.Account {
	return &model.Account{
		ID:              dto.ID,
		ScreenName:      dto.ScreenName,
		Name:            dto.Name,
		ProfileImageURL: dto.ProfileImageURL,
	}
}

func tweetFromDTO(dto tweetDTO) model.Tweet {
	t := model.Tweet{
		ID:            dto.ID,
		Text:          dto.Text,
		CreatedAt:     dto.CreatedAt.UTC(),
		FavoriteCount: dto.FavoriteCount,
		RetweetCount:  dto.RetweetCount,
	}
	for _, m := range dto.Media {
		t.Media = append(t.Media, model.Media{Kind: mediaKind(m.Type), URL: m.URL})
	}
	if dto.Quoted != nil {
		t.Quote = &model.Quote{
			ID:         dto.Quoted.ID,
			ScreenName: dto.Quoted.ScreenName,
			Text:       dto.Quoted.Text,
		}
	}
	return t
}

func mediaKind(apiType string) model.MediaKind {
	switch apiType {
	case "photo":
		return model.MediaPhoto
	case "video":
		return model.MediaVideo
	case "animated_gif":
		return model.MediaGIF
	default:
		return model.MediaUnknown
	}
}
