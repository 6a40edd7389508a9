package twitter

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tweet_relay/internal/model"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error
	lastReq    *http.Request
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func newTestClient(tr *mockTransport) Client {
	return New(
		map[string]string{"auth_token": "tok", "ct0": "csrf-val"},
		WithHTTPClient(tr),
		WithBaseURL("https://api.example.com"),
	)
}

func TestUserByScreenName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		transport *mockTransport
		want      *model.Account
		wantErr   error
	}{
		{
			name:  "resolves and strips at-sign",
			input: "@somebody",
			transport: &mockTransport{
				statusCode: 200,
				body:       `{"id":"44196397","screen_name":"somebody","name":"Some Body","profile_image_url":"https://img.example.com/a.jpg"}`,
			},
			want: &model.Account{
				ID:              "44196397",
				ScreenName:      "somebody",
				Name:            "Some Body",
				ProfileImageURL: "https://img.example.com/a.jpg",
			},
		},
		{
			name:      "not found",
			input:     "ghost",
			transport: &mockTransport{statusCode: 404, body: `{"error":"no such user"}`},
			wantErr:   ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(tt.transport)
			got, err := c.UserByScreenName(context.Background(), tt.input)

			if tt.wantErr != nil {
				if !IsNotFound(err) {
					t.Fatalf("expected not-found error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("account mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRequestCarriesCredentials(t *testing.T) {
	tr := &mockTransport{statusCode: 200, body: `{"id":"1","screen_name":"x","name":"X"}`}
	c := newTestClient(tr)

	if _, err := c.UserByID(context.Background(), "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cookie := tr.lastReq.Header.Get("Cookie")
	for _, part := range []string{"auth_token=tok", "ct0=csrf-val"} {
		if !contains(cookie, part) {
			t.Errorf("cookie header %q missing %q", cookie, part)
		}
	}
	if got := tr.lastReq.Header.Get("X-Csrf-Token"); got != "csrf-val" {
		t.Errorf("csrf header = %q, want csrf-val", got)
	}
}

func TestUserTweets(t *testing.T) {
	body := `{"tweets":[
		{"id":"102","text":"newest","created_at":"2026-08-30T12:10:00Z","favorite_count":4,"retweet_count":1,
		 "media":[{"type":"photo","url":"https://img.example.com/p.jpg"},{"type":"dance","url":"https://img.example.com/d"}],
		 "quoted":{"id":"50","screen_name":"other","text":"quoted text"}},
		{"id":"101","text":"older","created_at":"2026-08-30T12:00:00Z","favorite_count":0,"retweet_count":0}
	]}`
	tr := &mockTransport{statusCode: 200, body: body}
	c := newTestClient(tr)

	got, err := c.UserTweets(context.Background(), "44196397", 150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []model.Tweet{
		{
			ID:            "102",
			Text:          "newest",
			CreatedAt:     time.Date(2026, 8, 30, 12, 10, 0, 0, time.UTC),
			FavoriteCount: 4,
			RetweetCount:  1,
			Media: []model.Media{
				{Kind: model.MediaPhoto, URL: "https://img.example.com/p.jpg"},
				{Kind: model.MediaUnknown, URL: "https://img.example.com/d"},
			},
			Quote: &model.Quote{ID: "50", ScreenName: "other", Text: "quoted text"},
		},
		{
			ID:        "101",
			Text:      "older",
			CreatedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tweets mismatch (-want +got):\n%s", diff)
	}

	if q := tr.lastReq.URL.Query().Get("count"); q != "150" {
		t.Errorf("count query = %q, want 150", q)
	}
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"401 status", &HTTPError{StatusCode: 401}, true},
		{"403 status", &HTTPError{StatusCode: 403}, true},
		{"authenticate marker", &HTTPError{StatusCode: 400, Message: "Could not Authenticate you"}, true},
		{"rate limited", &HTTPError{StatusCode: 429}, false},
		{"server error", &HTTPError{StatusCode: 500}, false},
		{"nil", nil, false},
		{"plain network error", io.ErrUnexpectedEOF, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthError(tt.err); got != tt.want {
				t.Errorf("IsAuthError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTransportErrorWrapped(t *testing.T) {
	tr := &mockTransport{err: io.ErrUnexpectedEOF}
	c := newTestClient(tr)

	_, err := c.UserTweets(context.Background(), "1", 10)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if IsAuthError(err) || IsNotFound(err) {
		t.Fatalf("transport error misclassified: %v", err)
	}
}

func contains(s, sub string) bool {
	return bytes.Contains([]byte(s), []byte(sub))
}
