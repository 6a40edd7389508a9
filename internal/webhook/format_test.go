package webhook

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tweet_relay/internal/model"
)

var testAccount = &model.Account{
	ID:              "44196397",
	ScreenName:      "somebody",
	Name:            "Some Body",
	ProfileImageURL: "https://img.example.com/avatar.jpg",
}

func TestNewTweetMessageBasics(t *testing.T) {
	tweet := &model.Tweet{
		ID:            "1234567890",
		Text:          "just setting up my relay",
		CreatedAt:     time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		FavoriteCount: 42,
		RetweetCount:  7,
	}

	msg := NewTweetMessage(testAccount, tweet)
	if len(msg.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(msg.Embeds))
	}
	e := msg.Embeds[0]

	if diff := cmp.Diff("New tweet from @somebody", e.Title); diff != "" {
		t.Errorf("title mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("https://twitter.com/somebody/status/1234567890", e.URL); diff != "" {
		t.Errorf("url mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("just setting up my relay", e.Description); diff != "" {
		t.Errorf("description mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("2026-08-30T12:00:00Z", e.Timestamp); diff != "" {
		t.Errorf("timestamp mismatch (-want +got):\n%s", diff)
	}

	wantFields := []EmbedField{
		{Name: "Likes", Value: "42", Inline: true},
		{Name: "Retweets", Value: "7", Inline: true},
	}
	if diff := cmp.Diff(wantFields, e.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if e.Image != nil {
		t.Errorf("expected no image, got %+v", e.Image)
	}
	if e.Author == nil || e.Author.Name != "Some Body" {
		t.Errorf("author mismatch: %+v", e.Author)
	}
}

func TestNewTweetMessageQuoteTruncation(t *testing.T) {
	long := strings.Repeat("я", 250) // multibyte: truncation must count runes

	tweet := &model.Tweet{
		ID:        "1",
		Text:      "check this out",
		CreatedAt: time.Now().UTC(),
		Quote:     &model.Quote{ID: "99", ScreenName: "other", Text: long},
	}

	desc := NewTweetMessage(testAccount, tweet).Embeds[0].Description

	if !strings.Contains(desc, strings.Repeat("я", 200)+"...") {
		t.Error("expected quoted text truncated at 200 runes with ellipsis")
	}
	if strings.Contains(desc, strings.Repeat("я", 201)) {
		t.Error("quoted text not truncated")
	}
	if !strings.Contains(desc, "https://twitter.com/other/status/99") {
		t.Error("expected quote link in description")
	}
}

func TestNewTweetMessageShortQuoteKeptWhole(t *testing.T) {
	tweet := &model.Tweet{
		ID:        "1",
		Text:      "look",
		CreatedAt: time.Now().UTC(),
		Quote:     &model.Quote{ID: "2", ScreenName: "other", Text: "short quote"},
	}

	desc := NewTweetMessage(testAccount, tweet).Embeds[0].Description
	if !strings.Contains(desc, "short quote") || strings.Contains(desc, "short quote...") {
		t.Errorf("short quote should pass through untruncated, got %q", desc)
	}
}

func TestNewTweetMessageMedia(t *testing.T) {
	tests := []struct {
		name         string
		media        []model.Media
		wantImage    string
		wantInDesc   []string
		wantNotInDesc []string
	}{
		{
			name: "first photo promoted, second ignored",
			media: []model.Media{
				{Kind: model.MediaPhoto, URL: "https://img.example.com/1.jpg"},
				{Kind: model.MediaPhoto, URL: "https://img.example.com/2.jpg"},
			},
			wantImage:     "https://img.example.com/1.jpg",
			wantNotInDesc: []string{"2.jpg"},
		},
		{
			name: "video and gif get link lines",
			media: []model.Media{
				{Kind: model.MediaVideo, URL: "https://vid.example.com/v.mp4"},
				{Kind: model.MediaGIF, URL: "https://img.example.com/g.gif"},
			},
			wantInDesc: []string{
				"[Video 1](https://vid.example.com/v.mp4)",
				"[GIF 2](https://img.example.com/g.gif)",
			},
		},
		{
			name:       "missing url becomes placeholder",
			media:      []model.Media{{Kind: model.MediaVideo}},
			wantInDesc: []string{"(Video 1)"},
		},
		{
			name:       "unknown kind with url",
			media:      []model.Media{{Kind: model.MediaUnknown, URL: "https://x.example.com/m"}},
			wantInDesc: []string{"[Media 1](https://x.example.com/m)"},
		},
		{
			name: "photo mixed with video",
			media: []model.Media{
				{Kind: model.MediaVideo, URL: "https://vid.example.com/v.mp4"},
				{Kind: model.MediaPhoto, URL: "https://img.example.com/p.jpg"},
			},
			wantImage:  "https://img.example.com/p.jpg",
			wantInDesc: []string{"[Video 1](https://vid.example.com/v.mp4)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tweet := &model.Tweet{
				ID:        "5",
				Text:      "media tweet",
				CreatedAt: time.Now().UTC(),
				Media:     tt.media,
			}
			e := NewTweetMessage(testAccount, tweet).Embeds[0]

			if tt.wantImage == "" {
				if e.Image != nil {
					t.Errorf("expected no image, got %+v", e.Image)
				}
			} else if e.Image == nil || e.Image.URL != tt.wantImage {
				t.Errorf("image = %+v, want %q", e.Image, tt.wantImage)
			}

			for _, want := range tt.wantInDesc {
				if !strings.Contains(e.Description, want) {
					t.Errorf("description missing %q:\n%s", want, e.Description)
				}
			}
			for _, not := range tt.wantNotInDesc {
				if strings.Contains(e.Description, not) {
					t.Errorf("description should not contain %q:\n%s", not, e.Description)
				}
			}
		})
	}
}
