package webhook

import (
	"fmt"
	"strings"
	"time"

	"tweet_relay/internal/model"
)

const (
	embedColor      = 0x1DA1F2
	quoteMaxRunes   = 200
	tweetURLPattern = "https://twitter.com/%s/status/%s"
)

// NewTweetMessage builds the notification payload for one tweet. Pure
// function, no side effects.
//
// The description is the tweet text, then an optional quoted-tweet excerpt
// with a link, then one line per non-photo media item. The first photo (and
// only the first) becomes the embed image.
func NewTweetMessage(acct *model.Account, t *model.Tweet) *Message {
	tweetURL := fmt.Sprintf(tweetURLPattern, acct.ScreenName, t.ID)

	var desc strings.Builder
	desc.WriteString(t.Text)

	if t.Quote != nil {
		quoteURL := fmt.Sprintf(tweetURLPattern, t.Quote.ScreenName, t.Quote.ID)
		fmt.Fprintf(&desc, "\n\n> **Quoting:** [%s](%s)", excerpt(t.Quote.Text), quoteURL)
	}

	if lines := mediaLines(t.Media); len(lines) > 0 {
		desc.WriteString("\n\n")
		desc.WriteString(strings.Join(lines, "\n"))
	}

	embed := Embed{
		Title:       fmt.Sprintf("New tweet from @%s", acct.ScreenName),
		Description: desc.String(),
		URL:         tweetURL,
		Color:       embedColor,
		Timestamp:   t.CreatedAt.UTC().Format(time.RFC3339),
		Author: &EmbedAuthor{
			Name:    acct.Name,
			URL:     fmt.Sprintf("https://twitter.com/%s", acct.ScreenName),
			IconURL: acct.ProfileImageURL,
		},
		Footer: &EmbedFooter{Text: fmt.Sprintf("Twitter @%s", acct.ScreenName)},
		Fields: []EmbedField{
			{Name: "Likes", Value: fmt.Sprintf("%d", t.FavoriteCount), Inline: true},
			{Name: "Retweets", Value: fmt.Sprintf("%d", t.RetweetCount), Inline: true},
		},
	}

	if photo := firstPhoto(t.Media); photo != "" {
		embed.Image = &EmbedImage{URL: photo}
	}

	return &Message{Embeds: []Embed{embed}}
}

// excerpt truncates quoted text to quoteMaxRunes, appending an ellipsis
// marker when cut.
func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= quoteMaxRunes {
		return text
	}
	return string(runes[:quoteMaxRunes]) + "..."
}

// firstPhoto returns the display URL of the first photo attachment, or "".
func firstPhoto(media []model.Media) string {
	for _, m := range media {
		if m.Kind == model.MediaPhoto && m.URL != "" {
			return m.URL
		}
	}
	return ""
}

// mediaLines renders one reference line per non-photo media item: a labeled
// link when a URL is available, a bare placeholder otherwise.
func mediaLines(media []model.Media) []string {
	var lines []string
	for i, m := range media {
		if m.Kind == model.MediaPhoto {
			continue
		}
		label := mediaLabel(m.Kind)
		if m.URL != "" {
			lines = append(lines, fmt.Sprintf("[%s %d](%s)", label, i+1, m.URL))
		} else {
			lines = append(lines, fmt.Sprintf("(%s %d)", label, i+1))
		}
	}
	return lines
}

func mediaLabel(kind model.MediaKind) string {
	switch kind {
	case model.MediaVideo:
		return "Video"
	case model.MediaGIF:
		return "GIF"
	default:
		return "Media"
	}
}
