// Package model defines the domain types used across the application.
package model

import "time"

// SeenCap is the maximum number of tweet IDs retained per tenant.
const SeenCap = 200

// Tenant is one user's tracking configuration.
//
// A tenant is polled only when all four of EncryptedCookies, TargetID,
// TargetScreenName and WebhookURL are set. Enabled doubles as the
// user-requested pause flag and as the fail-safe the poller flips off on
// unrecoverable errors.
type Tenant struct {
	ID               int64     `json:"id"`
	EncryptedCookies string    `json:"encrypted_cookies"`
	TargetID         string    `json:"target_id"`
	TargetScreenName string    `json:"target_screen_name"`
	WebhookURL       string    `json:"webhook_url"`
	Enabled          bool      `json:"enabled"`
	SeenTweetIDs     []string  `json:"seen_tweet_ids"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Configured reports whether the record carries everything a poll run needs.
func (t *Tenant) Configured() bool {
	return t.EncryptedCookies != "" &&
		t.TargetID != "" &&
		t.TargetScreenName != "" &&
		t.WebhookURL != ""
}

// Account is the resolved identity of a watched Twitter account.
type Account struct {
	ID              string
	ScreenName      string
	Name            string
	ProfileImageURL string
}

// MediaKind classifies an attached media item.
type MediaKind string

// Supported media kinds. Anything the API reports outside this set maps to
// MediaUnknown.
const (
	MediaPhoto   MediaKind = "photo"
	MediaVideo   MediaKind = "video"
	MediaGIF     MediaKind = "animated_gif"
	MediaUnknown MediaKind = "unknown"
)

// Media is one attachment on a tweet. URL may be empty when the API did not
// expose a display URL for the item.
type Media struct {
	Kind MediaKind
	URL  string
}

// Quote is a reference to a quoted tweet.
type Quote struct {
	ID         string
	ScreenName string
	Text       string
}

// Tweet is a single fetched post. Tweets are transient: they are never
// persisted, only their IDs enter the tenant's seen-set.
type Tweet struct {
	ID            string
	Text          string
	CreatedAt     time.Time
	FavoriteCount int
	RetweetCount  int
	Media         []Media
	Quote         *Quote
}
