package core

// Media types the archive understands. Anything else renders as text only.
const (
	MediaTypePhoto = "photo"
	MediaTypeVideo = "video"
)

// Author is the resolved author of a bookmarked post. A nil *Author means
// the author expansion was missing; the post still archives.
type Author struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// Engagement holds the public counters at the time of backup.
type Engagement struct {
	LikeCount    int `json:"like_count"`
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
}

// MediaItem is one attachment with its best resolved URL. URL starts as
// the remote URL and is rewritten to a relative local path once the file
// is downloaded.
type MediaItem struct {
	MediaKey string `json:"media_key"`
	Type     string `json:"type"`
	URL      string `json:"url"`
}

// Bookmark is the canonical, render-ready record for one bookmarked post.
// ID is globally unique and doubles as the dedupe and filename key.
type Bookmark struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	CreatedAt  string      `json:"created_at"`
	Author     *Author     `json:"author,omitempty"`
	Engagement Engagement  `json:"public_metrics"`
	Media      []MediaItem `json:"media,omitempty"`
}
