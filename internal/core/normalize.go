package core

import (
	"sort"
	"strings"

	"github.com/seckatie/birdmark/internal/core/twitter"
)

// Normalize turns one raw tweet plus the response's side tables into a
// canonical Bookmark. It is pure: no I/O, deterministic for identical
// inputs, so captured responses can be replayed through it in tests.
func Normalize(tweet twitter.Tweet, usersByID map[string]twitter.User, mediaByKey map[string]twitter.Media) Bookmark {
	b := Bookmark{
		ID:        tweet.ID,
		Text:      tweet.Text,
		CreatedAt: tweet.CreatedAt.UTC().Format(CreatedAtFormat),
		Engagement: Engagement{
			LikeCount:    tweet.PublicMetrics.LikeCount,
			RetweetCount: tweet.PublicMetrics.RetweetCount,
			ReplyCount:   tweet.PublicMetrics.ReplyCount,
		},
	}

	if u, ok := usersByID[tweet.AuthorID]; ok {
		b.Author = &Author{
			ID:              u.ID,
			Name:            u.Name,
			Username:        u.Username,
			ProfileImageURL: u.ProfileImageURL,
		}
	}

	for _, key := range tweet.Attachments.MediaKeys {
		m, ok := mediaByKey[key]
		if !ok {
			continue
		}
		b.Media = append(b.Media, MediaItem{
			MediaKey: m.MediaKey,
			Type:     m.Type,
			URL:      resolveMediaURL(m),
		})
	}

	return b
}

// NormalizeBatch maps a full bookmarks page to canonical records.
func NormalizeBatch(page twitter.BookmarksPage) []Bookmark {
	users := page.UsersByID()
	media := page.MediaByKey()
	out := make([]Bookmark, 0, len(page.Tweets))
	for _, tweet := range page.Tweets {
		out = append(out, Normalize(tweet, users, media))
	}
	return out
}

// resolveMediaURL picks the best URL for a media object.
//
// Videos: the highest-bitrate variant whose content type is video/*, then
// the preview image. Everything else: the direct URL, then the preview
// image. The fallback order matters; a video with only streaming variants
// still archives as its preview image rather than as nothing.
func resolveMediaURL(m twitter.Media) string {
	if m.Type == MediaTypeVideo {
		if u := bestVideoVariant(m.Variants); u != "" {
			return u
		}
		return m.PreviewImageURL
	}
	if m.URL != "" {
		return m.URL
	}
	return m.PreviewImageURL
}

func bestVideoVariant(variants []twitter.Variant) string {
	candidates := make([]twitter.Variant, 0, len(variants))
	for _, v := range variants {
		if strings.HasPrefix(v.ContentType, "video/") {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].BitRate > candidates[j].BitRate
	})
	return candidates[0].URL
}
