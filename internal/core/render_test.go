package core

import (
	"strings"
	"testing"
	"time"
)

var renderTime = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

func TestRenderBookmark(t *testing.T) {
	t.Run("body is embedded as raw safe html", func(t *testing.T) {
		b := Bookmark{
			ID:        "42",
			Text:      "hello <b>world</b>",
			CreatedAt: "2024-05-01 10:00:00 UTC",
		}
		html, err := RenderBookmark(b, "", renderTime)
		if err != nil {
			t.Fatalf("RenderBookmark failed: %v", err)
		}
		if !strings.Contains(html, "hello <b>world</b>") {
			t.Error("post body should render unescaped")
		}
	})

	t.Run("author fields are escaped", func(t *testing.T) {
		b := Bookmark{
			ID:        "1",
			Text:      "hi",
			CreatedAt: "2024-05-01 10:00:00 UTC",
			Author: &Author{
				Name:     "Evil <script>alert(1)</script>",
				Username: "evil<user>",
			},
		}
		html, err := RenderBookmark(b, "", renderTime)
		if err != nil {
			t.Fatalf("RenderBookmark failed: %v", err)
		}
		if strings.Contains(html, "<script>alert(1)</script>") {
			t.Error("display name markup must be escaped")
		}
		if !strings.Contains(html, "Evil &lt;script&gt;") {
			t.Error("expected escaped display name in output")
		}
	})

	t.Run("missing author renders Unknown User", func(t *testing.T) {
		b := Bookmark{ID: "1", Text: "hi", CreatedAt: "2024-05-01 10:00:00 UTC"}
		html, err := RenderBookmark(b, "", renderTime)
		if err != nil {
			t.Fatalf("RenderBookmark failed: %v", err)
		}
		if !strings.Contains(html, "Unknown User") {
			t.Error("expected Unknown User fallback")
		}
		if !strings.Contains(html, "https://twitter.com/unknown/status/1") {
			t.Error("original link should use the unknown placeholder")
		}
		if strings.Contains(html, `class="avatar"`) {
			t.Error("no avatar image without an author")
		}
	})

	t.Run("photo media renders img tag", func(t *testing.T) {
		b := Bookmark{
			ID: "1", Text: "pic", CreatedAt: "x",
			Media: []MediaItem{{MediaKey: "m1", Type: "photo", URL: "media/1_m1.jpg"}},
		}
		html, err := RenderBookmark(b, "", renderTime)
		if err != nil {
			t.Fatalf("RenderBookmark failed: %v", err)
		}
		if !strings.Contains(html, `<img src="media/1_m1.jpg"`) {
			t.Errorf("expected img tag, got:\n%s", html)
		}
	})

	t.Run("video media renders video tag with single source", func(t *testing.T) {
		b := Bookmark{
			ID: "1", Text: "vid", CreatedAt: "x",
			Media: []MediaItem{{MediaKey: "m1", Type: "video", URL: "media/1_m1.mp4"}},
		}
		html, err := RenderBookmark(b, "", renderTime)
		if err != nil {
			t.Fatalf("RenderBookmark failed: %v", err)
		}
		if !strings.Contains(html, "<video controls>") {
			t.Error("expected video tag")
		}
		if strings.Count(html, "<source ") != 1 {
			t.Error("expected exactly one source element")
		}
	})

	t.Run("empty media list renders no media block", func(t *testing.T) {
		b := Bookmark{ID: "1", Text: "plain", CreatedAt: "x"}
		html, err := RenderBookmark(b, "", renderTime)
		if err != nil {
			t.Fatalf("RenderBookmark failed: %v", err)
		}
		if strings.Contains(html, "tweet-media") {
			t.Error("media block should be omitted when there is no media")
		}
	})

	t.Run("unsupported media types are skipped inside the block", func(t *testing.T) {
		b := Bookmark{
			ID: "1", Text: "gif", CreatedAt: "x",
			Media: []MediaItem{{MediaKey: "m1", Type: "animated_gif", URL: "http://x/g.gif"}},
		}
		html, err := RenderBookmark(b, "", renderTime)
		if err != nil {
			t.Fatalf("RenderBookmark failed: %v", err)
		}
		if strings.Contains(html, "<img") || strings.Contains(html, "<video") {
			t.Error("unsupported media types should not emit tags")
		}
	})

	t.Run("avatar url parameter wins over remote profile image", func(t *testing.T) {
		b := Bookmark{
			ID: "1", Text: "hi", CreatedAt: "x",
			Author: &Author{Username: "someone", Name: "Someone", ProfileImageURL: "http://remote/a.jpg"},
		}
		html, err := RenderBookmark(b, "avatars/someone.jpg", renderTime)
		if err != nil {
			t.Fatalf("RenderBookmark failed: %v", err)
		}
		if !strings.Contains(html, `src="avatars/someone.jpg"`) {
			t.Error("expected local avatar path in output")
		}
	})

	t.Run("engagement counters and backup footer", func(t *testing.T) {
		b := Bookmark{
			ID: "99", Text: "hi", CreatedAt: "x",
			Author:     &Author{Username: "someone", Name: "Someone"},
			Engagement: Engagement{LikeCount: 7, RetweetCount: 3, ReplyCount: 1},
		}
		html, err := RenderBookmark(b, "", renderTime)
		if err != nil {
			t.Fatalf("RenderBookmark failed: %v", err)
		}
		for _, want := range []string{" 7<", " 3<", " 1<", "2025-01-15 09:00:00", "https://twitter.com/someone/status/99"} {
			if !strings.Contains(html, want) {
				t.Errorf("output missing %q", want)
			}
		}
		// The viewer slices on these two containers.
		if !strings.Contains(html, `<div class="tweet">`) || !strings.Contains(html, `<div class="backup-info">`) {
			t.Error("tweet/backup-info containers must be present for the viewer")
		}
	})
}
