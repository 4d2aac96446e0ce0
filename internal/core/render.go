package core

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/bookmark.html
var templatesFS embed.FS

var bookmarkTmpl = template.Must(template.ParseFS(templatesFS, "templates/bookmark.html"))

// bookmarkView is the template's view of a Bookmark. Text is raw HTML by
// contract: the post body is pre-sanitized upstream. Every other field
// goes through html/template's contextual escaping, so markup in a
// display name or username never becomes live markup in the artifact.
type bookmarkView struct {
	ID         string
	Text       template.HTML
	CreatedAt  string
	Author     *Author
	AvatarURL  string
	Engagement Engagement
	Media      []MediaItem
	BackupDate string
}

// StatusUsername is the username for the original-post link, with the
// same "unknown" placeholder the archive has always used.
func (v bookmarkView) StatusUsername() string {
	if v.Author != nil {
		return v.Author.Username
	}
	return "unknown"
}

// RenderBookmark produces the self-contained HTML document for one
// bookmark. Pure string generation: no filesystem or network access.
// avatarURL is the (possibly local) avatar path to embed; empty falls
// back to the author's remote profile image.
func RenderBookmark(b Bookmark, avatarURL string, backupTime time.Time) (string, error) {
	view := bookmarkView{
		ID:         b.ID,
		Text:       template.HTML(b.Text),
		CreatedAt:  b.CreatedAt,
		Author:     b.Author,
		AvatarURL:  avatarURL,
		Engagement: b.Engagement,
		Media:      b.Media,
		BackupDate: backupTime.Format(BackupDateFormat),
	}
	if view.AvatarURL == "" && b.Author != nil {
		view.AvatarURL = b.Author.ProfileImageURL
	}

	var sb strings.Builder
	if err := bookmarkTmpl.Execute(&sb, view); err != nil {
		return "", fmt.Errorf("failed to render bookmark %s: %w", b.ID, err)
	}
	return sb.String(), nil
}
