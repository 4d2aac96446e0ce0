package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Store owns the backup directory tree and decides, per bookmark, what
// still needs fetching. Dedupe is purely existence-based: once an
// artifact for an id exists it is considered permanently archived, even
// if the remote record later changes.
//
// Writes are whole-buffer (download fully, then write) so a reader never
// watches a file grow, but they are not atomic renames: a crash mid-write
// can leave a truncated artifact that later runs will treat as done.
type Store struct {
	dir    string
	client *http.Client
	log    *zap.Logger
	now    func() time.Time

	// avatars deduplicates concurrent downloads per username.
	avatars singleflight.Group

	mu    sync.Mutex
	saved map[string]struct{}
}

// NewStore opens (creating if needed) the backup directory and loads the
// legacy saved-bookmark index.
func NewStore(dir string, log *zap.Logger) (*Store, error) {
	for _, d := range []string{dir, filepath.Join(dir, MediaDirName), filepath.Join(dir, AvatarDirName)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create backup directory %s: %w", d, err)
		}
	}

	s := &Store{
		dir:    dir,
		client: &http.Client{Timeout: DownloadTimeout},
		log:    log,
		now:    time.Now,
		saved:  make(map[string]struct{}),
	}
	if err := s.loadSavedIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the backup directory root.
func (s *Store) Dir() string { return s.dir }

// SaveBookmark archives one bookmark: resolves the avatar and media to
// local files, renders the HTML artifact, and records the id. It returns
// false when the bookmark was already archived (not an error) or when the
// artifact could not be written (the error says why). Failures never
// cascade: a bad media item leaves that item pointing at its remote URL.
func (s *Store) SaveBookmark(ctx context.Context, b *Bookmark) (bool, error) {
	htmlPath := filepath.Join(s.dir, BookmarkFilePrefix+b.ID+BookmarkFileSuffix)
	if fileExists(htmlPath) || s.isSaved(b.ID) {
		s.log.Info("Bookmark already saved, skipping", zap.String("id", b.ID))
		return false, nil
	}

	avatarURL := s.resolveAvatar(ctx, b.Author)
	s.resolveMedia(ctx, b)

	html, err := RenderBookmark(*b, avatarURL, s.now())
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		return false, fmt.Errorf("failed to write artifact for bookmark %s: %w", b.ID, err)
	}

	s.markSaved(b.ID)
	s.log.Info("Saved bookmark", zap.String("id", b.ID), zap.String("file", htmlPath))
	return true, nil
}

// resolveAvatar ensures the author's avatar exists locally and returns
// its relative path. Avatars are keyed by username, not bookmark: the
// second bookmark from an author reuses the file. Failures are logged
// and the remote URL is used instead; a dead avatar never fails a save.
func (s *Store) resolveAvatar(ctx context.Context, a *Author) string {
	if a == nil || a.ProfileImageURL == "" || a.Username == "" {
		return ""
	}

	safe := SanitizeUsername(a.Username)
	rel := filepath.Join(AvatarDirName, safe+".jpg")
	path := filepath.Join(s.dir, rel)
	if fileExists(path) {
		return rel
	}

	_, err, _ := s.avatars.Do(safe, func() (any, error) {
		if fileExists(path) {
			return nil, nil
		}
		data, err := s.download(ctx, a.ProfileImageURL)
		if err != nil {
			return nil, err
		}
		return nil, os.WriteFile(path, data.body, 0o644)
	})
	if err != nil {
		s.log.Error("Failed to download avatar",
			zap.String("username", a.Username), zap.Error(err))
		return ""
	}
	return rel
}

// resolveMedia rewrites each downloadable media item's URL to a local
// relative path, reusing files from earlier runs and downloading the
// rest. Items of one bookmark download concurrently under a small limit;
// callers serialize bookmarks themselves, so no two goroutines ever
// target the same artifact.
func (s *Store) resolveMedia(ctx context.Context, b *Bookmark) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MediaConcurrency)

	for i := range b.Media {
		m := &b.Media[i]
		if m.URL == "" || (m.Type != MediaTypePhoto && m.Type != MediaTypeVideo) {
			continue
		}
		base := b.ID + "_" + m.MediaKey

		if rel, ok := s.findExistingMedia(base, m.Type); ok {
			s.log.Info("Media already downloaded, reusing",
				zap.String("id", b.ID), zap.String("media_key", m.MediaKey))
			m.URL = rel
			continue
		}

		g.Go(func() error {
			rel, err := s.downloadMedia(gctx, m.URL, base, m.Type)
			if err != nil {
				// Leave the remote URL in place; the artifact still renders.
				s.log.Error("Failed to download media",
					zap.String("id", b.ID),
					zap.String("media_key", m.MediaKey),
					zap.String("url", m.URL),
					zap.Error(err))
				return nil
			}
			m.URL = rel
			return nil
		})
	}
	_ = g.Wait()
}

// findExistingMedia looks for a previously downloaded file for this media
// item under any plausible extension for its type.
func (s *Store) findExistingMedia(base, mediaType string) (string, bool) {
	for _, ext := range candidateExtensions(mediaType) {
		rel := filepath.Join(MediaDirName, base+ext)
		if fileExists(filepath.Join(s.dir, rel)) {
			return rel, true
		}
	}
	return "", false
}

func (s *Store) downloadMedia(ctx context.Context, url, base, mediaType string) (string, error) {
	res, err := s.download(ctx, url)
	if err != nil {
		return "", err
	}

	filename := base + sniffExtension(res.contentType, mediaType)
	rel := filepath.Join(MediaDirName, filename)
	if err := os.WriteFile(filepath.Join(s.dir, rel), res.body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	return rel, nil
}

type downloadResult struct {
	body        []byte
	contentType string
}

// download fetches a URL fully into memory. Redirects are followed; the
// body is capped at MaxMediaSize.
func (s *Store) download(ctx context.Context, url string) (downloadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return downloadResult{}, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return downloadResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return downloadResult{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxMediaSize))
	if err != nil {
		return downloadResult{}, err
	}
	return downloadResult{
		body:        body,
		contentType: strings.ToLower(resp.Header.Get("Content-Type")),
	}, nil
}

// sniffExtension maps a response content type to a file extension,
// falling back to a default for the declared media type, then to no
// extension at all.
func sniffExtension(contentType, mediaType string) string {
	switch {
	case strings.Contains(contentType, "video/"):
		switch {
		case strings.Contains(contentType, "mp4"):
			return ".mp4"
		case strings.Contains(contentType, "webm"):
			return ".webm"
		case strings.Contains(contentType, "quicktime"):
			return ".mov"
		default:
			return ".mp4"
		}
	case strings.Contains(contentType, "image/"):
		switch {
		case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
			return ".jpg"
		case strings.Contains(contentType, "png"):
			return ".png"
		case strings.Contains(contentType, "gif"):
			return ".gif"
		default:
			return ".jpg"
		}
	case mediaType == MediaTypeVideo:
		return ".mp4"
	case mediaType == MediaTypePhoto:
		return ".jpg"
	default:
		return ""
	}
}

func candidateExtensions(mediaType string) []string {
	switch mediaType {
	case MediaTypeVideo:
		return []string{".mp4", ".webm", ".mov", ""}
	default:
		return []string{".jpg", ".png", ".gif", ""}
	}
}

// SanitizeUsername turns a username into a safe filename stem: lowercase
// with every non-alphanumeric character replaced by an underscore.
func SanitizeUsername(username string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(username) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// ------------------------------
// Legacy saved-bookmark index
// ------------------------------
//
// The existence check on the artifact is authoritative; the JSON id list
// is kept for compatibility with archives written by older versions.

func (s *Store) loadSavedIndex() error {
	data, err := os.ReadFile(filepath.Join(s.dir, SavedIndexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read saved bookmarks index: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("failed to parse saved bookmarks index: %w", err)
	}
	for _, id := range ids {
		s.saved[id] = struct{}{}
	}
	return nil
}

func (s *Store) isSaved(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.saved[id]
	return ok
}

func (s *Store) markSaved(id string) {
	s.mu.Lock()
	s.saved[id] = struct{}{}
	ids := make([]string, 0, len(s.saved))
	for saved := range s.saved {
		ids = append(ids, saved)
	}
	s.mu.Unlock()

	sort.Strings(ids)
	data, err := json.Marshal(ids)
	if err != nil {
		s.log.Error("Failed to encode saved bookmarks index", zap.Error(err))
		return
	}
	if err := os.WriteFile(filepath.Join(s.dir, SavedIndexFileName), data, 0o644); err != nil {
		s.log.Error("Failed to write saved bookmarks index", zap.Error(err))
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
