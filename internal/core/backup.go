package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/seckatie/birdmark/internal/core/twitter"
)

// BookmarkFetcher is the remote collaborator: one bounded page of raw
// bookmarks per call. *twitter.Client satisfies it.
type BookmarkFetcher interface {
	Me(ctx context.Context) (string, error)
	Bookmarks(ctx context.Context, userID, cursor string) (twitter.BookmarksPage, error)
}

// BackupResult is the accounting for one backup run.
type BackupResult struct {
	Attempted int
	Saved     int
	Skipped   int
	Failed    int
}

// BackupOptions configures one backup run.
type BackupOptions struct {
	// Override, when non-empty, is used instead of fetching: a batch of
	// already-normalized records, e.g. loaded from an earlier snapshot.
	Override []Bookmark
	// SkipSnapshot disables writing the fetched batch to disk.
	SkipSnapshot bool
}

// RunBackup drives one pass of fetch, normalize, and store. Bookmarks
// are processed one at a time, each with an independent attempt: a
// failure is counted and logged, never propagated out of the loop. A
// remote fetch failure degrades to an empty run rather than an error;
// the next invocation may succeed.
func RunBackup(ctx context.Context, fetcher BookmarkFetcher, store *Store, log *zap.Logger, opts BackupOptions) (BackupResult, error) {
	log.Info("Starting bookmark backup...")

	bookmarks := opts.Override
	if len(bookmarks) == 0 {
		bookmarks = fetchBookmarks(ctx, fetcher, log)
		if len(bookmarks) == 0 {
			log.Info("No bookmarks to back up")
			return BackupResult{}, nil
		}
		if !opts.SkipSnapshot {
			if err := writeSnapshot(store.Dir(), bookmarks); err != nil {
				log.Error("Failed to write bookmarks snapshot", zap.Error(err))
			}
		}
	}

	var res BackupResult
	for i := range bookmarks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempted++
		stored, err := store.SaveBookmark(ctx, &bookmarks[i])
		switch {
		case err != nil:
			res.Failed++
			log.Error("Failed to save bookmark",
				zap.String("id", bookmarks[i].ID), zap.Error(err))
		case stored:
			res.Saved++
		default:
			res.Skipped++
		}
	}

	log.Info("Backup complete",
		zap.Int("saved", res.Saved),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res, nil
}

// fetchBookmarks pulls one page from the API and normalizes it. Remote
// failures are logged, with a permission hint for the usual
// misconfiguration, and reported as an empty batch.
func fetchBookmarks(ctx context.Context, fetcher BookmarkFetcher, log *zap.Logger) []Bookmark {
	log.Info("Fetching bookmarks...")

	userID, err := fetcher.Me(ctx)
	if err != nil {
		logFetchError(log, err)
		return nil
	}

	page, err := fetcher.Bookmarks(ctx, userID, "")
	if err != nil {
		logFetchError(log, err)
		return nil
	}
	if len(page.Tweets) == 0 {
		log.Info("No bookmarks found")
		return nil
	}

	bookmarks := NormalizeBatch(page)
	log.Info("Found bookmarks", zap.Int("count", len(bookmarks)))
	return bookmarks
}

func logFetchError(log *zap.Logger, err error) {
	log.Error("Failed to fetch bookmarks", zap.Error(err))
	var apiErr *twitter.APIError
	if errors.As(err, &apiErr) && apiErr.Kind == twitter.ErrorKindPermission {
		log.Error("Make sure your app has 'bookmark.read' permission")
	}
}

// writeSnapshot saves the normalized batch so later runs (and tests) can
// replay it with --replay instead of hitting the API.
func writeSnapshot(backupDir string, bookmarks []Bookmark) error {
	dir := filepath.Join(backupDir, SnapshotDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(bookmarks, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, SnapshotFileName), data, 0o644)
}

// LoadSnapshot reads a batch of normalized records previously written by
// writeSnapshot (or hand-crafted for testing).
func LoadSnapshot(path string) ([]Bookmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var bookmarks []Bookmark
	if err := json.Unmarshal(data, &bookmarks); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	return bookmarks, nil
}
