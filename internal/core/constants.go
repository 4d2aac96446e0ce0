package core

import "time"

// File layout inside the backup directory.
const (
	BookmarkFilePrefix = "bookmark_"
	BookmarkFileSuffix = ".html"
	MediaDirName       = "media"
	AvatarDirName      = "avatars"
	SavedIndexFileName = "saved_bookmarks.json"
	SnapshotDirName    = "api_responses"
	SnapshotFileName   = "get_bookmarks.json"
)

// Timestamp formats the archive writes.
const (
	CreatedAtFormat  = "2006-01-02 15:04:05 UTC"
	BackupDateFormat = "2006-01-02 15:04:05"
)

// Download limits
const (
	DownloadTimeout  = 60 * time.Second
	MaxMediaSize     = 512 * 1024 * 1024 // 512MB
	MediaConcurrency = 4
)

// HTTP client configuration
const (
	UserAgent = "Mozilla/5.0 (compatible; birdmark/1.0)"
)
