package web

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/seckatie/birdmark/internal/core"
)

// PerPage is the fixed page size of the bookmark listing.
const PerPage = 10

func (ws *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	// "/" on a ServeMux is a catch-all; anything else under it is a miss.
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(ws.indexHTML); err != nil {
		ws.log.Error("Failed to write index page", zap.Error(err))
	}
}

func (ws *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}

	files, err := ws.listBookmarkFiles()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		ws.log.Error("Failed to list bookmark files", zap.Error(err))
		return
	}

	total := len(files)
	start := (page - 1) * PerPage
	if start > total {
		start = total
	}
	end := start + PerPage
	if end > total {
		end = total
	}

	resp := bookmarkListResponse{
		Bookmarks: make([]bookmarkEntry, 0, end-start),
		HasMore:   end < total,
		Total:     total,
	}
	for _, filename := range files[start:end] {
		resp.Bookmarks = append(resp.Bookmarks, ws.buildEntry(filename))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		ws.log.Error("Failed to encode bookmark list", zap.Error(err))
	}
}

// listBookmarkFiles returns the artifact filenames, newest first. Ids
// are roughly monotonic, so descending filename order approximates
// newest-first.
func (ws *Server) listBookmarkFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(ws.dir, core.BookmarkFilePrefix+"*"+core.BookmarkFileSuffix))
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		files = append(files, filepath.Base(m))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files, nil
}

// buildEntry reads one artifact and extracts its embeddable fragment. A
// broken file becomes an inline error entry; the listing never fails as
// a whole because one artifact is unreadable.
func (ws *Server) buildEntry(filename string) bookmarkEntry {
	id := strings.TrimSuffix(strings.TrimPrefix(filename, core.BookmarkFilePrefix), core.BookmarkFileSuffix)

	data, err := os.ReadFile(filepath.Join(ws.dir, filename))
	if err != nil {
		ws.log.Error("Failed to read bookmark file", zap.String("file", filename), zap.Error(err))
		return bookmarkEntry{
			Filename: filename,
			ID:       id,
			Content:  fmt.Sprintf("<div class='error'>Failed to load %s</div>", html.EscapeString(filename)),
		}
	}

	return bookmarkEntry{
		Filename: filename,
		ID:       id,
		Content:  extractFragment(string(data)),
	}
}

// extractFragment pulls the inner content of the tweet container out of
// a stored document: everything up to the backup-info footer. If the
// expected structure is missing it falls back to the body contents, and
// as a last resort to the raw input.
func extractFragment(document string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return document
	}
	if sel := doc.Find("div.tweet").First(); sel.Length() > 0 {
		if fragment, err := sel.Html(); err == nil {
			return fragment
		}
	}
	if fragment, err := doc.Find("body").Html(); err == nil && fragment != "" {
		return fragment
	}
	return document
}

// handleBookmarkFile serves a raw archived document by filename.
func (ws *Server) handleBookmarkFile(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	filename, ok := safeFilename(strings.TrimPrefix(r.URL.Path, "/bookmark/"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(ws.dir, filename))
}

// handleMediaFile serves raw media bytes by filename.
func (ws *Server) handleMediaFile(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	filename, ok := safeFilename(strings.TrimPrefix(r.URL.Path, "/media/"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(ws.dir, core.MediaDirName, filename))
}

// safeFilename accepts bare filenames only; anything with a path
// separator or traversal in it is rejected.
func safeFilename(name string) (string, bool) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", false
	}
	return name, true
}

// requireMethod checks if the request method matches the expected method.
// Returns true if the method matches, false otherwise (and sends 405 response).
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}
