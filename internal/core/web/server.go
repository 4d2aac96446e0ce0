// Package web is the read-only viewer over an archive directory. It
// never mutates the tree; the backup command owns all writes.
package web

import (
	"embed"
	"net/http"

	"go.uber.org/zap"
)

//go:embed templates/index.html
var templatesFS embed.FS

// Server serves the archived bookmarks from a backup directory.
type Server struct {
	dir       string
	log       *zap.Logger
	indexHTML []byte
}

// StartServer runs the viewer at addr over the given backup directory.
// It blocks until the listener fails.
func StartServer(addr, dir string, log *zap.Logger) error {
	ws, err := NewServer(dir, log)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	ws.registerRoutes(mux)

	log.Info("Starting bookmark viewer", zap.String("addr", addr), zap.String("dir", dir))
	return http.ListenAndServe(addr, mux)
}

// NewServer builds a Server without starting a listener.
func NewServer(dir string, log *zap.Logger) (*Server, error) {
	indexHTML, err := templatesFS.ReadFile("templates/index.html")
	if err != nil {
		return nil, err
	}
	return &Server{dir: dir, log: log, indexHTML: indexHTML}, nil
}

func (ws *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", ws.handleIndex)
	mux.HandleFunc("/api/bookmarks", ws.handleListBookmarks)
	mux.HandleFunc("/bookmark/", ws.handleBookmarkFile)
	mux.HandleFunc("/media/", ws.handleMediaFile)
}
