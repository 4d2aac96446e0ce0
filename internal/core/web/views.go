package web

// bookmarkEntry is one list item: the embeddable fragment extracted from
// a stored artifact, never the whole document.
type bookmarkEntry struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	ID       string `json:"id"`
}

type bookmarkListResponse struct {
	Bookmarks []bookmarkEntry `json:"bookmarks"`
	HasMore   bool            `json:"has_more"`
	Total     int             `json:"total"`
}
