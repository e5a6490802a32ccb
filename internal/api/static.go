package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// SPAHandler serves a single-page frontend from a static directory.
// Requests for files that exist are served directly; everything else gets
// index.html so client-side routing works after a page refresh.
type SPAHandler struct {
	staticDir string
}

func NewSPAHandler(staticDir string) *SPAHandler {
	return &SPAHandler{staticDir: staticDir}
}

func (s *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Unknown API paths stay JSON 404s, never index.html
	if strings.HasPrefix(r.URL.Path, "/api/") {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}

	if s.staticDir == "" {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}

	rel := strings.TrimPrefix(filepath.Clean(r.URL.Path), "/")
	path := filepath.Join(s.staticDir, rel)

	// Reject anything that escapes the static directory
	if !strings.HasPrefix(path, filepath.Clean(s.staticDir)) {
		respondError(w, http.StatusBadRequest, "Invalid path")
		return
	}

	info, err := os.Stat(path)
	if err == nil && !info.IsDir() {
		http.ServeFile(w, r, path)
		return
	}

	if r.URL.Path == "/favicon.ico" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	index := filepath.Join(s.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}
	http.ServeFile(w, r, index)
}
