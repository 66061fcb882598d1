package webui

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// mountStatic serves the built single-page frontend. Unknown non-API paths
// fall back to index.html so client-side routes survive a reload.
func (s *Server) mountStatic(r chi.Router) {
	dir := s.config.Server.StaticDir
	if dir == "" {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "Not found")
		})
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		s.logger.Printf("Static directory %s not found, frontend disabled", dir)
	}

	assets := http.FileServer(http.Dir(filepath.Join(dir, "assets")))
	r.Handle("/assets/*", http.StripPrefix("/assets", assets))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, s.config.Server.APIPrefix+"/") {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}

		// Prevent directory traversal
		absBase, err := filepath.Abs(dir)
		if err != nil {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		absPath, err := filepath.Abs(filepath.Join(dir, filepath.FromSlash(r.URL.Path)))
		if err == nil && strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
			if info, err := os.Stat(absPath); err == nil && !info.IsDir() {
				http.ServeFile(w, r, absPath)
				return
			}
		}

		index := filepath.Join(absBase, "index.html")
		if _, err := os.Stat(index); err != nil {
			writeError(w, http.StatusNotFound, "Frontend not built")
			return
		}
		http.ServeFile(w, r, index)
	})
}
