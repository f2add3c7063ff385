// Package site serves the embedded globe page.
package site

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var static embed.FS

// Register mounts the globe page and its assets at / on mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/", NewRootHandler())
}

// RootHandler serves the embedded page. Unknown paths return 404.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a root handler over the embedded static directory.
func NewRootHandler() *RootHandler {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return &RootHandler{files: http.FileServerFS(sub)}
}

// ServeHTTP handles GET and HEAD requests. The page is revalidated on every
// load so a redeploy picks up new assets.
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	h.files.ServeHTTP(w, r)
}
