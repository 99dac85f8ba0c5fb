package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tormodh/perch/internal/apperr"
	"github.com/tormodh/perch/internal/imagestore"
	"github.com/tormodh/perch/internal/postservice"
)

// PublicHandler serves the read-only feed and proxies stored images.
type PublicHandler struct {
	svc    *postservice.Service
	images *imagestore.Store
	tmpl   *Templates
}

// NewPublicHandler creates a PublicHandler.
func NewPublicHandler(svc *postservice.Service, images *imagestore.Store, tmpl *Templates) *PublicHandler {
	return &PublicHandler{svc: svc, images: images, tmpl: tmpl}
}

// Feed renders the full post feed. It also serves as the catch-all for any
// unmatched public path.
func (h *PublicHandler) Feed(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.ListPosts(r.Context())
	if err != nil {
		slog.Error("list posts failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	h.tmpl.Render(w, "feed.tmpl", map[string]any{"Posts": posts})
}

// Image handles GET /images/{key}: streams the stored blob with its content
// type and long-lived cache directives.
func (h *PublicHandler) Image(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	data, meta, err := h.images.Fetch(r.Context(), key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("image not found"))
			return
		}
		slog.Error("fetch image failed", slog.String("key", key), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	etag := `"` + meta.Checksum + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Header().Set("ETag", etag)
	_, _ = w.Write(data)
}
