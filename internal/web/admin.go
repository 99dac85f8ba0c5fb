package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tormodh/perch/internal/apperr"
	"github.com/tormodh/perch/internal/postservice"
	"github.com/tormodh/perch/internal/session"
)

const maxFormBytes = 50 << 20 // 50 MB, dominated by the image field

// AdminHandler implements the authenticated CRUD workflow.
type AdminHandler struct {
	svc      *postservice.Service
	sessions *session.Store
	tmpl     *Templates
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(svc *postservice.Service, sessions *session.Store, tmpl *Templates) *AdminHandler {
	return &AdminHandler{svc: svc, sessions: sessions, tmpl: tmpl}
}

// formUpload extracts the optional image field from a multipart form. Returns
// nil when no file was submitted. The caller owns closing via the returned
// closer when non-nil.
func formUpload(r *http.Request) (*postservice.Upload, func()) {
	file, header, err := r.FormFile("image")
	if err != nil || header == nil || header.Filename == "" || header.Size == 0 {
		return nil, func() {}
	}
	up := &postservice.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
	}
	return up, func() { _ = file.Close() }
}

// parsePostForm reads the create/update form fields. The image field makes
// the form multipart, but a plain urlencoded body (no file input) is accepted
// too.
func parsePostForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil {
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid form body"))
			return false
		}
	}
	return true
}

// LoginPage handles GET /admin/login, reachable without a session.
func (h *AdminHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.tmpl.Render(w, "login.tmpl", map[string]any{
		"Error": r.URL.Query().Get("err") != "",
	})
}

// Logout handles GET /admin/logout: revokes the session server-side, clears
// the cookie, and redirects to the login page. Reachable without a session.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := h.sessions.Revoke(token); err != nil {
			slog.Warn("session revoke failed", slog.String("error", err.Error()))
		}
	}
	clearSessionCookie(w)
	http.Redirect(w, r, "/admin/login", http.StatusFound)
}

// Dashboard handles GET /admin: the post listing with the create form.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.ListPosts(r.Context())
	if err != nil {
		slog.Error("list posts failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	h.tmpl.Render(w, "admin.tmpl", map[string]any{"Posts": posts})
}

// Create handles POST /admin. Form fields: content (required), tags
// (comma-separated), image (optional file).
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !parsePostForm(w, r) {
		return
	}
	content := r.FormValue("content")
	if content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	up, closeUpload := formUpload(r)
	defer closeUpload()

	if _, err := h.svc.CreatePost(r.Context(), content, r.FormValue("tags"), up); err != nil {
		slog.Error("create post failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// EditForm handles GET /admin/edit/{id}.
func (h *AdminHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	post, err := h.svc.GetPost(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("post not found"))
			return
		}
		slog.Error("get post failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	h.tmpl.Render(w, "edit.tmpl", map[string]any{"Post": post})
}

// Update handles POST /admin/edit/{id} with the same fields as Create.
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !parsePostForm(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	content := r.FormValue("content")
	if content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	up, closeUpload := formUpload(r)
	defer closeUpload()

	if _, err := h.svc.UpdatePost(r.Context(), id, content, r.FormValue("tags"), up); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("post not found"))
			return
		}
		slog.Error("update post failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// Delete handles GET /admin/delete/{id}: idempotent delete, then back to the
// listing.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeletePost(r.Context(), id); err != nil {
		slog.Error("delete post failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	http.Redirect(w, r, "/admin", http.StatusFound)
}
