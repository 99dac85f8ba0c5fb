package web

import (
	"log/slog"
	"net/http"

	"github.com/tormodh/perch/internal/models"
	"github.com/tormodh/perch/internal/postservice"
)

// APIHandler serves the post collection to programmatic consumers.
type APIHandler struct {
	svc *postservice.Service
}

// NewAPIHandler creates an APIHandler.
func NewAPIHandler(svc *postservice.Service) *APIHandler {
	return &APIHandler{svc: svc}
}

// PostsResponse wraps the post collection in its single-field envelope.
type PostsResponse struct {
	Data []models.Post `json:"data"`
}

// Posts handles GET /api/posts.
func (h *APIHandler) Posts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.ListPosts(r.Context())
	if err != nil {
		slog.Error("list posts failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, PostsResponse{Data: posts})
}
