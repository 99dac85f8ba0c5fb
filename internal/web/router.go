package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tormodh/perch/internal/imagestore"
	"github.com/tormodh/perch/internal/postservice"
	"github.com/tormodh/perch/internal/session"
	"github.com/tormodh/perch/internal/sse"
)

// NewRouter builds the full chi router: public feed, image proxy, JSON API,
// auth, and the session-gated admin panel. broker, if non-nil, is mounted at
// GET /events.
func NewRouter(svc *postservice.Service, images *imagestore.Store, sessions *session.Store, tmpl *Templates, password string, broker *sse.Broker) chi.Router {
	public := NewPublicHandler(svc, images, tmpl)
	api := NewAPIHandler(svc)
	admin := NewAdminHandler(svc, sessions, tmpl)
	auth := NewAuthHandler(sessions, password)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(ar chi.Router) {
		ar.Get("/login", auth.LoginRedirect)
		ar.Post("/login", auth.Login)
	})

	r.Route("/api", func(ar chi.Router) {
		ar.Get("/posts", api.Posts)
		ar.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		})
	})

	r.Route("/admin", func(ar chi.Router) {
		// Reachable without a session.
		ar.Get("/login", admin.LoginPage)
		ar.Get("/logout", admin.Logout)

		ar.Group(func(g chi.Router) {
			g.Use(RequireSession(sessions))
			g.Get("/", admin.Dashboard)
			g.Post("/", admin.Create)
			g.Get("/edit/{id}", admin.EditForm)
			g.Post("/edit/{id}", admin.Update)
			g.Get("/delete/{id}", admin.Delete)
		})

		// Unknown admin paths sit behind the same gate: unauthenticated
		// requests are redirected, authenticated ones get a 404.
		notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		})
		ar.NotFound(RequireSession(sessions)(notFound).ServeHTTP)
	})

	if broker != nil {
		r.Get("/events", broker.ServeHTTP)
	}

	r.Get("/images/{key}", public.Image)

	// Any other path renders the public feed.
	r.NotFound(public.Feed)

	return r
}
