package web

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/tormodh/perch/internal/session"
)

// AuthHandler issues sessions against the configured admin password.
type AuthHandler struct {
	sessions *session.Store
	password string
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(sessions *session.Store, password string) *AuthHandler {
	return &AuthHandler{sessions: sessions, password: password}
}

// LoginRedirect handles GET /auth/login by sending the browser to the login
// prompt.
func (h *AuthHandler) LoginRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/admin/login", http.StatusFound)
}

// Login handles POST /auth/login. On a matching password it issues a session,
// sets the cookie, and redirects to the dashboard; otherwise it bounces back
// to the prompt with an error flag. The compare is constant-time.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/admin/login?err=1", http.StatusSeeOther)
		return
	}
	supplied := r.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(h.password)) != 1 {
		http.Redirect(w, r, "/admin/login?err=1", http.StatusSeeOther)
		return
	}

	token, err := h.sessions.Issue()
	if err != nil {
		slog.Error("session issue failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	setSessionCookie(w, token, int(h.sessions.TTL().Seconds()))
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}
