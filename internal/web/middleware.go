// Package web implements the Perch HTTP surface using chi: the public feed,
// the JSON API, and the session-gated admin panel.
package web

import (
	"net/http"

	"github.com/tormodh/perch/internal/session"
)

// sessionToken extracts the session cookie value from a request. A missing or
// malformed cookie degrades to the empty string.
func sessionToken(r *http.Request) string {
	c, err := r.Cookie(session.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// RequireSession returns middleware that redirects to the login page unless
// the request carries a live session. Admin paths never answer 401/403; the
// browser is always sent back to /admin/login.
func RequireSession(sessions *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessions.Verify(sessionToken(r)) {
				http.Redirect(w, r, "/admin/login", http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clearSessionCookie expires the session cookie on the client.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// setSessionCookie installs a freshly issued session token on the client.
func setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
