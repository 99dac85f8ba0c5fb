package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tormodh/perch/internal/imagestore"
	"github.com/tormodh/perch/internal/models"
	"github.com/tormodh/perch/internal/postservice"
	"github.com/tormodh/perch/internal/poststore"
	"github.com/tormodh/perch/internal/session"
	"github.com/tormodh/perch/internal/testutil"
)

const testPassword = "correct-horse-battery"

type testEnv struct {
	router   chi.Router
	svc      *postservice.Service
	images   *imagestore.Store
	sessions *session.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	kv := testutil.TestKV(t)
	sessions := testutil.TestSessions(t, time.Hour)
	images := imagestore.New(kv)
	svc := postservice.NewService(poststore.New(kv), images, nil)

	tmpl, err := NewTemplates("")
	if err != nil {
		t.Fatal(err)
	}

	return &testEnv{
		router:   NewRouter(svc, images, sessions, tmpl, testPassword, nil),
		svc:      svc,
		images:   images,
		sessions: sessions,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// authed attaches a freshly issued session cookie to the request.
func (e *testEnv) authed(t *testing.T, req *http.Request) *http.Request {
	t.Helper()
	token, err := e.sessions.Issue()
	if err != nil {
		t.Fatal(err)
	}
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	return req
}

func formReq(method, target string, fields url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(fields.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v (raw %q)", err, rec.Body.String())
	}
	return body.Error
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestAdminRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	paths := []string{"/admin", "/admin/", "/admin/edit/some-id", "/admin/delete/some-id"}
	for _, path := range paths {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusFound {
			t.Errorf("%s without cookie: status = %d, want 302", path, rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/admin/login" {
			t.Errorf("%s: location = %q, want /admin/login", path, loc)
		}
	}

	// A cookie that was never issued by the server must not pass the gate.
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "forged"})
	rec := env.do(req)
	if rec.Code != http.StatusFound {
		t.Errorf("forged cookie: status = %d, want 302", rec.Code)
	}
}

func TestUnknownAdminPathBehindGate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/admin/nope", nil))
	if rec.Code != http.StatusFound {
		t.Errorf("unauthenticated: status = %d, want 302", rec.Code)
	}

	rec = env.do(env.authed(t, httptest.NewRequest(http.MethodGet, "/admin/nope", nil)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("authenticated: status = %d, want 404", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "not found" {
		t.Errorf("error = %q", msg)
	}
}

func TestLoginPageIsOpen(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/admin/login", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content-type = %q", ct)
	}
}

func TestAuthLoginRedirect(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/admin/login" {
		t.Errorf("status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(formReq(http.MethodPost, "/auth/login", url.Values{"password": {"wrong"}}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/admin/login?err=1" {
		t.Errorf("location = %q", loc)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			t.Errorf("session cookie set on failed login: %v", c)
		}
	}
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(formReq(http.MethodPost, "/auth/login", url.Values{"password": {testPassword}}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/admin" {
		t.Errorf("location = %q, want /admin", loc)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatal("no session cookie issued")
	}
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("cookie attributes = %+v", cookie)
	}
	if !env.sessions.Verify(cookie.Value) {
		t.Error("issued cookie token does not verify")
	}

	// The cookie now opens the dashboard.
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(cookie)
	rec = env.do(req)
	if rec.Code != http.StatusOK {
		t.Errorf("dashboard with session: status = %d, want 200", rec.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.sessions.Issue()
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/logout", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	rec := env.do(req)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/admin/login" {
		t.Fatalf("status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie not cleared")
	}
	if env.sessions.Verify(token) {
		t.Error("token still verifies after logout")
	}
}

func TestCreatePostFromForm(t *testing.T) {
	env := newTestEnv(t)

	fields := url.Values{"content": {"first post"}, "tags": {"go, notes"}}
	rec := env.do(env.authed(t, formReq(http.MethodPost, "/admin", fields)))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin" {
		t.Fatalf("status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}

	posts, err := env.svc.ListPosts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 || posts[0].Content != "first post" {
		t.Fatalf("posts = %+v", posts)
	}
	if len(posts[0].Tags) != 2 || posts[0].Tags[0] != "go" {
		t.Errorf("tags = %v", posts[0].Tags)
	}
}

func TestCreateRequiresContent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(env.authed(t, formReq(http.MethodPost, "/admin", url.Values{"tags": {"x"}})))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "content is required" {
		t.Errorf("error = %q", msg)
	}
}

func TestCreatePostWithImageUpload(t *testing.T) {
	env := newTestEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("content", "look at this")
	_ = mw.WriteField("tags", "pics")

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="shot.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("png bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/admin", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := env.do(env.authed(t, req))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 (body %q)", rec.Code, rec.Body.String())
	}

	posts, err := env.svc.ListPosts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 {
		t.Fatalf("posts = %+v", posts)
	}
	post := posts[0]
	wantKey := post.ID + "-shot.png"
	if !strings.Contains(post.Content, "](/images/"+wantKey+")") {
		t.Fatalf("content = %q, missing image ref", post.Content)
	}

	// The stored blob is served back with cache headers and an ETag.
	rec = env.do(httptest.NewRequest(http.MethodGet, "/images/"+wantKey, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("image status = %d (body %q)", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "png bytes" {
		t.Errorf("image body = %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content-type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=31536000" {
		t.Errorf("cache-control = %q", cc)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("no etag")
	}

	req = httptest.NewRequest(http.MethodGet, "/images/"+wantKey, nil)
	req.Header.Set("If-None-Match", etag)
	rec = env.do(req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional status = %d, want 304", rec.Code)
	}
}

func TestImageNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/images/nope.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "image not found" {
		t.Errorf("error = %q", msg)
	}
}

func TestAPIPosts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if cors := rec.Header().Get("Access-Control-Allow-Origin"); cors != "*" {
		t.Errorf("cors = %q", cors)
	}
	// The empty feed must encode as [] and not null.
	raw := rec.Body.String()
	if !strings.Contains(raw, `"data":[]`) {
		t.Errorf("body = %q, want empty data array", raw)
	}

	if _, err := env.svc.CreatePost(context.Background(), "older", "", nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(1100 * time.Millisecond) // date layout has second resolution
	if _, err := env.svc.CreatePost(context.Background(), "newer", "", nil); err != nil {
		t.Fatal(err)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	var got struct {
		Data []models.Post `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Data) != 2 {
		t.Fatalf("len = %d", len(got.Data))
	}
	if got.Data[0].Content != "newer" || got.Data[1].Content != "older" {
		t.Errorf("order = %q, %q; want newest first", got.Data[0].Content, got.Data[1].Content)
	}
}

func TestAPIUnknownPath(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/bogus", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "not found" {
		t.Errorf("error = %q", msg)
	}
}

func TestEditRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	post, err := env.svc.CreatePost(context.Background(), "draft", "old", nil)
	if err != nil {
		t.Fatal(err)
	}

	rec := env.do(env.authed(t, httptest.NewRequest(http.MethodGet, "/admin/edit/"+post.ID, nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("edit form status = %d", rec.Code)
	}
	page, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(page), "draft") {
		t.Error("edit form does not show the current content")
	}

	fields := url.Values{"content": {"published"}, "tags": {"new"}}
	rec = env.do(env.authed(t, formReq(http.MethodPost, "/admin/edit/"+post.ID, fields)))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin" {
		t.Fatalf("status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}

	got, err := env.svc.GetPost(context.Background(), post.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "published" {
		t.Errorf("content = %q", got.Content)
	}
	if got.Date != post.Date {
		t.Errorf("creation date changed: %q vs %q", got.Date, post.Date)
	}
	if got.UpdatedAt == "" {
		t.Error("updatedAt not stamped")
	}
}

func TestEditUnknownPost(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(env.authed(t, httptest.NewRequest(http.MethodGet, "/admin/edit/ghost", nil)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET status = %d, want 404", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "post not found" {
		t.Errorf("error = %q", msg)
	}

	fields := url.Values{"content": {"x"}}
	rec = env.do(env.authed(t, formReq(http.MethodPost, "/admin/edit/ghost", fields)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("POST status = %d, want 404", rec.Code)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	post, err := env.svc.CreatePost(context.Background(), "bye", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	rec := env.do(env.authed(t, httptest.NewRequest(http.MethodGet, "/admin/delete/"+post.ID, nil)))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/admin" {
		t.Fatalf("status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}

	// Deleting the same id again still redirects.
	rec = env.do(env.authed(t, httptest.NewRequest(http.MethodGet, "/admin/delete/"+post.ID, nil)))
	if rec.Code != http.StatusFound {
		t.Errorf("second delete status = %d, want 302", rec.Code)
	}
}

func TestUnmatchedPathRendersFeed(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.CreatePost(context.Background(), "hello feed", "", nil); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"/", "/totally/random"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rec.Code)
			continue
		}
		if body := rec.Body.String(); !strings.Contains(body, "hello feed") {
			t.Errorf("%s: feed missing post content", path)
		}
	}
}
