package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"snapfeed/internal/config"
	"snapfeed/internal/models"
	"snapfeed/internal/service"
	"snapfeed/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

type testServer struct {
	t   *testing.T
	srv *Server
	app *fiber.App
	db  *gorm.DB
	rdb *redis.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{
		JWTSecret: testSecret,
		AppURL:    "http://snapfeed.test",
		Env:       "test",
	}
	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	return &testServer{t: t, srv: srv, app: srv.App(), db: db, rdb: rdb}
}

func (ts *testServer) do(req *http.Request) *http.Response {
	ts.t.Helper()
	resp, err := ts.app.Test(req, -1)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// api sends a JSON request and decodes the JSON answer.
func (ts *testServer) api(method, path, token string, body any) (*http.Response, map[string]any) {
	ts.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := ts.do(req)
	return resp, decodeBody(ts.t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

// registerAPI creates an account through the API and returns its token.
func (ts *testServer) registerAPI(name, email string) (string, *models.User) {
	ts.t.Helper()
	resp, body := ts.api(http.MethodPost, "/api/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "Secret123!",
	})
	require.Equal(ts.t, http.StatusCreated, resp.StatusCode, body)
	user := ts.user(email)
	return body["token"].(string), user
}

func (ts *testServer) user(email string) *models.User {
	ts.t.Helper()
	var user models.User
	require.NoError(ts.t, ts.db.Where("email = ?", email).First(&user).Error)
	return &user
}

func (ts *testServer) markVerified(user *models.User) {
	ts.t.Helper()
	now := time.Now()
	require.NoError(ts.t, ts.db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("email_verified_at", now).Error)
	user.EmailVerifiedAt = &now
}

// verificationPath is the path and query of a freshly signed link.
func (ts *testServer) verificationPath(user *models.User, surface service.Surface) string {
	ts.t.Helper()
	link, err := ts.srv.verification.SignedURL(user, surface)
	require.NoError(ts.t, err)
	u, err := url.Parse(link)
	require.NoError(ts.t, err)
	return u.RequestURI()
}

func (ts *testServer) logCount(userID uint) int64 {
	ts.t.Helper()
	var n int64
	require.NoError(ts.t, ts.db.Model(&models.ActivityLog{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

// browser replays the session cookie across web requests.
type browser struct {
	ts     *testServer
	cookie string
}

func (ts *testServer) browser() *browser {
	return &browser{ts: ts}
}

func (b *browser) request(method, path string, form url.Values, referer string) *http.Response {
	b.ts.t.Helper()
	var reader io.Reader
	if form != nil {
		reader = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, reader)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if referer != "" {
		req.Header.Set(fiber.HeaderReferer, referer)
	}
	if b.cookie != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: b.cookie})
	}

	resp := b.ts.do(req)
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			b.cookie = c.Value
		}
	}
	return resp
}

func (b *browser) get(path string) *http.Response {
	return b.request(http.MethodGet, path, nil, "")
}

// page fetches a view-model and checks its view name.
func (b *browser) page(path, view string) map[string]any {
	b.ts.t.Helper()
	resp := b.get(path)
	body := decodeBody(b.ts.t, resp)
	require.Equal(b.ts.t, http.StatusOK, resp.StatusCode, body)
	require.Equal(b.ts.t, view, body["view"], body)
	return body
}

func flashOf(body map[string]any) map[string]any {
	flash, _ := body["flash"].(map[string]any)
	return flash
}

func assertRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, location, resp.Header.Get("Location"))
}

// signIn registers through the web form, marks the account verified and
// leaves the browser signed in.
func (ts *testServer) signIn(name, username, email string) (*browser, *models.User) {
	ts.t.Helper()
	b := ts.browser()
	resp := b.request(http.MethodPost, "/register", url.Values{
		"name":                  {name},
		"username":              {username},
		"email":                 {email},
		"password":              {"Secret123!"},
		"password_confirmation": {"Secret123!"},
	}, "")
	assertRedirect(ts.t, resp, "/email/verify")
	user := ts.user(email)
	ts.markVerified(user)
	return b, user
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := ts.api(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t)
	ts.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))

	resp := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "snapfeed_activity_stream_connections")
}

func TestServer_UnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.api(http.MethodGet, "/api/nope", "", nil)
	// the protected group owns the /api prefix
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
