package server

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vxnlabs/siteverify/internal/config"
	"github.com/vxnlabs/siteverify/internal/verification/siteverify"
)

const verifyPath = "/.netlify/functions/verify-recaptcha"

// fakeAuthority records every form it receives and replies with a fixed body.
type fakeAuthority struct {
	*httptest.Server

	mu    sync.Mutex
	hits  int
	forms []url.Values
}

func newFakeAuthority(t *testing.T, body string) *fakeAuthority {
	t.Helper()
	fa := &fakeAuthority{}
	fa.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		fa.mu.Lock()
		fa.hits++
		fa.forms = append(fa.forms, r.PostForm)
		fa.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(fa.Close)
	return fa
}

func (fa *fakeAuthority) Hits() int {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.hits
}

func (fa *fakeAuthority) LastForm() url.Values {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	if len(fa.forms) == 0 {
		return nil
	}
	return fa.forms[len(fa.forms)-1]
}

func testConfig(secret string) *config.Config {
	cfg := &config.Config{}
	cfg.Captcha.Secret = config.Secret(secret)
	cfg.Captcha.Provider = siteverify.DefaultProvider
	cfg.Security.FilterEnabled = true
	cfg.Security.MaxBodySizeKB = 64
	return cfg
}

func newTestServer(t *testing.T, secret, upstreamBody string) (*Server, *fakeAuthority) {
	t.Helper()
	fa := newFakeAuthority(t, upstreamBody)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(testConfig(secret), siteverify.New(fa.URL), logger), fa
}

func send(srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestServer_Verify_Success(t *testing.T) {
	srv, fa := newTestServer(t, "s3cret", `{"success":true,"hostname":"example.com","challenge_ts":"2024-01-01T00:00:00Z"}`)

	rec := send(srv, "POST", verifyPath, `{"token":"abc"}`, map[string]string{"X-Forwarded-For": "203.0.113.5"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assertCORS(t, rec)
	assert.JSONEq(t, `{"success":true,"errorCodes":[],"hostname":"example.com"}`, rec.Body.String())

	require.Equal(t, 1, fa.Hits())
	form := fa.LastForm()
	assert.Equal(t, "s3cret", form.Get("secret"))
	assert.Equal(t, "abc", form.Get("response"))
	assert.Equal(t, "203.0.113.5", form.Get("remoteip"))
}

func TestServer_Verify_VersionedPath(t *testing.T) {
	srv, fa := newTestServer(t, "s3cret", `{"success":true}`)

	rec := send(srv, "POST", "/api/v1/verify-recaptcha", `{"token":"abc"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"errorCodes":[],"hostname":null}`, rec.Body.String())
	assert.Equal(t, 1, fa.Hits())
}

func TestServer_Verify_Rejected(t *testing.T) {
	srv, _ := newTestServer(t, "s3cret", `{"success":false,"error-codes":["timeout-or-duplicate"]}`)

	rec := send(srv, "POST", verifyPath, `{"token":"abc"}`, map[string]string{"Client-IP": "198.51.100.2"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"errorCodes":["timeout-or-duplicate"],"hostname":null}`, rec.Body.String())
}

func TestServer_Verify_MissingToken(t *testing.T) {
	srv, fa := newTestServer(t, "s3cret", `{"success":true}`)

	for _, body := range []string{`{}`, `{"token":""}`, ``, `[]`, `"x"`, `5`, `null`} {
		rec := send(srv, "POST", verifyPath, body, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assertCORS(t, rec)
		assert.JSONEq(t, `{"success":false,"error":"Missing token"}`, rec.Body.String(), body)
	}
	assert.Equal(t, 0, fa.Hits())
}

func TestServer_Verify_MethodNotAllowed(t *testing.T) {
	srv, fa := newTestServer(t, "s3cret", `{"success":true}`)

	rec := send(srv, "GET", verifyPath, "", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assertCORS(t, rec)
	assert.JSONEq(t, `{"success":false,"error":"Method not allowed"}`, rec.Body.String())
	assert.Equal(t, 0, fa.Hits())
}

func TestServer_Verify_Preflight(t *testing.T) {
	srv, fa := newTestServer(t, "s3cret", `{"success":true}`)

	rec := send(srv, "OPTIONS", verifyPath, "", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assertCORS(t, rec)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, 0, fa.Hits())
}

func TestServer_Verify_MissingSecret(t *testing.T) {
	srv, fa := newTestServer(t, "", `{"success":true}`)

	rec := send(srv, "POST", verifyPath, `{"token":"abc"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assertCORS(t, rec)
	assert.JSONEq(t, `{"success":false,"error":"Missing RECAPTCHA_SECRET"}`, rec.Body.String())
	assert.Equal(t, 0, fa.Hits())
}

func TestServer_Verify_MalformedUpstream(t *testing.T) {
	srv, fa := newTestServer(t, "s3cret", `<html>bad gateway</html>`)

	rec := send(srv, "POST", verifyPath, `{"token":"abc"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"errorCodes":[],"hostname":null}`, rec.Body.String())
	assert.Equal(t, 1, fa.Hits())
}

func TestServer_Verify_UpstreamUnreachable(t *testing.T) {
	fa := newFakeAuthority(t, `{}`)
	endpoint := fa.URL
	fa.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(testConfig("s3cret"), siteverify.New(endpoint), logger)

	rec := send(srv, "POST", verifyPath, `{"token":"abc"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"errorCodes":[],"hostname":null}`, rec.Body.String())
}

func TestServer_Verify_SecretNeverEchoed(t *testing.T) {
	srv, _ := newTestServer(t, "do-not-leak", `{"success":false,"error-codes":["invalid-input-secret"]}`)

	rec := send(srv, "POST", verifyPath, `{"token":"abc"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "do-not-leak")
}

func TestServer_BlockedPathKeepsCORS(t *testing.T) {
	srv, _ := newTestServer(t, "s3cret", `{"success":true}`)

	rec := send(srv, "GET", "/wp-admin/setup.php", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assertCORS(t, rec)
	assert.JSONEq(t, `{"success":false,"error":"Invalid request"}`, rec.Body.String())
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, "s3cret", `{}`)

	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		rec := send(srv, "GET", path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String(), path)
	}
}

func TestServer_Ready_MissingSecret(t *testing.T) {
	srv, _ := newTestServer(t, "", `{}`)

	rec := send(srv, "GET", "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = send(srv, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, "s3cret", `{}`)

	rec := send(srv, "POST", "/api/v1/unknown", `{}`, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Not found"}`, rec.Body.String())
}

func TestServer_CustomAllowOrigin(t *testing.T) {
	fa := newFakeAuthority(t, `{"success":true}`)
	cfg := testConfig("s3cret")
	cfg.CORS.AllowOrigin = "https://example.com"

	srv := New(cfg, siteverify.New(fa.URL), slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := send(srv, "POST", verifyPath, `{"token":"abc"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
