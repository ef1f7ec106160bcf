//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"

	"github.com/vxnlabs/siteverify/internal/config"
	"github.com/vxnlabs/siteverify/internal/server"
	"github.com/vxnlabs/siteverify/internal/verification/siteverify"
)

// TestContext holds shared test infrastructure
type TestContext struct {
	Authority  *FakeAuthority
	TestServer *httptest.Server
}

// FakeAuthority answers siteverify calls from a token-to-reply table.
// Unknown tokens are rejected with invalid-input-response.
type FakeAuthority struct {
	*httptest.Server

	mu      sync.Mutex
	replies map[string]string
	hits    map[string]int
	remote  map[string]string
}

func newFakeAuthority() *FakeAuthority {
	fa := &FakeAuthority{
		replies: map[string]string{
			"good-token":  `{"success":true,"challenge_ts":"2024-01-01T00:00:00Z","hostname":"example.com"}`,
			"stale-token": `{"success":false,"error-codes":["timeout-or-duplicate"]}`,
			"html-token":  `<html>upstream error</html>`,
		},
		hits:   make(map[string]int),
		remote: make(map[string]string),
	}
	fa.Server = httptest.NewServer(http.HandlerFunc(fa.serveHTTP))
	return fa
}

func (fa *FakeAuthority) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	token := r.PostForm.Get("response")

	fa.mu.Lock()
	fa.hits[token]++
	fa.remote[token] = r.PostForm.Get("remoteip")
	reply, ok := fa.replies[token]
	fa.mu.Unlock()

	if r.PostForm.Get("secret") != "e2e-secret" {
		reply = `{"success":false,"error-codes":["invalid-input-secret"]}`
	} else if !ok {
		reply = `{"success":false,"error-codes":["invalid-input-response"]}`
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, reply)
}

// Hits returns how many times token reached the authority.
func (fa *FakeAuthority) Hits(token string) int {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.hits[token]
}

// RemoteIP returns the remoteip sent with the last call for token.
func (fa *FakeAuthority) RemoteIP(token string) string {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.remote[token]
}

// startServerE starts the full server stack against the given authority
func startServerE(authorityURL, secret string) (*httptest.Server, error) {
	if authorityURL == "" {
		return nil, fmt.Errorf("authority URL is required")
	}

	cfg := &config.Config{}
	cfg.Captcha.Secret = config.Secret(secret)
	cfg.Captcha.Provider = siteverify.DefaultProvider
	cfg.Captcha.VerifyURL = authorityURL
	cfg.Security.FilterEnabled = true
	cfg.Security.MaxBodySizeKB = 64
	cfg.RateLimit.Enabled = false

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	srv := server.New(cfg, siteverify.New(cfg.Captcha.VerifyURL), logger)
	return httptest.NewServer(srv.Handler()), nil
}

// decodeJSON decodes a response body into a generic map
func decodeJSON(resp *http.Response) (map[string]any, error) {
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}
