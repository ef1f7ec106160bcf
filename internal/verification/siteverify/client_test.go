package siteverify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestEndpoint(t *testing.T) {
	tests := []struct {
		provider string
		want     string
		ok       bool
	}{
		{"", "https://www.google.com/recaptcha/api/siteverify", true},
		{"recaptcha", "https://www.google.com/recaptcha/api/siteverify", true},
		{"ReCaptcha", "https://www.google.com/recaptcha/api/siteverify", true},
		{"hcaptcha", "https://api.hcaptcha.com/siteverify", true},
		{"turnstile", "https://challenges.cloudflare.com/turnstile/v0/siteverify", true},
		{"friendlycaptcha", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			got, ok := Endpoint(tt.provider)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_Verify_PostsForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "s3cret", r.PostForm.Get("secret"))
		assert.Equal(t, "tok", r.PostForm.Get("response"))
		assert.Equal(t, "203.0.113.9", r.PostForm.Get("remoteip"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"hostname":"example.com","challenge_ts":"2024-01-01T00:00:00Z"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	outcome, err := client.Verify(context.Background(), "s3cret", "tok", "203.0.113.9")
	require.NoError(t, err)

	assert.Equal(t, true, outcome["success"])
	assert.Equal(t, "example.com", outcome["hostname"])
}

func TestClient_Verify_OmitsEmptyRemoteIP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		_, present := r.PostForm["remoteip"]
		assert.False(t, present)
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	defer server.Close()

	outcome, err := New(server.URL).Verify(context.Background(), "s", "t", "")
	require.NoError(t, err)
	assert.Equal(t, []any{"invalid-input-response"}, outcome["error-codes"])
}

func TestClient_Verify_IgnoresStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error-codes":["bad-request"]}`))
	}))
	defer server.Close()

	outcome, err := New(server.URL).Verify(context.Background(), "s", "t", "")
	require.NoError(t, err)
	assert.Equal(t, false, outcome["success"])
}

func TestClient_Verify_Malformed(t *testing.T) {
	bodies := []string{"<html>oops</html>", "", "null", `["success"]`, `{"success":tru`}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer server.Close()

			outcome, err := New(server.URL).Verify(context.Background(), "s", "t", "")
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.Nil(t, outcome)
		})
	}
}

func TestClient_Verify_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	_, err := New(endpoint).Verify(context.Background(), "s", "t", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_Verify_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := New(server.URL, WithTimeout(50*time.Millisecond), WithProvider("hcaptcha"))
	_, err := client.Verify(context.Background(), "s", "t", "")
	assert.Error(t, err)
}

func TestClient_WithHTTPClient(t *testing.T) {
	custom := &http.Client{}
	client := New("http://example.invalid", WithHTTPClient(custom))
	assert.Same(t, custom, client.httpClient)
}

func TestClient_WithTimeout_LeavesSharedClientAlone(t *testing.T) {
	shared := &http.Client{}
	client := New("http://example.invalid", WithHTTPClient(shared), WithTimeout(2*time.Second))

	assert.Zero(t, shared.Timeout)
	assert.NotSame(t, shared, client.httpClient)
	assert.Equal(t, 2*time.Second, client.httpClient.Timeout)
}

func TestClient_WithTimeout_OptionOrder(t *testing.T) {
	shared := &http.Client{}
	client := New("http://example.invalid", WithTimeout(time.Second), WithHTTPClient(shared))

	assert.Zero(t, shared.Timeout)
	assert.Equal(t, time.Second, client.httpClient.Timeout)
}

func TestClient_WithTimeout_NilHTTPClient(t *testing.T) {
	var client *Client
	require.NotPanics(t, func() {
		client = New("http://example.invalid", WithHTTPClient(nil), WithTimeout(time.Second))
	})
	require.NotNil(t, client.httpClient)
	assert.Equal(t, time.Second, client.httpClient.Timeout)
}

func TestClient_WithTimeout_ZeroKeepsClient(t *testing.T) {
	shared := &http.Client{}
	client := New("http://example.invalid", WithHTTPClient(shared), WithTimeout(0))
	assert.Same(t, shared, client.httpClient)
}

func TestClient_Verify_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := New(server.URL, WithProvider("turnstile")).Verify(context.Background(), "top-secret", "t", "")
	require.ErrorIs(t, err, ErrMalformedResponse)

	var span sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.Name() == "siteverify.Verify" {
			span = s
		}
	}
	require.NotNil(t, span)

	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Contains(t, span.Attributes(), attribute.String("captcha.provider", "turnstile"))
	assert.Contains(t, span.Attributes(), attribute.String("captcha.outcome", "malformed"))
	for _, kv := range span.Attributes() {
		assert.NotContains(t, kv.Value.Emit(), "top-secret")
	}
}
