// Package server provides the HTTP server setup and wiring.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vxnlabs/siteverify/internal/config"
	"github.com/vxnlabs/siteverify/internal/middleware/cors"
	"github.com/vxnlabs/siteverify/internal/middleware/logging"
	"github.com/vxnlabs/siteverify/internal/middleware/ratelimit"
	"github.com/vxnlabs/siteverify/internal/middleware/realip"
	"github.com/vxnlabs/siteverify/internal/middleware/security"
	"github.com/vxnlabs/siteverify/internal/observability/metrics"
	verificationDomain "github.com/vxnlabs/siteverify/internal/verification/domain"
	verificationTransport "github.com/vxnlabs/siteverify/internal/verification/transport"
)

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	router *chi.Mux
	cors   cors.Config

	verificationSvc verificationTransport.Service
}

// New creates a new server. The authority is the outbound verification
// client; tests substitute one pointed at a fake authority.
func New(cfg *config.Config, authority verificationDomain.Authority, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		router: chi.NewRouter(),
		cors:   cors.Permissive,
	}
	if cfg.CORS.AllowOrigin != "" {
		s.cors.AllowOrigin = cfg.CORS.AllowOrigin
	}

	// The secret is read on every call so a missing value is reported per request
	verifyImpl := verificationDomain.NewService(authority, cfg.Captcha.Secret.Reveal, logger)
	s.verificationSvc = verificationDomain.LoggingMiddleware(logger)(verifyImpl)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

func (s *Server) setupMiddleware() {
	// Order matters! Security middleware runs early to block malicious requests.

	// 1. Real IP extraction (must be first to set client IP for other middleware)
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	// 2. CORS, so that rejections below are still readable cross-origin
	s.router.Use(cors.Middleware(s.cors))

	// 3. Security filter (blocks malicious patterns, bypasses health checks)
	s.router.Use(security.FilterMiddleware(s.cfg.Security.FilterEnabled))

	// 4. Body size limit
	s.router.Use(security.MaxBodySizeMiddleware(s.cfg.Security.MaxBodySizeKB))

	// 5. Rate limiting (bypasses health checks and pre-flights)
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	// 6. Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)

	verificationHandler := verificationTransport.NewHandler(s.verificationSvc, s.logger, s.cors)
	verificationHandler.RegisterRoutes(s.router)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports 503 while the secret is missing so orchestrators can
// catch a broken deployment before routing traffic to it.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.verificationSvc.Ready(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "misconfigured"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
