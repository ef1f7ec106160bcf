package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vxnlabs/siteverify/internal/config"
	"github.com/vxnlabs/siteverify/internal/observability/metrics"
	"github.com/vxnlabs/siteverify/internal/observability/tracing"
	"github.com/vxnlabs/siteverify/internal/server"
	"github.com/vxnlabs/siteverify/internal/verification/siteverify"
)

const serviceName = "siteverify"

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "siteverify-server",
		Short:         "siteverify server - CAPTCHA verification proxy",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Default behavior (no subcommand) is to serve
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe()
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCheckCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration",
		Long: `Load configuration from the environment and report problems.

The secret itself is never printed, only whether it is set.

EXAMPLES:
  RECAPTCHA_SECRET=... siteverify-server check
  CAPTCHA_PROVIDER=turnstile siteverify-server check
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runCheck(cmd.OutOrStdout(), cfg)
		},
	}
}

var errSecretMissing = errors.New("RECAPTCHA_SECRET is not set")

func runCheck(out io.Writer, cfg *config.Config) error {
	secret := "missing"
	if cfg.Captcha.Secret.Reveal() != "" {
		secret = "set"
	}
	timeout := "none"
	if cfg.Captcha.UpstreamTimeout > 0 {
		timeout = cfg.Captcha.UpstreamTimeout.String()
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "listen\t%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(w, "provider\t%s\n", cfg.Captcha.Provider)
	fmt.Fprintf(w, "verify url\t%s\n", cfg.Captcha.VerifyURL)
	fmt.Fprintf(w, "upstream timeout\t%s\n", timeout)
	fmt.Fprintf(w, "secret\t%s\n", secret)
	fmt.Fprintf(w, "rate limit\t%t (%d/min)\n", cfg.RateLimit.Enabled, cfg.RateLimit.RequestsPerMin)
	fmt.Fprintf(w, "client address\t%s\n", clientAddressSource(cfg))
	fmt.Fprintf(w, "metrics\t%t\n", cfg.Metrics.Enabled)
	w.Flush()

	if cfg.RateLimitKeyedOnPeer() {
		fmt.Fprintln(out, "warning: rate limit is keyed on the connection address; behind a proxy all visitors share one bucket (set TRUST_PROXY=true)")
	}

	if secret == "missing" {
		return errSecretMissing
	}
	return nil
}

func clientAddressSource(cfg *config.Config) string {
	if cfg.Proxy.TrustProxy {
		return "X-Forwarded-For from " + strings.Join(cfg.Proxy.TrustedProxies, ",")
	}
	return "connection peer"
}

// Server command

func runServe() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg)
	logger.Info("starting siteverify-server",
		"version", version,
		"provider", cfg.Captcha.Provider,
		"verify_url", cfg.Captcha.VerifyURL,
	)
	if cfg.Captcha.Secret.Reveal() == "" {
		// Still serve: requests get a 500 naming the missing variable
		logger.Warn("RECAPTCHA_SECRET is not set, verification requests will fail")
	}
	if cfg.RateLimitKeyedOnPeer() {
		logger.Warn("rate limit is keyed on the connection address, set TRUST_PROXY when running behind a proxy",
			"rpm", cfg.RateLimit.RequestsPerMin,
			"burst", cfg.RateLimit.BurstSize,
		)
	}

	metrics.Init(cfg.Metrics.Enabled, serviceName)

	shutdownTracing, err := tracing.Setup(context.Background(), cfg.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	authority := siteverify.New(cfg.Captcha.VerifyURL,
		siteverify.WithTimeout(cfg.Captcha.UpstreamTimeout),
		siteverify.WithProvider(cfg.Captcha.Provider),
	)

	// Create server
	srv := server.New(cfg, authority, logger)

	// Create HTTP server with configurable timeouts
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(srv.Handler(), serviceName),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler:           srv.MetricsHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	// Start servers in goroutines
	errChan := make(chan error, 2)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	if metricsServer != nil {
		go func() {
			logger.Info("metrics listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errChan <- fmt.Errorf("metrics: %w", err)
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig)
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Warn("metrics shutdown", "error", err)
		}
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With("service", serviceName)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
