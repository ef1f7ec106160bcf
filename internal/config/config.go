package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vxnlabs/siteverify/internal/verification/siteverify"
)

// Config holds all configuration for the server
type Config struct {
	Server    ServerConfig
	Captcha   CaptchaConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Proxy     ProxyConfig
	CORS      CORSConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int    `env:"PORT" envDefault:"8080"`
	Host         string `env:"HOST" envDefault:"0.0.0.0"`
	ReadTimeout  int    `env:"SERVER_READ_TIMEOUT" envDefault:"30"`  // seconds
	WriteTimeout int    `env:"SERVER_WRITE_TIMEOUT" envDefault:"60"` // seconds
	IdleTimeout  int    `env:"SERVER_IDLE_TIMEOUT" envDefault:"120"` // seconds
}

// CaptchaConfig holds the verification authority settings
type CaptchaConfig struct {
	Secret    Secret `env:"RECAPTCHA_SECRET"`
	Provider  string `env:"CAPTCHA_PROVIDER" envDefault:"recaptcha"`
	VerifyURL string `env:"CAPTCHA_VERIFY_URL"`
	// Zero leaves the outbound call bounded only by the transport defaults.
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"0s"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"` // "text" or "json"
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RequestsPerMin int  `env:"RATE_LIMIT_RPM" envDefault:"60"`
	BurstSize      int  `env:"RATE_LIMIT_BURST" envDefault:"10"`
	CleanupMinutes int  `env:"RATE_LIMIT_CLEANUP_MINUTES" envDefault:"10"`
}

// SecurityConfig holds security filter settings
type SecurityConfig struct {
	FilterEnabled bool `env:"SECURITY_FILTER_ENABLED" envDefault:"true"`
	MaxBodySizeKB int  `env:"SECURITY_MAX_BODY_SIZE_KB" envDefault:"64"`
}

// ProxyConfig holds trusted proxy settings for X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy     bool     `env:"TRUST_PROXY" envDefault:"false"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:"," envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16"` // CIDR notation
}

// CORSConfig holds cross-origin settings for the browser-facing endpoints
type CORSConfig struct {
	AllowOrigin string `env:"CORS_ALLOW_ORIGIN" envDefault:"*"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"false"`
	Port    int  `env:"METRICS_PORT" envDefault:"9090"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
	Endpoint string `env:"OTEL_EXPORTER_ENDPOINT"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// An explicit URL wins over the provider preset
	if cfg.Captcha.VerifyURL == "" {
		endpoint, ok := siteverify.Endpoint(cfg.Captcha.Provider)
		if !ok {
			return nil, fmt.Errorf("unknown captcha provider %q", cfg.Captcha.Provider)
		}
		cfg.Captcha.VerifyURL = endpoint
	}

	return &cfg, nil
}

// RateLimitKeyedOnPeer reports whether rate limiting buckets requests by the
// TCP peer address. Behind an edge proxy that peer is the proxy itself, so
// every visitor shares one bucket until TRUST_PROXY is set.
func (c *Config) RateLimitKeyedOnPeer() bool {
	return c.RateLimit.Enabled && !c.Proxy.TrustProxy
}

// Secret is a credential that must never reach logs or responses.
type Secret string

// String hides the value from fmt verbs.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// LogValue hides the value from slog.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

// Reveal returns the raw credential for the outbound call.
func (s Secret) Reveal() string {
	return string(s)
}
