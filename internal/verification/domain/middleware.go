package domain

import (
	"context"
	"log/slog"
	"time"
)

// loggingService is the interface required for logging middleware.
type loggingService interface {
	Ready() error
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

// LoggingMiddleware returns a service middleware that logs all operations.
// Tokens are logged by length only.
func LoggingMiddleware(logger *slog.Logger) func(loggingService) *loggingMiddleware {
	return func(next loggingService) *loggingMiddleware {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   loggingService
	logger *slog.Logger
}

func (m *loggingMiddleware) Ready() error {
	err := m.next.Ready()
	if err != nil {
		m.logger.Error("Ready", "error", err)
	}
	return err
}

func (m *loggingMiddleware) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	start := time.Now()
	result, err := m.next.Verify(ctx, req)

	attrs := []any{
		"token_length", len(req.Token),
		"client_address", req.ClientAddress,
		"duration", time.Since(start),
		"error", err,
	}
	if result != nil {
		attrs = append(attrs, "success", result.Success, "error_codes", result.ErrorCodes)
		if result.Hostname != nil {
			attrs = append(attrs, "hostname", *result.Hostname)
		}
	}
	m.logger.Info("Verify", attrs...)

	return result, err
}
