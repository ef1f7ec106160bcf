package domain

import (
	"context"
	"errors"
	"log/slog"
)

// Common errors returned by the verification service.
var (
	ErrMissingToken  = errors.New("missing token")
	ErrMissingSecret = errors.New("missing secret")
)

// Authority performs one verification call against the external service.
type Authority interface {
	Verify(ctx context.Context, secret, token, remoteIP string) (Outcome, error)
}

// SecretFunc returns the current secret, or "" when it is not configured.
type SecretFunc func() string

type service struct {
	authority Authority
	secret    SecretFunc
	logger    *slog.Logger
}

// NewService creates a new verification service.
func NewService(authority Authority, secret SecretFunc, logger *slog.Logger) *service {
	return &service{
		authority: authority,
		secret:    secret,
		logger:    logger,
	}
}

// Ready reports whether the service can reach the authority at all.
func (s *service) Ready() error {
	if s.secret() == "" {
		return ErrMissingSecret
	}
	return nil
}

// Verify forwards the token to the authority exactly once and normalizes
// whatever comes back. Authority failures are folded into an unsuccessful
// result; only missing input or configuration are returned as errors.
func (s *service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	secret := s.secret()
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if req.Token == "" {
		return nil, ErrMissingToken
	}

	// The caller going away must not abort an attempt already sent upstream.
	outcome, err := s.authority.Verify(context.WithoutCancel(ctx), secret, req.Token, req.ClientAddress)
	if err != nil {
		s.logger.Warn("verification authority call failed", "error", err)
		outcome = nil
	}

	return Normalize(outcome), nil
}
