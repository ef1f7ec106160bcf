// Package transport provides HTTP handlers for the verification domain.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vxnlabs/siteverify/internal/middleware/cors"
	"github.com/vxnlabs/siteverify/internal/observability/metrics"
	"github.com/vxnlabs/siteverify/internal/verification/domain"
)

// Paths the verify handler is mounted on. The first keeps existing browser
// code that posts to the serverless function path working unchanged.
var Paths = []string{
	"/.netlify/functions/verify-recaptcha",
	"/api/v1/verify-recaptcha",
}

// Service defines the verification service interface for HTTP transport.
type Service interface {
	Ready() error
	Verify(ctx context.Context, req domain.VerifyRequest) (*domain.VerifyResult, error)
}

// Handler handles HTTP requests for verification.
type Handler struct {
	svc    Service
	logger *slog.Logger
	cors   cors.Config
}

// NewHandler creates a new verification HTTP handler.
func NewHandler(svc Service, logger *slog.Logger, corsCfg cors.Config) *Handler {
	return &Handler{svc: svc, logger: logger, cors: corsCfg}
}

// RegisterRoutes registers the verification routes on a chi router.
// Every method is routed to the handler so that it, not chi, owns the
// 405 body.
func (h *Handler) RegisterRoutes(r chi.Router) {
	for _, path := range Paths {
		r.HandleFunc(path, h.handleVerify)
	}
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("verify handler panic", "panic", rec)
			metrics.VerificationRequest(metrics.ResultError)
			writeError(w, http.StatusInternalServerError, msgVerifyFailed)
		}
	}()

	cors.SetHeaders(w, h.cors)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		metrics.VerificationRequest(metrics.ResultMethodNotAllowed)
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	if err := h.svc.Ready(); err != nil {
		metrics.VerificationRequest(metrics.ResultMisconfigured)
		writeError(w, http.StatusInternalServerError, msgMissingSecret)
		return
	}

	req, err := decodeRequest(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			metrics.VerificationRequest(metrics.ResultBadRequest)
			writeError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		h.logger.Warn("invalid verify request body", "error", err)
		metrics.VerificationRequest(metrics.ResultError)
		writeError(w, http.StatusInternalServerError, msgVerifyFailed)
		return
	}

	result, err := h.svc.Verify(r.Context(), req.ToDomain(clientAddress(r)))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingToken):
			metrics.VerificationRequest(metrics.ResultBadRequest)
			writeError(w, http.StatusBadRequest, msgMissingToken)
		case errors.Is(err, domain.ErrMissingSecret):
			metrics.VerificationRequest(metrics.ResultMisconfigured)
			writeError(w, http.StatusInternalServerError, msgMissingSecret)
		default:
			h.logger.Error("verification failed", "error", err)
			metrics.VerificationRequest(metrics.ResultError)
			writeError(w, http.StatusInternalServerError, msgVerifyFailed)
		}
		return
	}

	if result.Success {
		metrics.VerificationRequest(metrics.ResultSuccess)
	} else {
		metrics.VerificationRequest(metrics.ResultRejected)
	}
	writeJSON(w, http.StatusOK, result)
}

// decodeRequest reads the JSON body. An empty body, or well-formed JSON that
// is not an object, carries no token and decodes to the zero request.
func decodeRequest(r *http.Request) (VerifyRequest, error) {
	var req VerifyRequest

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return req, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return req, err
	}
	if obj, ok := payload.(map[string]any); ok {
		req.Token = obj["token"]
	}
	return req, nil
}

// clientAddress returns the originating address as reported by the edge,
// verbatim. It is informational only and is not used for trust decisions.
func clientAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.Header.Get("Client-IP")
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: message})
}
