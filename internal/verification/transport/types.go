// Package transport provides HTTP request/response types for the verification domain.
package transport

import "github.com/vxnlabs/siteverify/internal/verification/domain"

// VerifyRequest is the HTTP request body for verifying a token.
// Token is decoded loosely so that a non-string value counts as missing
// instead of failing the whole decode.
type VerifyRequest struct {
	Token any `json:"token"`
}

// ToDomain converts VerifyRequest to domain.VerifyRequest.
func (r VerifyRequest) ToDomain(clientAddress string) domain.VerifyRequest {
	token, _ := r.Token.(string)
	return domain.VerifyRequest{
		Token:         token,
		ClientAddress: clientAddress,
	}
}

// ErrorResponse is the body of every non-200 reply.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Error messages exposed to callers.
const (
	msgMissingToken     = "Missing token"
	msgMethodNotAllowed = "Method not allowed"
	msgMissingSecret    = "Missing RECAPTCHA_SECRET"
	msgBodyTooLarge     = "Request body too large"
	msgVerifyFailed     = "Verification failed"
)
