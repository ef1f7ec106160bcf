// Package domain contains the business logic for CAPTCHA token verification.
package domain

// VerifyRequest is a single verification attempt.
type VerifyRequest struct {
	Token string
	// ClientAddress is forwarded to the authority as remoteip; informational only.
	ClientAddress string
}

// VerifyResult is the normalized, safe-to-expose verification result.
type VerifyResult struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"errorCodes"`
	Hostname   *string  `json:"hostname"`
}

// Outcome is the untrusted JSON object returned by the verification authority.
type Outcome map[string]any
