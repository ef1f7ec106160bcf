package metrics

import "time"

// Verification request results.
const (
	ResultSuccess          = "success"
	ResultRejected         = "rejected"
	ResultBadRequest       = "bad_request"
	ResultMethodNotAllowed = "method_not_allowed"
	ResultMisconfigured    = "misconfigured"
	ResultError            = "error"
)

// VerificationRequest records a verification request.
func VerificationRequest(result string) {
	if !enabled {
		return
	}
	verificationTotal.WithLabelValues(result).Inc()
}

// UpstreamRequest records one call to the verification authority.
// outcome is "ok", "transport_error" or "malformed".
func UpstreamRequest(provider, outcome string, d time.Duration) {
	if !enabled {
		return
	}
	upstreamDuration.WithLabelValues(provider, outcome).Observe(d.Seconds())
}
