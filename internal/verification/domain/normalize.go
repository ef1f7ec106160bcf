package domain

import "math"

// Normalize converts an untrusted authority outcome into a VerifyResult.
// It never fails: missing or malformed fields fall back to success=false,
// an empty error code list and a null hostname. A nil outcome (transport
// or parse failure) yields the same failure shape.
func Normalize(outcome Outcome) *VerifyResult {
	result := &VerifyResult{
		Success:    truthy(outcome["success"]),
		ErrorCodes: errorCodes(outcome["error-codes"]),
	}
	if host, ok := outcome["hostname"].(string); ok && host != "" {
		result.Hostname = &host
	}
	return result
}

// truthy follows JSON-value truthiness: false, 0, NaN, "" and null are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	default:
		return true
	}
}

func errorCodes(v any) []string {
	codes := []string{}
	switch t := v.(type) {
	case string:
		if t != "" {
			codes = append(codes, t)
		}
	case []any:
		for _, item := range t {
			if code, ok := item.(string); ok {
				codes = append(codes, code)
			}
		}
	}
	return codes
}
