package client

// DefaultFailureMessage is shown when the authority gave no usable code.
const DefaultFailureMessage = "reCAPTCHA verification failed. Please try again."

// UnavailableMessage is shown when the proxy could not be reached.
const UnavailableMessage = "Verification service unavailable. Please retry in a moment."

// MissingTokenMessage is shown when the widget has not been completed.
const MissingTokenMessage = "Please complete the reCAPTCHA."

var errorMessages = map[string]string{
	"missing-input-secret":   "Server is missing the reCAPTCHA secret. Contact site owner.",
	"invalid-input-secret":   "Server reCAPTCHA secret is invalid. Contact site owner.",
	"missing-input-response": MissingTokenMessage,
	"invalid-input-response": "Invalid reCAPTCHA response. Please tick the checkbox again.",
	"bad-request":            "Bad verification request. Please retry.",
	"timeout-or-duplicate":   "reCAPTCHA expired or already used. Please check the box again.",
}

// Message maps the first error code to a human readable message.
func Message(codes []string) string {
	if len(codes) == 0 {
		return DefaultFailureMessage
	}
	if msg, ok := errorMessages[codes[0]]; ok {
		return msg
	}
	return DefaultFailureMessage
}
