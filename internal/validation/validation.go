// Package validation provides input validation for contact form fields.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// Messages shown next to an invalid field.
const (
	MsgRequired     = "This field is required."
	MsgInvalidEmail = "Enter a valid email address."
)

// Something before and after a single @, and a dot in the domain part
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldError reports why a single field was rejected.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateRequired rejects values that are empty after trimming.
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: field, Message: MsgRequired}
	}
	return nil
}

// ValidateEmail checks the address shape only; deliverability is not checked.
func ValidateEmail(value string) error {
	if !emailPattern.MatchString(strings.TrimSpace(value)) {
		return &FieldError{Field: "email", Message: MsgInvalidEmail}
	}
	return nil
}

// ValidateField applies the required check, plus the email check for the
// field named "email".
func ValidateField(field, value string) error {
	if err := ValidateRequired(field, value); err != nil {
		return err
	}
	if field == "email" {
		return ValidateEmail(value)
	}
	return nil
}

// MissingSummary describes how many required fields are still empty.
// It returns "" when count is zero.
func MissingSummary(count int) string {
	switch {
	case count <= 0:
		return ""
	case count == 1:
		return "1 required field is missing."
	default:
		return fmt.Sprintf("%d required fields are missing.", count)
	}
}
