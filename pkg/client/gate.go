package client

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/vxnlabs/siteverify/internal/validation"
)

// ResponseField is the hidden field that carries the token to the form backend.
const ResponseField = "g-recaptcha-response"

// RequiredFields are checked when present on a form, in this order.
var RequiredFields = []string{"name", "email", "company", "team_size", "message"}

// ErrBusy is returned when a submission is already waiting on the proxy.
var ErrBusy = errors.New("submission already in progress")

// Widget is the challenge widget the visitor solved.
type Widget interface {
	// Response returns the current token, or "" if unsolved.
	Response() string
	// Reset clears the widget so a fresh token can be produced.
	Reset()
}

// Form is a contact form submission. A field that is absent from Fields is
// not validated.
type Form struct {
	Fields               map[string]string
	RequiresVerification bool
}

// Submission describes what the gate decided.
type Submission struct {
	// Proceed is true when the form may be sent on to its backend.
	Proceed bool
	// FieldErrors maps field name to message for fields that failed validation.
	FieldErrors map[string]string
	// Summary counts missing required fields, e.g. "2 required fields are missing."
	Summary string
	// CaptchaMessage explains why verification blocked the submission.
	CaptchaMessage string
}

// Gate holds a form back until its token has been verified by the proxy.
type Gate struct {
	client *Client
	busy   atomic.Bool
}

// NewGate creates a gate that verifies tokens through c.
func NewGate(c *Client) *Gate {
	return &Gate{client: c}
}

// Busy reports whether a verification is in flight.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}

// Submit validates form and, when it requires verification, checks the
// widget's token with the proxy. On success the token is copied into the
// ResponseField of form.Fields. The widget is reset after a rejection.
func (g *Gate) Submit(ctx context.Context, form *Form, widget Widget) (*Submission, error) {
	if sub := validateForm(form); sub != nil {
		return sub, nil
	}

	if !form.RequiresVerification {
		return &Submission{Proceed: true}, nil
	}

	token := ""
	if widget != nil {
		token = widget.Response()
	}
	if token == "" {
		return &Submission{CaptchaMessage: MissingTokenMessage}, nil
	}

	if !g.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer g.busy.Store(false)

	result, err := g.client.Verify(ctx, token)
	if err != nil {
		return &Submission{CaptchaMessage: UnavailableMessage}, nil
	}

	if !result.Success {
		widget.Reset()
		return &Submission{CaptchaMessage: Message(result.ErrorCodes)}, nil
	}

	if form.Fields == nil {
		form.Fields = make(map[string]string)
	}
	form.Fields[ResponseField] = token
	return &Submission{Proceed: true}, nil
}

// validateForm returns a blocking Submission, or nil if every present
// required field is valid.
func validateForm(form *Form) *Submission {
	fieldErrors := make(map[string]string)
	missing := 0
	for _, name := range RequiredFields {
		value, ok := form.Fields[name]
		if !ok {
			continue
		}
		if validation.ValidateRequired(name, value) != nil {
			missing++
		}
		var fe *validation.FieldError
		if err := validation.ValidateField(name, value); errors.As(err, &fe) {
			fieldErrors[name] = fe.Message
		}
	}

	if len(fieldErrors) == 0 {
		return nil
	}
	return &Submission{
		FieldErrors: fieldErrors,
		Summary:     validation.MissingSummary(missing),
	}
}
