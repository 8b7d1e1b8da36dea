// Package participant turns free-text input into a validated model.Participants.
package participant

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"catchup/internal/model"
)

// ErrInvalidInput is matched by every validation failure.
var ErrInvalidInput = errors.New("invalid input")

// emailShape accepts a non-empty local part, '@', and a domain containing a dot.
var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// InvalidInputError reports which identifier was rejected and why.
type InvalidInputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid input: %s is %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid input: %s %q is %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

type pairInput struct {
	A string `validate:"required,emailshape"`
	B string `validate:"required,emailshape"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Normalize trims surrounding whitespace and lower-cases an identifier.
// Invalid UTF-8 is returned unchanged so that validation still rejects it.
func Normalize(s string) string {
	if !utf8.ValidString(s) {
		return s
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// Parse normalizes and validates both identifiers. Nothing downstream runs
// unless both pass.
func Parse(a, b string) (model.Participants, error) {
	// Checked before Normalize: strings.ToLower rewrites invalid bytes to U+FFFD.
	for _, f := range []struct{ name, value string }{{"A", a}, {"B", b}} {
		if !utf8.ValidString(f.value) {
			return model.Participants{}, &InvalidInputError{Field: f.name, Reason: "not valid UTF-8"}
		}
	}

	in := pairInput{A: Normalize(a), B: Normalize(b)}

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return model.Participants{}, fmt.Errorf("participant: validate: %w", err)
		}
		fe := verrs[0]
		reason := "not an email address"
		if fe.Tag() == "required" {
			reason = "empty"
		}
		return model.Participants{}, &InvalidInputError{
			Field:  fe.Field(),
			Value:  fe.Value().(string),
			Reason: reason,
		}
	}

	return model.Participants{A: in.A, B: in.B}, nil
}
