// ABOUTME: Error types returned by the command processor
// ABOUTME: ValidationError carries a message meant for the person who issued the command

package command

import "errors"

// ValidationError reports malformed administrative input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// IsValidationError reports whether err is, or wraps, a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
