package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("session not found")
	ErrSessionClosed       = errors.New("session is closed")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ValidationError is a user-correctable rejection of an answer.
type ValidationError struct {
	QuestionID string
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid answer for %s: %s", e.QuestionID, e.Message)
}

func IsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
