package service

import (
	"errors"
	"fmt"
)

// Lifecycle errors
var (
	ErrSurveyClosed      = errors.New("survey is not accepting responses")
	ErrNoPrizeConfigured = errors.New("survey has no prize configured")
)

// Integrity errors
var (
	ErrDuplicateParticipant = errors.New("participant already submitted a lottery entry for this survey")
	ErrAlreadyDrawn         = errors.New("draw already completed for this survey")
	ErrDrawTokenCollision   = errors.New("draw token already issued")
)

// Resource errors
var (
	ErrNotFound             = errors.New("not found")
	ErrNoEligibleCandidates = errors.New("no eligible lottery entries")
)

// Notification errors
var (
	ErrNotificationNotResendable = errors.New("notification is not in a resendable state")
	ErrNoContactPreference       = errors.New("winner has no notification preference")
	ErrUnsupportedContact        = errors.New("no transport for contact address")
)

// ErrValidation is the sentinel wrapped by every ValidationError
var ErrValidation = errors.New("validation failed")

// ErrEmptyHashInput is returned by the identity hasher for empty input
var ErrEmptyHashInput = errors.New("identity hash input must not be empty")

// ValidationError describes malformed submission input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
