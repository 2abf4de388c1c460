package booking

import (
	"errors"
	"fmt"
)

// Domain errors. Handlers translate these to HTTP status codes; nothing
// below this package inspects HTTP.
var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrSlotConflict        = errors.New("slot already booked")
	ErrCodeMismatch        = errors.New("verification code mismatch")
	ErrVerificationExpired = errors.New("verification window expired")
	ErrNotificationFailed  = errors.New("verification message could not be delivered")
)

func validationf(format string, args ...any) error {
	return wrapf(ErrValidation, format, args...)
}

func wrapf(sentinel error, format string, args ...any) error {
	return &domainError{sentinel: sentinel, msg: fmt.Sprintf(format, args...)}
}

type domainError struct {
	sentinel error
	msg      string
}

func (e *domainError) Error() string {
	if e.msg == "" {
		return e.sentinel.Error()
	}
	return e.sentinel.Error() + ": " + e.msg
}

func (e *domainError) Unwrap() error {
	return e.sentinel
}
