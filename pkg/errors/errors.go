package errors

import "errors"

// Sentinels for domain errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation error")
	ErrUnavailable   = errors.New("service unavailable")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrUnauthorized  = errors.New("unauthorized")

	// ErrConfiguration marks a run that cannot start because required send
	// credentials are missing. Nothing has been sent when it is returned.
	ErrConfiguration = errors.New("configuration error")

	// ErrSendFailed marks a single recipient failure. Campaign runs count it
	// and move on.
	ErrSendFailed = errors.New("send failed")
)

// Is reports whether err is one of the sentinels.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As re-exported so callers need a single errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Wrap adds context to an error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Join(errors.New(message), err)
}
