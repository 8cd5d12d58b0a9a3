package gateway

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when a protected call is rejected with 401.
// By the time a caller sees it the credential has already been cleared
// and the AuthLost hook fired; treat it as "session over", not as a
// condition to retry.
var ErrUnauthorized = errors.New("authorization rejected")

// APIError is a non-401 backend rejection: validation failures (4xx with
// a server message) and server faults (5xx).
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error %d", e.Status)
	}
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is an authorization rejection on a
// protected call.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsValidation reports whether err is a 4xx rejection carrying a server
// message (bad login, bad registration, malformed input).
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}

// IsServerFault reports whether err is a 5xx backend failure.
func IsServerFault(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 500
}

// UserMessage extracts a short human-readable message from err, suitable
// for display next to the prompt input. Validation errors surface the
// server's message; everything else gets a generic fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
