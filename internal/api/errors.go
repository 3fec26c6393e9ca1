package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork wraps transport failures: the request never got an HTTP response
	ErrNetwork = errors.New("could not reach the server")

	// ErrMissingToken is returned when a 2xx login response carries no token
	ErrMissingToken = errors.New("response did not contain a token")

	// ErrInvalidInput is returned when input fails validation before sending
	ErrInvalidInput = errors.New("invalid input")
)

// StatusError is a non-2xx response from the backend
type StatusError struct {
	StatusCode int
	Message    string // from a JSON {"message": ...} body, if any
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsUnauthorized reports whether err is a 401 response
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// IsNetwork reports whether err is a transport failure
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
