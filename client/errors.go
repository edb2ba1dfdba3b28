package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidCredentials is returned when the server rejects a login.
	// The server's message is kept in the wrapping error's text.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionExpired is returned when a 401 could not be recovered by a
	// refresh. The session has already been cleared when it is returned.
	ErrSessionExpired = errors.New("session expired")

	// ErrNetwork matches every *NetworkError.
	ErrNetwork = errors.New("network error")

	// ErrServer matches every *ServerError.
	ErrServer = errors.New("server error")
)

// ServerError is a non-2xx response that is surfaced to the caller as is.
type ServerError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *ServerError) Is(target error) bool {
	return target == ErrServer
}

// IsUnauthorized reports a 401 that reached the caller, which only happens
// when the retry after a successful refresh was rejected again.
func (e *ServerError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// NetworkError is a transport failure: no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// AsServerError returns the *ServerError in err's chain.
func AsServerError(err error) (*ServerError, bool) {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr, true
	}
	return nil, false
}

func invalidCredentials(message string) error {
	if message == "" {
		return ErrInvalidCredentials
	}
	return fmt.Errorf("%w: %s", ErrInvalidCredentials, message)
}
