package apiclient

import (
	"errors"
	"fmt"
)

// ErrNoToken is returned by Login when the server accepted the credentials but
// sent no token back.
var ErrNoToken = errors.New("login response carried no token")

// TransportError means the request never produced a usable response: the
// connection failed, the context was cancelled or the body was not valid JSON.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("could not reach the server (%s): %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is an application-level failure: a non-2xx status, or a 2xx body
// carrying an "error" field. Message is the server's text, or a fallback for
// the operation when the server sent none.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StatusCode returns the HTTP status of an APIError in err's chain, or 0.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}
