package stream

import (
	"errors"
	"fmt"
)

// Error kinds carried on error events. Cancellation is deliberately not
// in this taxonomy: an abort by the session's own cancel handle maps to
// a clean message_stop.
const (
	ErrorKindState   = "state_error"
	ErrorKindHTTP    = "http_error"
	ErrorKindNoBody  = "no_body"
	ErrorKindNetwork = "network_error"
)

// Sentinel errors checkable with errors.Is.
var (
	// ErrConversationMismatch indicates the caller asked to stream into a
	// conversation that is not the currently active one. Caller bug, not
	// retried.
	ErrConversationMismatch = errors.New("stream: conversation is not the active conversation")

	// ErrNoBody indicates a 2xx response without a readable body.
	ErrNoBody = errors.New("stream: response has no body")
)

// HTTPError represents a non-2xx response from the backend. Message is
// extracted best-effort from the response body, falling back to the bare
// status line.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("stream: %s", e.Message)
}

// NetworkError represents a transport-level failure below the HTTP
// status layer (connection reset, DNS, mid-body read failure).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("stream: network failure: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// classify maps an error from the request or decode path to its kind and
// surface message.
func classify(err error) (kind, message string) {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return ErrorKindHTTP, httpErr.Message
	case errors.Is(err, ErrNoBody):
		return ErrorKindNoBody, ErrNoBody.Error()
	case errors.Is(err, ErrConversationMismatch):
		return ErrorKindState, ErrConversationMismatch.Error()
	default:
		return ErrorKindNetwork, err.Error()
	}
}
