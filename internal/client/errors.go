package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrUnauthorized matches any 401/403 *APIError via errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

const genericServerMessage = "the server could not complete the request, please try again later"

// APIError is a response the server did send but did not like.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// NetworkError means no usable response arrived.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// IsRetryable is true for failures a later attempt may fix: network
// errors, timeouts, 429 and 5xx.
func IsRetryable(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode >= 500 || ae.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// UserMessage is what a person should see for err.
func UserMessage(err error) string {
	var ae *APIError
	var ne *NetworkError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "your session has ended, please log in again"
	case errors.As(err, &ne):
		if ne.Timeout() {
			return "the server took too long to answer, please try again"
		}
		return "could not reach the server, please check your connection and try again"
	case errors.As(err, &ae):
		return ae.Message
	}
	return err.Error()
}
