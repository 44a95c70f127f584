package model

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/pkg/errors"
)

// ErrorKind classifies a provider failure.
type ErrorKind int

const (
	KindTimeout ErrorKind = iota
	KindRateLimited
	KindUnreachable
	KindInvalidResponse
	KindAuth
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindUnreachable:
		return "unreachable"
	case KindInvalidResponse:
		return "invalid_response"
	case KindAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// ProviderError is raised by the model and search clients when the external
// provider fails. It is never retried.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	// Status is the HTTP status code when one was received, otherwise 0.
	Status int
	Err    error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a provider error of the given kind.
func NewProviderError(provider string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// AsProviderError extracts a ProviderError from an error chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsProviderError reports whether err wraps a ProviderError of the given kind.
func IsProviderError(err error, kind ErrorKind) bool {
	pe, ok := AsProviderError(err)
	return ok && pe.Kind == kind
}

// ClassifyHTTPStatus maps a non-2xx HTTP status to an error kind.
func ClassifyHTTPStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindUnreachable
	default:
		return KindInvalidResponse
	}
}

// StatusError builds a ProviderError from an HTTP status code.
func StatusError(provider string, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ClassifyHTTPStatus(status), Status: status, Err: err}
}

// ClassifyTransport wraps a transport-level failure (no HTTP response) in a
// ProviderError. Deadlines map to timeout, everything else to unreachable.
// An error that already is a ProviderError is returned unchanged.
func ClassifyTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsProviderError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(provider, KindTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewProviderError(provider, KindTimeout, err)
	}
	return NewProviderError(provider, KindUnreachable, err)
}
