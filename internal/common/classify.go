package common

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// Classify normalizes any failure into an *AppError. Rules, in priority order:
//
//  1. An already-classified error passes through unchanged.
//  2. Structured store errors with constraint SQLSTATEs become Validation.
//  3. A row-level-security denial becomes Permission.
//  4. Failures from the auth endpoints (or 401 responses) become Auth.
//  5. Transport-level failures become Network.
//  6. Everything else becomes Unknown.
func Classify(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var wireErr *WireError
	if errors.As(err, &wireErr) {
		return classifyWire(wireErr, err)
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return classifyAuth(authErr, err)
	}

	if isNetworkError(err) {
		return NewAppError(KindNetwork, "request could not reach the server", err)
	}

	return NewAppError(KindUnknown, "unexpected error", err)
}

func classifyWire(w *WireError, cause error) *AppError {
	switch w.Code {
	case CodeUniqueViolation:
		return NewAppError(KindValidation, "a record with these details already exists", cause)
	case CodeForeignKeyViolation:
		return NewAppError(KindValidation, "a linked record does not exist", cause)
	case CodeRLSDenied:
		return NewAppError(KindPermission, "access to this row was denied", cause)
	}
	if _, ok := transientWireCodes[w.Code]; ok {
		return NewAppError(KindNetwork, "the server connection was interrupted", cause)
	}
	switch w.Status {
	case 401:
		return NewAppError(KindAuth, "the session is no longer valid", cause)
	case 403:
		return NewAppError(KindPermission, "access to this resource was denied", cause)
	case 502, 503, 504:
		return NewAppError(KindNetwork, "the server is temporarily unreachable", cause)
	}
	return NewAppError(KindUnknown, "the server rejected the request", cause)
}

func classifyAuth(a *AuthError, cause error) *AppError {
	switch a.Code {
	case AuthCodeInvalidCredentials:
		return NewAppError(KindAuth, "invalid email or password", cause)
	case AuthCodeEmailNotConfirmed:
		return NewAppError(KindAuth, "the account email has not been confirmed", cause)
	case AuthCodeUserExists:
		return NewAppError(KindAuth, "an account with this email already exists", cause)
	}
	return NewAppError(KindAuth, "authentication failed", cause)
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	// Last resort for errors that lost their type crossing a boundary.
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable")
}

// Retryable is the default retry predicate for data calls: network failures
// and a narrow set of transient connection-level store codes. Validation,
// Permission and Auth failures are never retried.
func Retryable(err error) bool {
	classified := Classify(err)
	if classified == nil {
		return false
	}
	if classified.Kind == KindNetwork {
		return true
	}
	var wireErr *WireError
	if errors.As(err, &wireErr) {
		if _, ok := transientWireCodes[wireErr.Code]; ok {
			return true
		}
	}
	return false
}

// RetryableAuth is the stricter predicate used for authentication calls:
// transport-level network failures only, never store-reported codes.
func RetryableAuth(err error) bool {
	var wireErr *WireError
	if errors.As(err, &wireErr) {
		return false
	}
	return KindOf(err) == KindNetwork
}
