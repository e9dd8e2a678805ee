package shared

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Machine-readable failure codes produced by the security pipeline.
const (
	CodeNoCredential           = "NO_CREDENTIAL"
	CodeInvalidCredential      = "INVALID_CREDENTIAL"
	CodeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
	CodePermissionDenied       = "PERMISSION_DENIED"
	CodeInvalidIdentifier      = "INVALID_IDENTIFIER"
	CodeResourceNotFound       = "RESOURCE_NOT_FOUND"
	CodeSuspiciousInput        = "SUSPICIOUS_INPUT"
	CodeCSRFTokenMissing       = "CSRF_TOKEN_MISSING"
	CodeCSRFTokenInvalid       = "CSRF_TOKEN_INVALID"
	CodeRateLimitExceeded      = "RATE_LIMIT_EXCEEDED"
	CodeInternal               = "INTERNAL"
)

// FieldError points a failure at a specific request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SecurityError is an operational, client-facing pipeline failure. Every gate
// produces one of these instead of panicking; the pipeline driver stops at the
// first one and hands it to the outer translator.
type SecurityError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Status  int          `json:"-"`
	Details []FieldError `json:"details,omitempty"`

	// RetryAfter is set only for rate-limit denials.
	RetryAfter time.Duration `json:"-"`

	cause error
}

func (e *SecurityError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *SecurityError) Unwrap() error { return e.cause }

// AsSecurityError extracts a *SecurityError from an error chain.
func AsSecurityError(err error) (*SecurityError, bool) {
	var se *SecurityError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// ErrNoCredential means no bearer credential was presented, or the scheme was
// malformed. Verification is never attempted in this case.
func ErrNoCredential() *SecurityError {
	return &SecurityError{
		Code:    CodeNoCredential,
		Message: "authentication credentials were not provided",
		Status:  http.StatusUnauthorized,
	}
}

// ErrInvalidCredential means a token was presented but verification failed.
func ErrInvalidCredential(cause error) *SecurityError {
	return &SecurityError{
		Code:    CodeInvalidCredential,
		Message: "authentication credentials are invalid or expired",
		Status:  http.StatusUnauthorized,
		cause:   cause,
	}
}

// ErrAuthenticationRequired is raised by authorization gates invoked without
// an identity attached to the request.
func ErrAuthenticationRequired() *SecurityError {
	return &SecurityError{
		Code:    CodeAuthenticationRequired,
		Message: "authentication required",
		Status:  http.StatusUnauthorized,
	}
}

// ErrPermissionDenied means the identity is known but not allowed.
func ErrPermissionDenied() *SecurityError {
	return &SecurityError{
		Code:    CodePermissionDenied,
		Message: "you do not have permission to perform this action",
		Status:  http.StatusForbidden,
	}
}

// ErrInvalidIdentifier means a path parameter expected to be numeric was not.
// It is an authorization-layer failure since it occurs inside ownership
// checks, hence 403 rather than 400.
func ErrInvalidIdentifier(param string) *SecurityError {
	return &SecurityError{
		Code:    CodeInvalidIdentifier,
		Message: "invalid resource identifier",
		Status:  http.StatusForbidden,
		Details: []FieldError{{Field: param, Message: "must be a numeric identifier"}},
	}
}

// ErrResourceNotFound is produced by the ownership gate when the resolver
// cannot locate the resource. Deliberately 403, not 404, so non-owners cannot
// probe for resource existence.
func ErrResourceNotFound() *SecurityError {
	return &SecurityError{
		Code:    CodeResourceNotFound,
		Message: "you do not have permission to access this resource",
		Status:  http.StatusForbidden,
	}
}

// ErrSuspiciousInput carries the offending field path but never the value, so
// attacker payloads are not reflected back.
func ErrSuspiciousInput(fieldPath string) *SecurityError {
	return &SecurityError{
		Code:    CodeSuspiciousInput,
		Message: "request contains potentially malicious content",
		Status:  http.StatusBadRequest,
		Details: []FieldError{{Field: fieldPath, Message: "contains disallowed patterns"}},
	}
}

// ErrCSRFTokenMissing means the cookie token or its echoed copy was absent.
func ErrCSRFTokenMissing() *SecurityError {
	return &SecurityError{
		Code:    CodeCSRFTokenMissing,
		Message: "csrf token missing",
		Status:  http.StatusBadRequest,
		Details: []FieldError{{Field: "csrf_token", Message: "token is required for this request"}},
	}
}

// ErrCSRFTokenInvalid means both copies were present but did not match.
func ErrCSRFTokenInvalid() *SecurityError {
	return &SecurityError{
		Code:    CodeCSRFTokenInvalid,
		Message: "csrf token invalid",
		Status:  http.StatusBadRequest,
		Details: []FieldError{{Field: "csrf_token", Message: "token does not match"}},
	}
}

// ErrRateLimitExceeded reports when the caller may retry.
func ErrRateLimitExceeded(retryAfter time.Duration) *SecurityError {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &SecurityError{
		Code:       CodeRateLimitExceeded,
		Message:    "too many requests, retry after " + strconv.Itoa(int(retryAfter.Seconds()+0.5)) + "s",
		Status:     http.StatusTooManyRequests,
		RetryAfter: retryAfter,
	}
}

// ErrInternal masks unexpected failures inside a gate. The cause is kept for
// logging but never serialized to the client.
func ErrInternal(cause error) *SecurityError {
	return &SecurityError{
		Code:    CodeInternal,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		cause:   cause,
	}
}
