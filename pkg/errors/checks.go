package errors

import (
	"errors"
)

// AsError attempts to convert an error to an *Error.
// Returns the Error and true if successful, nil and false otherwise.
// This function traverses the error chain using errors.As.
//
// Example:
//
//	if e, ok := errors.AsError(err); ok {
//	    log.Printf("error code: %s, message: %s", e.Code, e.Message)
//	}
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the error code from an error.
// If the error is not an *Error or is nil, returns an empty string.
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode checks if an error has the specified error code.
// Returns false if the error is nil or not an *Error.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsValidation checks if the error is a validation error (VAL_xxx).
func IsValidation(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "VAL"
}

// IsTokenParse checks if the error is a token parse error (TOKEN_xxx).
// Parse errors mean the token was rejected before any validator ran.
func IsTokenParse(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "TOKEN"
}

// IsAuthentication checks if the error is an authentication error (AUTH_xxx).
func IsAuthentication(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "AUTH"
}

// IsAuthorization checks if the error is an authorization error (AUTHZ_xxx).
func IsAuthorization(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "AUTHZ"
}

// IsTrustResolution checks if the error is a key resolution error (TRUST_xxx).
// Use [IsRetryable] to distinguish the unreachable kind from the
// security-relevant kinds.
func IsTrustResolution(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "TRUST"
}

// IsTenantResolution checks if the error is a tenant resolution error
// (TENANT_xxx).
func IsTenantResolution(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "TENANT"
}

// IsBroker checks if the error is a token broker error (BRK_xxx).
func IsBroker(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "BRK"
}

// IsNotFound checks if the error is a not found error (NF_xxx).
func IsNotFound(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "NF"
}

// IsInternal checks if the error is an internal error (INT_xxx).
func IsInternal(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "INT"
}

// IsUnavailable checks if the error is a service unavailable error (UNAVAIL_xxx).
func IsUnavailable(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "UNAVAIL"
}

// IsTimeout checks if the error is a timeout error (TIMEOUT_xxx).
func IsTimeout(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "TIMEOUT"
}

// IsRetryable checks if the error is potentially retryable.
//
// Timeout and unavailable errors are retryable, as are the unreachable
// kinds of trust and broker errors. Security rejections (unknown key id,
// untrusted issuer, invalid credentials, failed validators) are never
// retryable: retrying cannot make an untrusted token trusted, and callers
// must not weaken validation in response.
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Code {
	case CodeTrustUnreachable, CodeBrokerUnreachable:
		return true
	}
	switch e.Code.Category() {
	case "TIMEOUT", "UNAVAIL":
		return true
	default:
		return false
	}
}

// IsClientError checks if the error maps to a 4xx HTTP status.
func IsClientError(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	status := e.HTTPStatus()
	return status >= 400 && status < 500
}

// IsServerError checks if the error maps to a 5xx HTTP status.
func IsServerError(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	return e.HTTPStatus() >= 500
}
