// Package errors provides standardized error types and error handling
// utilities for the StricklySoft Trust SDK. It defines the error taxonomy
// shared by the token, trust, tenant, validation, and broker packages, and
// helper functions for creating, wrapping, and inspecting errors.
//
// # Error Categories
//
// The taxonomy distinguishes the failure classes that callers must treat
// differently:
//
//   - Token errors: malformed compact serialization, undecodable claims
//   - Authentication errors: well-formed token fails a validation check
//   - Authorization errors: token is authentic but lacks required scopes
//   - Trust errors: verification-key resolution failures, split into
//     retryable infrastructure failures and non-retryable security
//     rejections
//   - Tenant errors: zone resolution and tenant configuration failures
//   - Broker errors: downstream credential exchange failures
//   - Validation errors: invalid configuration or API input
//   - Internal / Unavailable / Timeout errors: infrastructure failures
//
// # Error Codes
//
// Each error carries a machine-readable code (e.g., "TRUST_001") that is
// stable across releases and suitable for alerting and client-side error
// handling. Codes follow the pattern CATEGORY_XXX.
//
// # Retry Semantics
//
// Security-relevant rejections (unknown key id, untrusted issuer, invalid
// credentials) are never retryable; callers must not weaken validation in
// response to them. Infrastructure failures (unreachable key-set endpoint,
// timeouts) are retryable. Use [IsRetryable] to branch.
//
// # Usage
//
// Create a new error with context:
//
//	err := errors.New(errors.CodeTokenMalformed, "token has wrong segment count")
//
// Wrap an existing error:
//
//	err := errors.Wrap(err, errors.CodeTrustUnreachable, "key set fetch failed")
//
// Check the failure class:
//
//	if errors.IsRetryable(err) {
//	    // back off and retry the key fetch
//	}
package errors
