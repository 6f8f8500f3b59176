package errors

// Code represents a machine-readable error code for categorizing errors.
// Error codes follow the pattern CATEGORY_XXX where CATEGORY is a short
// identifier (e.g., TOKEN, TRUST, BRK) and XXX is a three-digit numeric code.
//
// Error codes are designed to be:
//   - Stable: Codes do not change once assigned
//   - Unique: Each error condition has a distinct code
//   - Searchable: Codes can be used to find documentation and solutions
//   - Machine-readable: Suitable for automated error handling
type Code string

// Error code categories and their ranges:
//
//	VAL_xxx    - Validation errors (400 Bad Request)
//	TOKEN_xxx  - Token parse errors (401 Unauthorized)
//	AUTH_xxx   - Authentication errors (401 Unauthorized)
//	AUTHZ_xxx  - Authorization errors (403 Forbidden)
//	TRUST_xxx  - Key resolution errors (401 or 503, see HTTPStatus)
//	TENANT_xxx - Tenant resolution errors (401 Unauthorized)
//	BRK_xxx    - Token broker errors (401 or 503, see HTTPStatus)
//	NF_xxx     - Not found errors (404 Not Found)
//	INT_xxx    - Internal errors (500 Internal Server Error)
//	UNAVAIL_xxx - Service unavailable (503 Service Unavailable)
//	TIMEOUT_xxx - Timeout errors (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx) - HTTP 400
	// Used when configuration or API input fails validation rules.

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationFormat indicates a field has an invalid format.
	CodeValidationFormat Code = "VAL_003"

	// CodeValidationRange indicates a numeric field is outside its
	// permitted range.
	CodeValidationRange Code = "VAL_004"

	// Token parse errors (TOKEN_xxx) - HTTP 401
	// Used when a presented access token is not well-formed. Parse errors
	// are terminal: a malformed token is rejected immediately with no
	// partial trust.

	// CodeTokenMalformed indicates the token is not valid compact
	// serialization (wrong segment count, invalid base64url, invalid JSON
	// in a segment).
	CodeTokenMalformed Code = "TOKEN_001"

	// CodeTokenClaimShape indicates a claim is present but has the wrong
	// shape (e.g., a string where an object is expected). Distinct from a
	// missing claim, which accessors report as absence, not an error.
	CodeTokenClaimShape Code = "TOKEN_002"

	// Authentication errors (AUTH_xxx) - HTTP 401
	// Used when a well-formed token fails a validation check.

	// CodeAuthentication indicates a general authentication failure.
	CodeAuthentication Code = "AUTH_001"

	// CodeAuthenticationExpired indicates the token has expired.
	CodeAuthenticationExpired Code = "AUTH_002"

	// CodeAuthenticationInvalid indicates the token failed a validator
	// check (signature, issuer, audience, certificate binding).
	CodeAuthenticationInvalid Code = "AUTH_003"

	// Authorization errors (AUTHZ_xxx) - HTTP 403
	// Used when an authentic token lacks required scopes.

	// CodeAuthorization indicates a general authorization failure.
	CodeAuthorization Code = "AUTHZ_001"

	// CodeAuthorizationInsufficientScope indicates the token lacks a scope
	// required for the requested operation.
	CodeAuthorizationInsufficientScope Code = "AUTHZ_002"

	// Trust / key resolution errors (TRUST_xxx)
	// Used when resolving a verification key for a tenant fails. The
	// unreachable kind is retryable; the other kinds are security-relevant
	// and must never be retried or weakened.

	// CodeTrustUnreachable indicates the tenant's key-set endpoint could
	// not be reached (network failure, timeout, 5xx). Retryable.
	CodeTrustUnreachable Code = "TRUST_001"

	// CodeTrustKeyNotFound indicates the key id is definitively absent
	// from the tenant's key set, even after a refresh. Not retryable.
	CodeTrustKeyNotFound Code = "TRUST_002"

	// CodeTrustUntrusted indicates the issuer is not part of the tenant's
	// trust configuration. Not retryable; security-relevant.
	CodeTrustUntrusted Code = "TRUST_003"

	// Tenant errors (TENANT_xxx) - HTTP 401
	// Used when the tenant (zone) for a request cannot be determined.

	// CodeTenantUnresolved indicates the request carries no usable tenant
	// indicator while multi-tenancy is configured. Resolution fails closed.
	CodeTenantUnresolved Code = "TENANT_001"

	// CodeTenantUnknown indicates the resolved tenant id has no trust
	// configuration.
	CodeTenantUnknown Code = "TENANT_002"

	// Token broker errors (BRK_xxx)
	// Used for server-initiated token acquisition failures.

	// CodeBrokerInvalidCredentials indicates the upstream token endpoint
	// rejected the supplied credentials. Unknown users produce the same
	// code as wrong passwords so that user existence is not revealed.
	CodeBrokerInvalidCredentials Code = "BRK_001"

	// CodeBrokerUnknownTenant indicates the credentials were presented
	// against a zone where the user store does not know them.
	CodeBrokerUnknownTenant Code = "BRK_002"

	// CodeBrokerUnreachable indicates the token endpoint could not be
	// reached. Retryable.
	CodeBrokerUnreachable Code = "BRK_003"

	// Not found errors (NF_xxx) - HTTP 404
	// Used when a requested resource does not exist.

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// Internal errors (INT_xxx) - HTTP 500
	// Used for unexpected internal failures.

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalDatabase indicates a database operation failed.
	CodeInternalDatabase Code = "INT_002"

	// CodeInternalConfiguration indicates a configuration error.
	CodeInternalConfiguration Code = "INT_003"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503
	// Used when a dependency is temporarily unavailable.

	// CodeUnavailable indicates a general service unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates a dependent service is unavailable.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504
	// Used when an operation exceeds its time limit.

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutDependency indicates a call to a dependent service timed out.
	CodeTimeoutDependency Code = "TIMEOUT_002"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "TOKEN",
// "TRUST").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
