// Package fixtures provides shared test data constants for the Trust
// SDK test suite.
//
// Using common constants for tenant and token identities prevents magic
// strings in tests and ensures consistency across packages.
package fixtures

// Standard tenant values used across resolution and validation tests.
const (
	// ZoneID is the default identity zone id for unit tests.
	ZoneID = "zone-a"

	// ZoneSubdomain is the default tenant subdomain for unit tests.
	ZoneSubdomain = "acme"

	// AltZoneID is an alternative zone id for tests requiring two tenants.
	AltZoneID = "zone-b"

	// AltZoneSubdomain is an alternative subdomain for tests requiring
	// two tenants.
	AltZoneSubdomain = "globex"
)

// Standard token claim values used in validation tests.
const (
	// Subject is the default subject claim for test tokens.
	Subject = "user-abc-123"

	// Issuer is the default issuer for the default test tenant.
	Issuer = "https://acme.auth.example.com"

	// AltIssuer is the issuer for the alternative test tenant.
	AltIssuer = "https://globex.auth.example.com"

	// ClientID is the default OAuth client id accepted as audience.
	ClientID = "sb-app!t42"

	// AltClientID is the client id for the alternative test tenant.
	AltClientID = "sb-app!t7"

	// DisplayScope is a representative read scope granted to test tokens.
	DisplayScope = "uaa.resource"

	// AdminScope is a representative privileged scope used in
	// authorization tests.
	AdminScope = "stricklysoft.admin"
)

// Standard broker values used in password grant tests.
const (
	// Username is the default end-user login for broker tests.
	Username = "alice"

	// Password is the default end-user password for broker tests.
	// Deliberately weak, suitable only for unit tests.
	Password = "correct-password"
)
