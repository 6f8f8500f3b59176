// Package tenant provides tenant (identity zone) resolution and per-tenant
// trust configuration for multi-tenant token validation.
//
// A single service instance may serve many tenants, each with its own
// trusted issuers, key-set endpoint, and token endpoint. The [Resolver]
// derives the tenant for an inbound request from request metadata, and a
// [Source] supplies the tenant's trust configuration. Resolution is
// deterministic: the same metadata always yields the same tenant.
//
// # Fail-Closed Semantics
//
// In multi-tenant mode a request lacking any tenant indicator is rejected
// with [sserr.CodeTenantUnresolved] rather than falling back to a default
// tenant. A default tenant is honored only when single-tenant mode is
// explicitly configured.
package tenant

import (
	"context"
	"strings"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
)

// HeaderZoneID is the request header carrying an explicit tenant (identity
// zone) id. When present it takes precedence over all other tenant
// indicators.
const HeaderZoneID = "x-identity-zone-id"

// Mode selects between single-tenant and multi-tenant resolution behavior.
type Mode string

const (
	// ModeSingle configures the resolver for a deployment serving exactly
	// one tenant. Requests without a tenant indicator resolve to the
	// default tenant.
	ModeSingle Mode = "single"

	// ModeMulti configures the resolver for a deployment serving multiple
	// tenants. Requests without a tenant indicator fail closed.
	ModeMulti Mode = "multi"
)

// Valid reports whether the mode is one of the recognized values.
func (m Mode) Valid() bool {
	return m == ModeSingle || m == ModeMulti
}

// Config is the trust configuration for one tenant. One Config exists per
// tenant; the trust store uses it to decide which issuers and keys to
// accept, and the token broker uses it to reach the tenant's token
// endpoint.
type Config struct {
	// ID is the tenant (zone) identifier.
	ID string `yaml:"id"`

	// Subdomain is the tenant's subdomain for host-based resolution
	// (e.g., "acme" for acme.auth.example.com). Optional.
	Subdomain string `yaml:"subdomain,omitempty"`

	// Issuers are the issuer URLs trusted for this tenant. A token whose
	// "iss" claim is not in this list is rejected; there is no closest
	// match.
	Issuers []string `yaml:"issuers"`

	// ClientID is the OAuth2 client identity of this service within the
	// tenant. The audience validator checks the token's "aud" claim
	// against it.
	ClientID string `yaml:"client_id"`

	// KeySetURL is the tenant's JWKS endpoint for verification keys.
	KeySetURL string `yaml:"key_set_url"`

	// TokenURL is the tenant's token endpoint for broker exchanges.
	TokenURL string `yaml:"token_url,omitempty"`

	// CertificateBinding enables the x5t#S256 certificate-binding
	// validator for this tenant. Disabled by default: enabling it
	// unconditionally would break deployments that are not
	// certificate-bound.
	CertificateBinding bool `yaml:"certificate_binding"`

	// Algorithms is the allow-list of accepted signing algorithms. When
	// empty, the validation package's default allow-list applies.
	Algorithms []string `yaml:"algorithms,omitempty"`

	// ClockSkew is the tolerated clock difference for expiry checks.
	// Zero means the validation package's default.
	ClockSkew time.Duration `yaml:"clock_skew,omitempty"`
}

// Validate checks the tenant configuration for completeness.
func (c *Config) Validate() *sserr.Error {
	if c.ID == "" {
		return sserr.New(sserr.CodeValidationRequired, "tenant: id must not be empty")
	}
	if len(c.Issuers) == 0 {
		return sserr.Newf(sserr.CodeValidationRequired, "tenant %q: at least one trusted issuer is required", c.ID)
	}
	if c.ClientID == "" {
		return sserr.Newf(sserr.CodeValidationRequired, "tenant %q: client id must not be empty", c.ID)
	}
	if c.KeySetURL == "" {
		return sserr.Newf(sserr.CodeValidationRequired, "tenant %q: key set URL must not be empty", c.ID)
	}
	return nil
}

// TrustsIssuer reports whether the given issuer is configured for this
// tenant. Comparison is exact apart from a trailing slash.
func (c *Config) TrustsIssuer(issuer string) bool {
	normalized := strings.TrimSuffix(issuer, "/")
	for _, trusted := range c.Issuers {
		if strings.TrimSuffix(trusted, "/") == normalized {
			return true
		}
	}
	return false
}

// Source supplies tenant trust configurations by tenant id.
//
// Implementations must be safe for concurrent use by multiple goroutines.
// The SDK provides [StaticSource] for fixed configuration and
// [*Store] (postgres-backed) for deployments that manage tenants
// dynamically.
type Source interface {
	// Lookup returns the configuration for the given tenant id, or a
	// *sserr.Error with code [sserr.CodeTenantUnknown] when the tenant
	// has no trust configuration.
	Lookup(ctx context.Context, tenantID string) (*Config, error)

	// Subdomain returns the tenant id registered for the given subdomain,
	// or ("", false) when no tenant claims it.
	Subdomain(ctx context.Context, subdomain string) (string, bool)
}

// StaticSource is an immutable in-memory Source built from a fixed set of
// tenant configurations, typically loaded from the service's config file.
type StaticSource struct {
	byID        map[string]*Config
	bySubdomain map[string]string
}

// NewStaticSource builds a StaticSource from the given configurations.
// Each configuration is validated; duplicate tenant ids are rejected.
func NewStaticSource(configs []Config) (*StaticSource, error) {
	byID := make(map[string]*Config, len(configs))
	bySubdomain := make(map[string]string)
	for i := range configs {
		c := configs[i]
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, exists := byID[c.ID]; exists {
			return nil, sserr.Newf(sserr.CodeValidation, "tenant %q is configured twice", c.ID)
		}
		byID[c.ID] = &c
		if c.Subdomain != "" {
			bySubdomain[strings.ToLower(c.Subdomain)] = c.ID
		}
	}
	return &StaticSource{byID: byID, bySubdomain: bySubdomain}, nil
}

// Lookup implements [Source].
func (s *StaticSource) Lookup(_ context.Context, tenantID string) (*Config, error) {
	cfg, ok := s.byID[tenantID]
	if !ok {
		return nil, sserr.Newf(sserr.CodeTenantUnknown, "no trust configuration for tenant %q", tenantID)
	}
	return cfg, nil
}

// Subdomain implements [Source].
func (s *StaticSource) Subdomain(_ context.Context, subdomain string) (string, bool) {
	id, ok := s.bySubdomain[strings.ToLower(subdomain)]
	return id, ok
}
