package tenant

import (
	"context"
	"net"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
)

// Metadata is the request metadata tenant resolution operates on. The
// hosting request layer fills it from headers and the (unvalidated) token;
// resolution itself never touches the raw request.
type Metadata struct {
	// ZoneID is the explicit tenant id from the zone header
	// ([HeaderZoneID]), if present. Highest precedence.
	ZoneID string

	// TokenZoneID is the "zid" claim of the presented token, if any. The
	// claim is read before signature verification, so it only selects
	// which tenant's trust anchors to validate against; it grants nothing
	// by itself.
	TokenZoneID string

	// Host is the request's Host header, used for subdomain-based
	// resolution. An optional port is ignored.
	Host string
}

// Resolver derives the tenant for an inbound request and selects its trust
// configuration. Resolution order: explicit zone header, then token zone
// claim, then registered subdomain of the request host, then — in
// single-tenant mode only — the default tenant.
//
// Resolver is safe for concurrent use by multiple goroutines.
type Resolver struct {
	source        Source
	mode          Mode
	defaultTenant string
}

// NewResolver creates a Resolver over the given configuration source.
// defaultTenant is required in [ModeSingle] and ignored in [ModeMulti].
func NewResolver(source Source, mode Mode, defaultTenant string) (*Resolver, error) {
	if source == nil {
		return nil, sserr.New(sserr.CodeValidationRequired, "tenant: source must not be nil")
	}
	if !mode.Valid() {
		return nil, sserr.Newf(sserr.CodeValidation, "tenant: unknown mode %q", mode)
	}
	if mode == ModeSingle && defaultTenant == "" {
		return nil, sserr.New(sserr.CodeValidationRequired, "tenant: single-tenant mode requires a default tenant")
	}
	return &Resolver{source: source, mode: mode, defaultTenant: defaultTenant}, nil
}

// Resolve determines the tenant for the given request metadata and returns
// its trust configuration.
//
// Resolution is deterministic and fails closed: in multi-tenant mode a
// request with no usable tenant indicator is rejected with
// [sserr.CodeTenantUnresolved], and an indicator naming an unconfigured
// tenant is rejected with [sserr.CodeTenantUnknown]. There is no implicit
// fallback from one indicator to the next once an indicator is present:
// an explicit zone header naming an unknown tenant is an error, not a
// reason to consult the token claim.
func (r *Resolver) Resolve(ctx context.Context, md Metadata) (*Config, error) {
	if md.ZoneID != "" {
		return r.source.Lookup(ctx, md.ZoneID)
	}
	if md.TokenZoneID != "" {
		return r.source.Lookup(ctx, md.TokenZoneID)
	}
	if sub := subdomainOf(md.Host); sub != "" {
		if id, ok := r.source.Subdomain(ctx, sub); ok {
			return r.source.Lookup(ctx, id)
		}
	}
	if r.mode == ModeSingle {
		return r.source.Lookup(ctx, r.defaultTenant)
	}
	return nil, sserr.New(sserr.CodeTenantUnresolved, "request carries no tenant indicator and multi-tenancy is configured")
}

// subdomainOf extracts the first DNS label of a host, stripping any port.
// Returns "" for bare hosts (no dots) and IP addresses, which cannot carry
// a tenant subdomain.
func subdomainOf(host string) string {
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if net.ParseIP(host) != nil {
		return ""
	}
	label, rest, found := strings.Cut(host, ".")
	if !found || rest == "" {
		return ""
	}
	return label
}
