package validation

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/stricklysoft-trust/pkg/cert"
	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
	"github.com/StricklySoft/stricklysoft-trust/pkg/tenant"
	"github.com/StricklySoft/stricklysoft-trust/pkg/token"
	"github.com/StricklySoft/stricklysoft-trust/pkg/trust"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/stricklysoft-trust/pkg/validation"

const (
	// defaultCacheTTL bounds how long a validated result is reused.
	defaultCacheTTL = 5 * time.Minute

	// defaultCacheSize is the maximum number of cached results.
	defaultCacheSize = 10000
)

// Request carries the security-relevant parts of one inbound request.
// The hosting transport layer (HTTP middleware, gRPC interceptor) fills it
// from headers and connection state.
type Request struct {
	// Token is the raw bearer token from the authorization header.
	Token string

	// ZoneID is the explicit tenant id from the zone header, if present.
	ZoneID string

	// Host is the request's host, used for subdomain tenant resolution.
	Host string

	// Certificate is the client certificate presented with the request,
	// if any.
	Certificate *cert.Certificate

	// RequiredScopes, when non-empty, must all be present on the token.
	// Missing scopes reject with an authorization error, not an
	// authentication error.
	RequiredScopes []string
}

// Service is the end-to-end inbound validation path: tenant resolution,
// token parse, key resolution, signature verification, and the validator
// chain, producing a populated [SecurityContext].
//
// Service is safe for concurrent use by multiple goroutines.
type Service struct {
	resolver *tenant.Resolver
	keys     *trust.Store
	cache    *resultCache
	tracer   trace.Tracer
}

// ServiceOption configures a [Service].
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	cacheTTL  time.Duration
	cacheSize int
}

// WithResultCacheTTL overrides how long validated results are cached.
func WithResultCacheTTL(ttl time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithResultCacheSize overrides the result cache capacity.
func WithResultCacheSize(size int) ServiceOption {
	return func(c *serviceConfig) {
		if size > 0 {
			c.cacheSize = size
		}
	}
}

// NewService creates a validation service over the given tenant resolver
// and key store.
func NewService(resolver *tenant.Resolver, keys *trust.Store, opts ...ServiceOption) (*Service, error) {
	if resolver == nil {
		return nil, sserr.New(sserr.CodeValidationRequired, "validation: tenant resolver must not be nil")
	}
	if keys == nil {
		return nil, sserr.New(sserr.CodeValidationRequired, "validation: key store must not be nil")
	}
	cfg := serviceConfig{cacheTTL: defaultCacheTTL, cacheSize: defaultCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		resolver: resolver,
		keys:     keys,
		cache:    newResultCache(cfg.cacheTTL, cfg.cacheSize),
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// Validate runs the full inbound validation path for one request.
//
// Failures are *[sserr.Error] values: TOKEN codes for malformed tokens,
// TENANT codes for unresolvable tenants, TRUST codes for key resolution,
// AUTH codes for rejected tokens, and AUTHZ codes for missing scopes.
// Transports must not leak the message to the caller; the code alone
// selects the response status.
func (s *Service) Validate(ctx context.Context, req Request) (*SecurityContext, error) {
	ctx, span := s.tracer.Start(ctx, "validation.Validate")
	defer span.End()

	sc, err := s.validate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("tenant.id", sc.Tenant.ID))
	return sc, nil
}

func (s *Service) validate(ctx context.Context, req Request) (*SecurityContext, error) {
	tok, err := token.Parse(req.Token)
	if err != nil {
		return nil, err
	}

	cacheKey := cacheKeyFor(req.Token, req.ZoneID, req.Host)
	if cached, ok := s.cache.get(cacheKey); ok {
		// Certificate binding and time-based checks are re-run even on
		// cache hits: the certificate belongs to this request, not the
		// cached one, and the token may have expired since.
		if err := s.recheck(ctx, cached, req); err != nil {
			return nil, err
		}
		// The cached entry keeps the token and tenant; the certificate is
		// per-request and must never leak from the caller that populated
		// the cache.
		sc := &SecurityContext{Token: cached.Token, Certificate: req.Certificate, Tenant: cached.Tenant}
		return s.authorize(ctx, sc, req)
	}

	cfg, err := s.resolver.Resolve(ctx, tenant.Metadata{
		ZoneID:      req.ZoneID,
		TokenZoneID: tok.ZoneID(),
		Host:        req.Host,
	})
	if err != nil {
		return nil, err
	}

	issuer, present, issErr := tok.ClaimAsString(token.ClaimIssuer)
	if issErr != nil || !present || issuer == "" {
		return nil, sserr.New(sserr.CodeAuthenticationInvalid, "token has no issuer")
	}

	key, err := s.keys.ResolveKey(ctx, cfg, issuer, tok.KeyID())
	if err != nil {
		return nil, err
	}

	verifier := NewSignatureVerifier(cfg.Algorithms)
	if r := verifier.Verify(tok.SigningInput(), tok.Signature(), tok.Algorithm(), key); !r.IsValid() {
		return nil, sserr.Newf(sserr.CodeAuthenticationInvalid, "token rejected: %s", r.Reason())
	}

	chain := s.chainFor(cfg, req.Certificate)
	if r := chain.Validate(ctx, tok); !r.IsValid() {
		return nil, rejectionError(r.Reason())
	}

	sc := &SecurityContext{Token: tok, Certificate: req.Certificate, Tenant: cfg}
	if exp, present, _ := tok.Expiration(); present {
		s.cache.put(cacheKey, sc, exp)
	}
	return s.authorize(ctx, sc, req)
}

// chainFor builds the validator chain for a tenant: expiry, issuer, and
// audience always, certificate binding only when the tenant enables it.
func (s *Service) chainFor(cfg *tenant.Config, clientCert *cert.Certificate) *Chain {
	chain := NewChain(
		ExpiryValidator{Skew: cfg.ClockSkew},
		IssuerValidator{Tenant: cfg},
		AudienceValidator{ClientID: cfg.ClientID},
	)
	if cfg.CertificateBinding {
		chain = chain.Append(CertificateBindingValidator{Certificate: clientCert})
	}
	return chain
}

// recheck re-runs the per-request and time-based checks for a cached
// result.
func (s *Service) recheck(ctx context.Context, sc *SecurityContext, req Request) error {
	chain := NewChain(ExpiryValidator{Skew: sc.Tenant.ClockSkew})
	if sc.Tenant.CertificateBinding {
		chain = chain.Append(CertificateBindingValidator{Certificate: req.Certificate})
	}
	if r := chain.Validate(ctx, sc.Token); !r.IsValid() {
		return rejectionError(r.Reason())
	}
	return nil
}

// authorize applies the request's scope requirements to an authenticated
// token.
func (s *Service) authorize(ctx context.Context, sc *SecurityContext, req Request) (*SecurityContext, error) {
	if len(req.RequiredScopes) == 0 {
		return sc, nil
	}
	if r := (ScopeValidator{Required: req.RequiredScopes}).Validate(ctx, sc.Token); !r.IsValid() {
		return nil, sserr.Newf(sserr.CodeAuthorizationInsufficientScope, "token rejected: %s", r.Reason())
	}
	return sc, nil
}

// rejectionError maps a chain rejection to the error taxonomy: expiry
// failures get their own code so clients can distinguish "get a new token"
// from "this token is wrong".
func rejectionError(reason string) error {
	if strings.Contains(reason, "expired") {
		return sserr.Newf(sserr.CodeAuthenticationExpired, "token rejected: %s", reason)
	}
	return sserr.Newf(sserr.CodeAuthenticationInvalid, "token rejected: %s", reason)
}
