// Package trust resolves token verification keys for tenants.
//
// Each tenant trusts a set of issuers and publishes verification keys at a
// JWKS endpoint. The [Store] maps (tenant, issuer, key id) to a public key,
// caching fetched key sets with a TTL and coalescing concurrent fetches so
// a burst of requests for an uncached key produces exactly one upstream
// call.
//
// # Error Kinds
//
// Resolution failures are deliberately split into three kinds because they
// demand different handling:
//
//   - [sserr.CodeTrustUnreachable]: the key-set endpoint could not be
//     reached. Transient; callers may retry.
//   - [sserr.CodeTrustKeyNotFound]: the key id is definitively absent even
//     after a refresh. Not retryable.
//   - [sserr.CodeTrustUntrusted]: the issuer is not in the tenant's trust
//     configuration. Security-relevant; never retried, never weakened.
package trust

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	redisclient "github.com/StricklySoft/stricklysoft-trust/pkg/clients/redis"
	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
	"github.com/StricklySoft/stricklysoft-trust/pkg/tenant"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/stricklysoft-trust/pkg/trust"

const (
	// defaultCacheTTL is how long a fetched key set is served before a
	// lazy refresh.
	defaultCacheTTL = 10 * time.Minute

	// defaultFetchTimeout bounds a single key-set fetch. The fetch is
	// shared by every coalesced waiter and runs detached from the
	// requester that started it.
	defaultFetchTimeout = 5 * time.Second

	// refetchBackoff limits how often an unknown key id can force a
	// refresh of a fresh key set. Without it a stream of tokens with a
	// bogus kid would hammer the tenant's endpoint.
	refetchBackoff = 10 * time.Second

	// maxKeySetBytes caps the key-set response body.
	maxKeySetBytes = 1 << 20
)

// HTTPClient abstracts the HTTP client used for key-set fetches. Satisfied
// by [*http.Client].
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TrustAnchor identifies one (tenant, issuer) trust relationship and the
// key-set endpoint serving its verification keys.
type TrustAnchor struct {
	TenantID  string
	Issuer    string
	KeySetURL string
}

// AnchorFor returns the trust anchor for the given issuer within a tenant,
// or a [sserr.CodeTrustUntrusted] error when the tenant does not trust the
// issuer. There is no closest match: an issuer either is configured or the
// token is rejected.
func AnchorFor(cfg *tenant.Config, issuer string) (TrustAnchor, error) {
	if cfg == nil {
		return TrustAnchor{}, sserr.New(sserr.CodeValidationRequired, "trust: tenant configuration must not be nil")
	}
	if !cfg.TrustsIssuer(issuer) {
		return TrustAnchor{}, sserr.Newf(sserr.CodeTrustUntrusted,
			"issuer %q is not trusted by tenant %q", issuer, cfg.ID)
	}
	return TrustAnchor{TenantID: cfg.ID, Issuer: issuer, KeySetURL: cfg.KeySetURL}, nil
}

// cacheKey identifies a cached key set.
func (a TrustAnchor) cacheKey() string {
	return a.TenantID + "\x00" + a.Issuer
}

// keySet holds the parsed keys of one fetched JWKS document.
type keySet struct {
	keys      map[string]any // kid -> *rsa.PublicKey or *ecdsa.PublicKey
	fetchedAt time.Time
}

// Store resolves verification keys for tenants with TTL caching and fetch
// coalescing.
//
// Reads take a lock-free snapshot of the cache, so refreshes and evictions
// never block or disturb in-flight validations.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	httpClient   HTTPClient
	ttl          time.Duration
	fetchTimeout time.Duration

	// shared, when set, is a second-level cache of raw JWKS documents so
	// that replicas of the same service share fetched key sets.
	shared    *redisclient.Client
	sharedTTL time.Duration

	tracer trace.Tracer
	group  singleflight.Group

	mu       sync.Mutex // guards snapshot replacement
	snapshot atomic.Pointer[map[string]*keySet]
}

// StoreOption configures a [Store].
type StoreOption func(*Store)

// WithHTTPClient overrides the HTTP client used for key-set fetches.
func WithHTTPClient(client HTTPClient) StoreOption {
	return func(s *Store) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithCacheTTL overrides how long fetched key sets are cached.
func WithCacheTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithFetchTimeout overrides the per-fetch timeout.
func WithFetchTimeout(timeout time.Duration) StoreOption {
	return func(s *Store) {
		if timeout > 0 {
			s.fetchTimeout = timeout
		}
	}
}

// WithSharedCache enables a Redis-backed second-level cache of raw JWKS
// documents with the given TTL. Shared-cache failures are ignored: the
// store falls back to fetching directly.
func WithSharedCache(client *redisclient.Client, ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.shared = client
		s.sharedTTL = ttl
	}
}

// NewStore creates a key resolver with the given options.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		httpClient:   &http.Client{Timeout: defaultFetchTimeout},
		ttl:          defaultCacheTTL,
		fetchTimeout: defaultFetchTimeout,
		tracer:       otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	empty := make(map[string]*keySet)
	s.snapshot.Store(&empty)
	return s
}

// ResolveKey returns the verification key for the given key id, issued by
// the given issuer, within the given tenant.
//
// An empty key id resolves only when the tenant's key set contains exactly
// one key. A key id absent from a cached set triggers one refresh, bounded
// by a backoff, before failing with [sserr.CodeTrustKeyNotFound].
func (s *Store) ResolveKey(ctx context.Context, cfg *tenant.Config, issuer, keyID string) (any, error) {
	anchor, err := AnchorFor(cfg, issuer)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "trust.ResolveKey",
		trace.WithAttributes(
			attribute.String("trust.tenant_id", anchor.TenantID),
			attribute.String("trust.key_id", keyID),
		),
	)
	defer span.End()

	key, err := s.resolve(ctx, anchor, keyID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return key, nil
}

func (s *Store) resolve(ctx context.Context, anchor TrustAnchor, keyID string) (any, error) {
	cached, fresh := s.lookup(anchor)
	if fresh {
		if key, ok := pickKey(cached, keyID); ok {
			return key, nil
		}
		// Unknown kid in a fresh set: key rotation or a bogus token.
		// Refresh at most once per backoff window.
		if time.Since(cached.fetchedAt) < refetchBackoff {
			return nil, keyNotFound(anchor, keyID)
		}
	}

	set, err := s.fetch(ctx, anchor)
	if err != nil {
		return nil, err
	}
	if key, ok := pickKey(set, keyID); ok {
		return key, nil
	}
	return nil, keyNotFound(anchor, keyID)
}

func keyNotFound(anchor TrustAnchor, keyID string) error {
	return sserr.Newf(sserr.CodeTrustKeyNotFound,
		"key %q not found in key set of tenant %q", keyID, anchor.TenantID)
}

// lookup returns the cached key set for the anchor and whether it is still
// within its TTL.
func (s *Store) lookup(anchor TrustAnchor) (*keySet, bool) {
	sets := *s.snapshot.Load()
	set, ok := sets[anchor.cacheKey()]
	if !ok {
		return nil, false
	}
	return set, time.Since(set.fetchedAt) < s.ttl
}

// pickKey selects a key from the set. An empty kid matches only a
// single-key set.
func pickKey(set *keySet, keyID string) (any, bool) {
	if set == nil {
		return nil, false
	}
	if keyID == "" {
		if len(set.keys) != 1 {
			return nil, false
		}
		for _, key := range set.keys {
			return key, true
		}
	}
	key, ok := set.keys[keyID]
	return key, ok
}

// fetch retrieves and caches the anchor's key set. Concurrent fetches for
// the same anchor are coalesced into a single upstream call.
func (s *Store) fetch(ctx context.Context, anchor TrustAnchor) (*keySet, error) {
	v, err, _ := s.group.Do(anchor.cacheKey(), func() (any, error) {
		// The fetch is shared by every coalesced waiter, so it must not
		// die with the first requester. The timeout alone bounds it.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		keys, err := s.fetchKeys(fetchCtx, anchor.KeySetURL)
		if err != nil {
			return nil, err
		}
		set := &keySet{keys: keys, fetchedAt: time.Now()}
		s.store(anchor.cacheKey(), set)
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*keySet), nil
}

// store replaces the cache snapshot with one containing the new set,
// evicting entries past twice their TTL.
func (s *Store) store(key string, set *keySet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := *s.snapshot.Load()
	next := make(map[string]*keySet, len(old)+1)
	for k, v := range old {
		if time.Since(v.fetchedAt) < 2*s.ttl {
			next[k] = v
		}
	}
	next[key] = set
	s.snapshot.Store(&next)
}

func sharedCacheKey(keySetURL string) string {
	return "trust:jwks:" + keySetURL
}

// fetchKeys obtains the raw JWKS document, preferring the shared cache
// when configured, and parses it into verification keys.
func (s *Store) fetchKeys(ctx context.Context, keySetURL string) (map[string]any, error) {
	if s.shared != nil {
		if doc, err := s.shared.Get(ctx, sharedCacheKey(keySetURL)); err == nil {
			if keys, parseErr := parseKeySet([]byte(doc)); parseErr == nil {
				return keys, nil
			}
		}
	}

	body, err := s.fetchDocument(ctx, keySetURL)
	if err != nil {
		return nil, err
	}
	keys, err := parseKeySet(body)
	if err != nil {
		return nil, err
	}

	if s.shared != nil {
		// A failed write costs nothing but a future fetch.
		_ = s.shared.Set(ctx, sharedCacheKey(keySetURL), string(body), s.sharedTTL)
	}
	return keys, nil
}

func (s *Store) fetchDocument(ctx context.Context, keySetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, keySetURL, nil)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternal, "trust: failed to create key set request")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeTrustUnreachable, "key set endpoint %s unreachable", keySetURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, sserr.Newf(sserr.CodeTrustUnreachable, "key set endpoint %s returned status %d", keySetURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeTrustUnreachable, "failed to read key set from %s", keySetURL)
	}
	return body, nil
}

// jwksDocument is the JSON structure of a JWKS endpoint response.
type jwksDocument struct {
	Keys []jwkKey `json:"keys"`
}

// jwkKey is a single key in a JWKS document. Only the fields needed for
// RSA and EC key reconstruction are included.
type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	// RSA fields
	N string `json:"n"`
	E string `json:"e"`
	// EC fields
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// parseKeySet parses a JWKS document into a kid-to-key map. Supports RSA
// and ECDSA (P-256, P-384, P-521). Malformed and keyless entries are
// skipped rather than failing the whole set.
func parseKeySet(body []byte) (map[string]any, error) {
	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeTrustUnreachable, "key set document is not valid JSON")
	}

	keys := make(map[string]any, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kid == "" {
			continue
		}
		switch k.Kty {
		case "RSA":
			pubKey, err := parseRSAPublicKey(k.N, k.E)
			if err != nil {
				continue
			}
			keys[k.Kid] = pubKey
		case "EC":
			pubKey, err := parseECPublicKey(k.Crv, k.X, k.Y)
			if err != nil {
				continue
			}
			keys[k.Kid] = pubKey
		}
	}
	return keys, nil
}

// parseRSAPublicKey constructs an *rsa.PublicKey from base64url-encoded
// modulus (n) and exponent (e) values.
func parseRSAPublicKey(nBase64, eBase64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nBase64)
	if err != nil {
		return nil, fmt.Errorf("trust: failed to decode RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eBase64)
	if err != nil {
		return nil, fmt.Errorf("trust: failed to decode RSA exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	return &rsa.PublicKey{
		N: n,
		E: int(e.Int64()),
	}, nil
}

// parseECPublicKey constructs an *ecdsa.PublicKey from a curve name and
// base64url-encoded x and y coordinates.
func parseECPublicKey(crv, xBase64, yBase64 string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("trust: unsupported EC curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xBase64)
	if err != nil {
		return nil, fmt.Errorf("trust: failed to decode EC x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yBase64)
	if err != nil {
		return nil, fmt.Errorf("trust: failed to decode EC y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

// Invalidate drops the cached key set for the given tenant and issuer.
// In-flight validations holding the previous snapshot are unaffected.
func (s *Store) Invalidate(cfg *tenant.Config, issuer string) {
	if cfg == nil {
		return
	}
	key := (TrustAnchor{TenantID: cfg.ID, Issuer: issuer}).cacheKey()

	s.mu.Lock()
	defer s.mu.Unlock()

	old := *s.snapshot.Load()
	if _, ok := old[key]; !ok {
		return
	}
	next := make(map[string]*keySet, len(old))
	for k, v := range old {
		if k != key {
			next[k] = v
		}
	}
	s.snapshot.Store(&next)
}
