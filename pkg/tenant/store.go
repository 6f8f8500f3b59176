package tenant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/StricklySoft/stricklysoft-trust/pkg/clients/postgres"
	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
)

// defaultStoreCacheTTL bounds how long a tenant configuration read from the
// database is reused before being re-read.
const defaultStoreCacheTTL = 5 * time.Minute

const (
	lookupQuery = `SELECT id, subdomain, issuers, client_id, key_set_url, token_url, certificate_binding, algorithms, clock_skew_ms
FROM tenants WHERE id = $1`

	subdomainQuery = `SELECT id FROM tenants WHERE lower(subdomain) = lower($1)`
)

// Store is a postgres-backed [Source] for deployments that onboard tenants
// dynamically instead of listing them in the service configuration.
//
// Lookups are cached with a TTL so that per-request resolution does not
// translate into per-request queries. The cache is read-through only:
// tenant updates become visible after at most one TTL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db  *postgres.Client
	ttl time.Duration

	mu          sync.RWMutex
	byID        map[string]storeEntry
	bySubdomain map[string]storeEntry
}

type storeEntry struct {
	cfg      *Config // nil for a cached subdomain mapping
	tenantID string
	expires  time.Time
}

// StoreOption configures a [Store].
type StoreOption func(*Store)

// WithStoreCacheTTL overrides the configuration cache TTL.
func WithStoreCacheTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewStore creates a Store over the given postgres client.
func NewStore(db *postgres.Client, opts ...StoreOption) (*Store, error) {
	if db == nil {
		return nil, sserr.New(sserr.CodeValidationRequired, "tenant: postgres client must not be nil")
	}
	s := &Store{
		db:          db,
		ttl:         defaultStoreCacheTTL,
		byID:        make(map[string]storeEntry),
		bySubdomain: make(map[string]storeEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Lookup implements [Source]. A tenant id with no row maps to
// [sserr.CodeTenantUnknown]; database failures surface as-is so callers can
// distinguish "unknown tenant" from "store unavailable".
func (s *Store) Lookup(ctx context.Context, tenantID string) (*Config, error) {
	s.mu.RLock()
	entry, ok := s.byID[tenantID]
	s.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.cfg, nil
	}

	cfg, err := s.queryConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.byID[tenantID] = storeEntry{cfg: cfg, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return cfg, nil
}

// Subdomain implements [Source]. Database failures are reported as "no
// tenant": subdomain resolution is one indicator among several, and the
// resolver's fail-closed behavior rejects the request anyway when nothing
// else identifies the tenant.
func (s *Store) Subdomain(ctx context.Context, subdomain string) (string, bool) {
	key := strings.ToLower(subdomain)

	s.mu.RLock()
	entry, ok := s.bySubdomain[key]
	s.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.tenantID, entry.tenantID != ""
	}

	var id string
	row := s.db.QueryRow(ctx, subdomainQuery, subdomain)
	switch err := row.Scan(&id); {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		id = ""
	default:
		return "", false
	}

	s.mu.Lock()
	s.bySubdomain[key] = storeEntry{tenantID: id, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return id, id != ""
}

func (s *Store) queryConfig(ctx context.Context, tenantID string) (*Config, error) {
	var (
		cfg         Config
		subdomain   *string
		tokenURL    *string
		algorithms  []string
		clockSkewMS int64
	)
	row := s.db.QueryRow(ctx, lookupQuery, tenantID)
	err := row.Scan(&cfg.ID, &subdomain, &cfg.Issuers, &cfg.ClientID,
		&cfg.KeySetURL, &tokenURL, &cfg.CertificateBinding, &algorithms, &clockSkewMS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sserr.Newf(sserr.CodeTenantUnknown, "no trust configuration for tenant %q", tenantID)
	}
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalDatabase, "tenant: configuration lookup failed")
	}
	if subdomain != nil {
		cfg.Subdomain = *subdomain
	}
	if tokenURL != nil {
		cfg.TokenURL = *tokenURL
	}
	cfg.Algorithms = algorithms
	cfg.ClockSkew = time.Duration(clockSkewMS) * time.Millisecond
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
