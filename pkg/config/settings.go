package config

import (
	"time"

	"github.com/StricklySoft/stricklysoft-trust/pkg/clients/postgres"
	"github.com/StricklySoft/stricklysoft-trust/pkg/clients/redis"
	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
	"github.com/StricklySoft/stricklysoft-trust/pkg/secret"
	"github.com/StricklySoft/stricklysoft-trust/pkg/tenant"
)

// Settings is the top-level configuration for a service embedding the
// Trust SDK. It covers tenant resolution, the trust store, token
// validation, the token broker client, and the backing stores.
//
// Load it at startup:
//
//	settings := config.MustLoad[config.Settings]("/etc/trust/config.yaml")
type Settings struct {
	Tenancy    TenancySettings    `yaml:"tenancy"`
	Trust      TrustSettings      `yaml:"trust"`
	Validation ValidationSettings `yaml:"validation"`
	Broker     BrokerSettings     `yaml:"broker"`
	Postgres   postgres.Config    `yaml:"postgres"`
	Redis      redis.Config       `yaml:"redis"`
}

// TenancySettings configures tenant resolution.
type TenancySettings struct {
	// Mode selects single- or multi-tenant resolution.
	Mode tenant.Mode `yaml:"mode" env:"TENANCY_MODE" default:"single"`

	// DefaultTenant names the tenant used in single mode. Required when
	// Mode is "single".
	DefaultTenant string `yaml:"default_tenant" env:"TENANCY_DEFAULT_TENANT"`

	// Tenants is the static trust map. Services that resolve tenants
	// from PostgreSQL instead leave it empty and set Postgres.URI.
	Tenants []tenant.Config `yaml:"tenants"`
}

// TrustSettings configures verification-key caching.
type TrustSettings struct {
	// KeyCacheTTL bounds how long a fetched key set is served without a
	// refresh.
	KeyCacheTTL time.Duration `yaml:"key_cache_ttl" env:"TRUST_KEY_CACHE_TTL" default:"15m"`

	// SharedCache enables the Redis-backed second-level key set cache
	// shared across replicas.
	SharedCache bool `yaml:"shared_cache" env:"TRUST_SHARED_CACHE"`
}

// ValidationSettings configures the token validation service.
type ValidationSettings struct {
	// ResultCacheTTL bounds how long a successful validation outcome is
	// reused for an identical token.
	ResultCacheTTL time.Duration `yaml:"result_cache_ttl" env:"VALIDATION_RESULT_CACHE_TTL" default:"5m"`

	// ResultCacheSize caps the number of cached validation outcomes.
	ResultCacheSize int `yaml:"result_cache_size" env:"VALIDATION_RESULT_CACHE_SIZE" default:"10000"`
}

// BrokerSettings carries the client credentials presented to tenant
// token endpoints for password grants.
type BrokerSettings struct {
	ClientID     string        `yaml:"client_id" env:"BROKER_CLIENT_ID"`
	ClientSecret secret.Secret `yaml:"-" env:"BROKER_CLIENT_SECRET"`

	// Timeout bounds a single token endpoint exchange.
	Timeout time.Duration `yaml:"timeout" env:"BROKER_TIMEOUT" default:"10s"`
}

// Validate checks the settings for logical correctness. Backing-store
// configs are validated only when set, since not every deployment uses
// both stores.
func (s *Settings) Validate() error {
	switch s.Tenancy.Mode {
	case tenant.ModeSingle:
		if s.Tenancy.DefaultTenant == "" {
			return sserr.New(sserr.CodeValidationRequired,
				"config: tenancy.default_tenant is required in single mode")
		}
	case tenant.ModeMulti:
	default:
		return sserr.Newf(sserr.CodeValidationFormat,
			"config: unknown tenancy mode %q", s.Tenancy.Mode)
	}

	seen := make(map[string]struct{}, len(s.Tenancy.Tenants))
	for i := range s.Tenancy.Tenants {
		cfg := &s.Tenancy.Tenants[i]
		if err := cfg.Validate(); err != nil {
			return err
		}
		if _, dup := seen[cfg.ID]; dup {
			return sserr.Newf(sserr.CodeValidation,
				"config: duplicate tenant id %q", cfg.ID)
		}
		seen[cfg.ID] = struct{}{}
	}

	if s.Trust.KeyCacheTTL <= 0 {
		return sserr.New(sserr.CodeValidationRange,
			"config: trust.key_cache_ttl must be positive")
	}
	if s.Validation.ResultCacheTTL <= 0 {
		return sserr.New(sserr.CodeValidationRange,
			"config: validation.result_cache_ttl must be positive")
	}
	if s.Validation.ResultCacheSize <= 0 {
		return sserr.New(sserr.CodeValidationRange,
			"config: validation.result_cache_size must be positive")
	}
	if s.Broker.Timeout <= 0 {
		return sserr.New(sserr.CodeValidationRange,
			"config: broker.timeout must be positive")
	}

	if s.Postgres.URI != "" {
		if err := s.Postgres.Validate(); err != nil {
			return err
		}
	}
	if s.Redis.Addr != "" {
		if err := s.Redis.Validate(); err != nil {
			return err
		}
	}
	if s.Trust.SharedCache && s.Redis.Addr == "" {
		return sserr.New(sserr.CodeValidationRequired,
			"config: trust.shared_cache requires redis.addr")
	}
	return nil
}
