package config

import (
	"testing"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
	"github.com/StricklySoft/stricklysoft-trust/pkg/tenant"

	"github.com/StricklySoft/stricklysoft-trust/internal/testutil"
)

const settingsYAML = `
tenancy:
  mode: multi
  tenants:
    - id: zone-a
      subdomain: acme
      issuers:
        - https://acme.auth.example.com
      client_id: sb-app!t42
      key_set_url: https://acme.auth.example.com/token_keys
      token_url: https://acme.auth.example.com/oauth/token
      certificate_binding: true
      clock_skew: 30s
    - id: zone-b
      issuers:
        - https://globex.auth.example.com
      client_id: sb-app!t7
      key_set_url: https://globex.auth.example.com/token_keys
trust:
  key_cache_ttl: 20m
  shared_cache: true
validation:
  result_cache_ttl: 2m
  result_cache_size: 500
broker:
  client_id: sb-app!t42
redis:
  addr: localhost:6379
postgres:
  uri: postgres://trust@localhost:5432/trust
`

func loadSettings(t *testing.T, yaml string) *Settings {
	t.Helper()
	path := testutil.TempConfigFile(t, yaml, "yaml")
	var s Settings
	if err := Load(&s, path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return &s
}

func assertSettingsError(t *testing.T, s *Settings, wantCode sserr.Code) {
	t.Helper()
	err := s.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	ssErr, ok := sserr.AsError(err)
	if !ok {
		t.Fatalf("expected *sserr.Error, got %T", err)
	}
	if ssErr.Code != wantCode {
		t.Errorf("code = %s, want %s (%v)", ssErr.Code, wantCode, err)
	}
}

// ============================================================================
// Loading
// ============================================================================

func TestSettingsLoadFromYAML(t *testing.T) {
	s := loadSettings(t, settingsYAML)

	if s.Tenancy.Mode != tenant.ModeMulti {
		t.Errorf("Mode = %q, want multi", s.Tenancy.Mode)
	}
	if len(s.Tenancy.Tenants) != 2 {
		t.Fatalf("len(Tenants) = %d, want 2", len(s.Tenancy.Tenants))
	}
	acme := s.Tenancy.Tenants[0]
	if acme.ID != "zone-a" || acme.Subdomain != "acme" || !acme.CertificateBinding {
		t.Errorf("unexpected first tenant: %+v", acme)
	}
	if acme.ClockSkew != 30*time.Second {
		t.Errorf("ClockSkew = %v, want 30s", acme.ClockSkew)
	}
	if s.Trust.KeyCacheTTL != 20*time.Minute {
		t.Errorf("KeyCacheTTL = %v, want 20m", s.Trust.KeyCacheTTL)
	}
	if !s.Trust.SharedCache {
		t.Error("SharedCache = false, want true")
	}
	if s.Validation.ResultCacheSize != 500 {
		t.Errorf("ResultCacheSize = %d, want 500", s.Validation.ResultCacheSize)
	}

	if err := s.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestSettingsDefaults(t *testing.T) {
	s := loadSettings(t, "tenancy:\n  default_tenant: zone-a\n")

	if s.Tenancy.Mode != tenant.ModeSingle {
		t.Errorf("Mode = %q, want default single", s.Tenancy.Mode)
	}
	if s.Trust.KeyCacheTTL != 15*time.Minute {
		t.Errorf("KeyCacheTTL = %v, want default 15m", s.Trust.KeyCacheTTL)
	}
	if s.Validation.ResultCacheTTL != 5*time.Minute {
		t.Errorf("ResultCacheTTL = %v, want default 5m", s.Validation.ResultCacheTTL)
	}
	if s.Validation.ResultCacheSize != 10000 {
		t.Errorf("ResultCacheSize = %d, want default 10000", s.Validation.ResultCacheSize)
	}
	if s.Broker.Timeout != 10*time.Second {
		t.Errorf("Broker.Timeout = %v, want default 10s", s.Broker.Timeout)
	}

	if err := s.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestSettingsEnvOverride(t *testing.T) {
	testutil.SetEnv(t, "TENANCY_MODE", "multi")
	testutil.SetEnv(t, "TRUST_KEY_CACHE_TTL", "1h")
	testutil.SetEnv(t, "BROKER_CLIENT_SECRET", "s3cr3t")

	s := loadSettings(t, "tenancy:\n  default_tenant: zone-a\n")

	if s.Tenancy.Mode != tenant.ModeMulti {
		t.Errorf("Mode = %q, want env override multi", s.Tenancy.Mode)
	}
	if s.Trust.KeyCacheTTL != time.Hour {
		t.Errorf("KeyCacheTTL = %v, want 1h", s.Trust.KeyCacheTTL)
	}
	if s.Broker.ClientSecret.Value() != "s3cr3t" {
		t.Error("ClientSecret not set from env")
	}
}

// ============================================================================
// Validation
// ============================================================================

func TestSettingsValidate(t *testing.T) {
	base := func() *Settings {
		return loadSettings(t, settingsYAML)
	}

	t.Run("single mode requires default tenant", func(t *testing.T) {
		s := base()
		s.Tenancy.Mode = tenant.ModeSingle
		s.Tenancy.DefaultTenant = ""
		assertSettingsError(t, s, sserr.CodeValidationRequired)
	})

	t.Run("unknown mode", func(t *testing.T) {
		s := base()
		s.Tenancy.Mode = "federated"
		assertSettingsError(t, s, sserr.CodeValidationFormat)
	})

	t.Run("duplicate tenant id", func(t *testing.T) {
		s := base()
		s.Tenancy.Tenants[1].ID = "zone-a"
		assertSettingsError(t, s, sserr.CodeValidation)
	})

	t.Run("invalid tenant config surfaces", func(t *testing.T) {
		s := base()
		s.Tenancy.Tenants[0].Issuers = nil
		assertSettingsError(t, s, sserr.CodeValidationRequired)
	})

	t.Run("non-positive cache ttl", func(t *testing.T) {
		s := base()
		s.Trust.KeyCacheTTL = 0
		assertSettingsError(t, s, sserr.CodeValidationRange)
	})

	t.Run("non-positive result cache size", func(t *testing.T) {
		s := base()
		s.Validation.ResultCacheSize = -1
		assertSettingsError(t, s, sserr.CodeValidationRange)
	})

	t.Run("shared cache without redis addr", func(t *testing.T) {
		s := base()
		s.Redis.Addr = ""
		assertSettingsError(t, s, sserr.CodeValidationRequired)
	})

	t.Run("invalid postgres config surfaces", func(t *testing.T) {
		s := base()
		s.Postgres.MaxConns = -1
		assertSettingsError(t, s, sserr.CodeValidationRange)
	})
}
