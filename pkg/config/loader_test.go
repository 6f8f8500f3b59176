package config

import (
	"strings"
	"testing"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
	"github.com/StricklySoft/stricklysoft-trust/pkg/secret"

	"github.com/StricklySoft/stricklysoft-trust/internal/testutil"
)

// testConfig exercises every supported field type.
type testConfig struct {
	Name     string        `yaml:"name" env:"TEST_NAME" default:"trust"`
	Port     int           `yaml:"port" env:"TEST_PORT" default:"8080"`
	Debug    bool          `yaml:"debug" env:"TEST_DEBUG" default:"false"`
	Timeout  time.Duration `yaml:"timeout" env:"TEST_TIMEOUT" default:"30s"`
	Scopes   []string      `yaml:"scopes" env:"TEST_SCOPES"`
	Password secret.Secret `yaml:"-" env:"TEST_PASSWORD"`

	Nested nestedConfig `yaml:"nested"`
}

type nestedConfig struct {
	Level string `yaml:"level" env:"TEST_NESTED_LEVEL" default:"info"`
}

// validatedConfig implements Validator.
type validatedConfig struct {
	Port int `yaml:"port" env:"TEST_V_PORT" default:"8080"`
}

func (c *validatedConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return sserr.Newf(sserr.CodeValidationRange, "port %d out of range", c.Port)
	}
	return nil
}

// ============================================================================
// Defaults
// ============================================================================

func TestLoadDefaults(t *testing.T) {
	var cfg testConfig
	if err := Load(&cfg, ""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "trust" {
		t.Errorf("Name = %q, want %q", cfg.Name, "trust")
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.Nested.Level != "info" {
		t.Errorf("Nested.Level = %q, want %q", cfg.Nested.Level, "info")
	}
}

func TestLoadDefaultsDoNotOverwrite(t *testing.T) {
	cfg := testConfig{Port: 9090}
	if err := Load(&cfg, ""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want preset 9090", cfg.Port)
	}
}

// ============================================================================
// YAML file loading
// ============================================================================

func TestLoadYAMLFile(t *testing.T) {
	path := testutil.TempConfigFile(t, `
name: from-file
port: 9000
debug: true
timeout: 45s
scopes:
  - display
  - admin
nested:
  level: debug
`, "yaml")

	var cfg testConfig
	if err := Load(&cfg, path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "from-file" {
		t.Errorf("Name = %q, want %q", cfg.Name, "from-file")
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Timeout)
	}
	if len(cfg.Scopes) != 2 || cfg.Scopes[0] != "display" || cfg.Scopes[1] != "admin" {
		t.Errorf("Scopes = %v, want [display admin]", cfg.Scopes)
	}
	if cfg.Nested.Level != "debug" {
		t.Errorf("Nested.Level = %q, want %q", cfg.Nested.Level, "debug")
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	var cfg testConfig
	if err := Load(&cfg, "/nonexistent/config.yaml"); err != nil {
		t.Fatalf("Load with missing file failed: %v", err)
	}
	if cfg.Name != "trust" {
		t.Errorf("Name = %q, want default %q", cfg.Name, "trust")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := testutil.TempConfigFile(t, "name: [unclosed", "yaml")

	var cfg testConfig
	err := Load(&cfg, path)
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
	ssErr, ok := sserr.AsError(err)
	if !ok {
		t.Fatalf("expected *sserr.Error, got %T", err)
	}
	if ssErr.Code != sserr.CodeInternalConfiguration {
		t.Errorf("code = %s, want %s", ssErr.Code, sserr.CodeInternalConfiguration)
	}
}

func TestLoadRejectsPathTraversal(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg, "../../etc/passwd")
	if err == nil {
		t.Fatal("expected error for traversal path")
	}
	if !strings.Contains(err.Error(), "traversal") {
		t.Errorf("error = %q, want mention of traversal", err)
	}
}

// ============================================================================
// Environment overrides
// ============================================================================

func TestLoadEnvOverridesFileAndDefaults(t *testing.T) {
	path := testutil.TempConfigFile(t, "name: from-file\nport: 9000\n", "yaml")
	testutil.SetEnv(t, "TEST_NAME", "from-env")
	testutil.SetEnv(t, "TEST_TIMEOUT", "2m")
	testutil.SetEnv(t, "TEST_SCOPES", "read, write")
	testutil.SetEnv(t, "TEST_PASSWORD", "hunter2")

	var cfg testConfig
	if err := Load(&cfg, path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "from-env" {
		t.Errorf("Name = %q, want env value %q", cfg.Name, "from-env")
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want file value 9000", cfg.Port)
	}
	if cfg.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v, want 2m", cfg.Timeout)
	}
	if len(cfg.Scopes) != 2 || cfg.Scopes[1] != "write" {
		t.Errorf("Scopes = %v, want trimmed [read write]", cfg.Scopes)
	}
	if cfg.Password.Value() != "hunter2" {
		t.Error("Password not set from env")
	}
}

func TestLoadEnvParseFailure(t *testing.T) {
	testutil.SetEnv(t, "TEST_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg, "")
	if err == nil {
		t.Fatal("expected error for unparseable env value")
	}
	ssErr, ok := sserr.AsError(err)
	if !ok || ssErr.Code != sserr.CodeInternalConfiguration {
		t.Errorf("expected %s, got %v", sserr.CodeInternalConfiguration, err)
	}
}

// ============================================================================
// Validation hook and argument checks
// ============================================================================

func TestLoadCallsValidator(t *testing.T) {
	testutil.SetEnv(t, "TEST_V_PORT", "99999")

	var cfg validatedConfig
	err := Load(&cfg, "")
	if err == nil {
		t.Fatal("expected validation error")
	}
	ssErr, ok := sserr.AsError(err)
	if !ok || ssErr.Code != sserr.CodeValidationRange {
		t.Errorf("expected %s, got %v", sserr.CodeValidationRange, err)
	}
}

func TestLoadRejectsNonPointer(t *testing.T) {
	if err := Load(testConfig{}, ""); err == nil {
		t.Error("expected error for non-pointer argument")
	}
	var p *testConfig
	if err := Load(p, ""); err == nil {
		t.Error("expected error for nil pointer")
	}
	var s string
	if err := Load(&s, ""); err == nil {
		t.Error("expected error for pointer to non-struct")
	}
}

func TestMustLoadPanicsOnFailure(t *testing.T) {
	testutil.SetEnv(t, "TEST_PORT", "bad")
	defer func() {
		if recover() == nil {
			t.Error("expected MustLoad to panic")
		}
	}()
	_ = MustLoad[testConfig]("")
}
