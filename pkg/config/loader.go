// Package config loads the Trust SDK's service configuration from a YAML
// file with environment-variable overrides. Values resolve in priority
// order:
//
//	default struct tags    (lowest priority)
//	YAML config file       (medium priority)
//	environment variables  (highest priority)
//
// Sensible defaults are baked into the code, the config file carries the
// deployment-specific settings including the per-tenant trust map, and env
// vars (from ConfigMaps or Secrets) take final precedence.
//
// YAML values are applied through the same field setter as defaults and
// env vars, so durations are written the natural way ("30s", "15m") in
// all three layers.
//
// # Struct Tags
//
//   - `yaml:"name"` — maps the field for file-based loading ("-" skips it)
//   - `env:"VAR_NAME"` — maps the field to an environment variable
//   - `default:"value"` — sets a default when the field is zero-valued
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
)

// durationType distinguishes time.Duration fields from plain int64: both
// have Kind() == Int64 but Duration values parse with time.ParseDuration.
var durationType = reflect.TypeOf(time.Duration(0))

// Validator is an optional interface configuration structs may implement
// for cross-field validation. When the struct passed to [Load] implements
// it, Validate is called after loading.
type Validator interface {
	Validate() error
}

// Load populates the given struct pointer: defaults first, then the YAML
// file at path (optional; a missing file is not an error), then env
// overrides, then validation.
//
// Returns a *[sserr.Error] with code [sserr.CodeInternalConfiguration]
// for loading failures or a validation code for invalid settings.
func Load(cfg any, path string) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a pointer to a struct")
	}

	if err := applyDefaults(rv); err != nil {
		return err
	}
	if path != "" {
		if err := loadFile(rv, path); err != nil {
			return err
		}
	}
	if err := applyEnv(rv); err != nil {
		return err
	}

	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			if _, isSSErr := sserr.AsError(err); isSSErr {
				return err
			}
			return sserr.Wrap(err, sserr.CodeValidation, "config: validation failed")
		}
	}
	return nil
}

// MustLoad loads configuration into a zero value of T and panics on
// failure. Use at startup, where invalid configuration should prevent the
// service from coming up at all.
func MustLoad[T any](path string) T {
	var cfg T
	if err := Load(&cfg, path); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

// loadFile reads the YAML file and applies its values field by field. A
// missing file is not an error; file-based configuration is optional.
func loadFile(rv reflect.Value, path string) error {
	if strings.Contains(path, "..") {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to read file %q", path)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to parse YAML file %q", path)
	}
	if err := applyMapping(rv, doc); err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: invalid value in file %q", path)
	}
	return nil
}

// yamlFieldName resolves the mapping key for a struct field: the yaml tag
// if present, otherwise the lowercased field name. Returns "" for fields
// tagged yaml:"-".
func yamlFieldName(sf reflect.StructField) string {
	tag := sf.Tag.Get("yaml")
	if tag == "" {
		return strings.ToLower(sf.Name)
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return strings.ToLower(sf.Name)
	}
	return name
}

// applyMapping sets struct fields from a decoded YAML mapping, recursing
// into nested structs and slices of structs. Unknown keys are ignored.
func applyMapping(rv reflect.Value, doc map[string]any) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		name := yamlFieldName(sf)
		if name == "" {
			continue
		}
		value, ok := doc[name]
		if !ok || value == nil {
			continue
		}

		switch {
		case field.Kind() == reflect.Struct && sf.Type != durationType:
			nested, ok := value.(map[string]any)
			if !ok {
				return fmt.Errorf("field %q: expected a mapping, got %T", name, value)
			}
			if err := applyMapping(field, nested); err != nil {
				return err
			}

		case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Struct:
			items, ok := value.([]any)
			if !ok {
				return fmt.Errorf("field %q: expected a sequence, got %T", name, value)
			}
			slice := reflect.MakeSlice(field.Type(), len(items), len(items))
			for j, item := range items {
				nested, ok := item.(map[string]any)
				if !ok {
					return fmt.Errorf("field %q[%d]: expected a mapping, got %T", name, j, item)
				}
				if err := applyMapping(slice.Index(j), nested); err != nil {
					return err
				}
			}
			field.Set(slice)

		default:
			if err := setFieldValue(field, value); err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
		}
	}
	return nil
}

// applyDefaults recursively sets zero-valued fields to their default tag
// values.
func applyDefaults(rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}
		tag := sf.Tag.Get("default")
		if tag == "" || !field.IsZero() {
			continue
		}
		if err := setField(field, tag); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to apply default for field %q", sf.Name)
		}
	}
	return nil
}

// applyEnv recursively sets fields from the environment variables named by
// their env tags.
func applyEnv(rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := applyEnv(field); err != nil {
				return err
			}
			continue
		}
		envKey := sf.Tag.Get("env")
		if envKey == "" {
			continue
		}
		val, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}
		if err := setField(field, val); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to set field %q from env var %q", sf.Name, envKey)
		}
	}
	return nil
}

// setFieldValue assigns a decoded YAML value to a field, converting
// scalars through setField so durations and named string types behave the
// same as in the default and env layers.
func setFieldValue(field reflect.Value, value any) error {
	switch v := value.(type) {
	case string:
		return setField(field, v)
	case bool:
		if field.Kind() != reflect.Bool {
			return fmt.Errorf("cannot assign bool to %s field", field.Kind())
		}
		field.SetBool(v)
		return nil
	case int:
		return setIntValue(field, int64(v))
	case int64:
		return setIntValue(field, v)
	case float64:
		return setIntValue(field, int64(v))
	case []any:
		if field.Kind() != reflect.Slice || field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("cannot assign sequence to %s field", field.Kind())
		}
		slice := reflect.MakeSlice(field.Type(), len(v), len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("sequence element %d is %T, expected string", i, item)
			}
			slice.Index(i).SetString(s)
		}
		field.Set(slice)
		return nil
	default:
		return fmt.Errorf("unsupported value type %T", value)
	}
}

func setIntValue(field reflect.Value, n int64) error {
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		field.SetInt(n)
		return nil
	default:
		return fmt.Errorf("cannot assign integer to %s field", field.Kind())
	}
}

// setField parses the string value according to the field's type.
// Supported: string (including named string types like secret.Secret),
// bool, signed integers, time.Duration, and []string (comma-separated).
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)

	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
