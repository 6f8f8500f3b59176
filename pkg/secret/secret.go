// Package secret provides a string type for sensitive values (client
// secrets, passwords, signing keys) that redacts itself in logs and
// serialized output.
package secret

// Secret is a string type that redacts its value in String(), GoString(),
// and MarshalText() to prevent accidental exposure in logs, JSON output, or
// fmt.Printf. The actual value is only accessible via the [Secret.Value]
// method, which should be called only where the raw value is truly needed
// (e.g., when writing credentials into an outbound request).
type Secret string

// redacted is the placeholder shown instead of the actual value when the
// secret is printed, formatted, or serialized.
const redacted = "[REDACTED]"

// String returns the redacted placeholder, preventing the secret from being
// printed via fmt.Println, log.Printf, or similar functions.
func (s Secret) String() string { return redacted }

// GoString returns the redacted placeholder, preventing the secret from
// being printed via fmt.Printf("%#v", secret).
func (s Secret) GoString() string { return redacted }

// Value returns the actual secret string. This is the only way to access
// the underlying value.
func (s Secret) Value() string { return string(s) }

// MarshalText implements [encoding.TextMarshaler], returning the redacted
// placeholder. This prevents the secret from leaking into JSON, YAML, or
// any other text-based serialization format.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }
