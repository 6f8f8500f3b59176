package validation

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAlgorithms is the signing-algorithm allow-list applied when a
// tenant does not configure its own. Asymmetric algorithms only: bearer
// validation never holds a shared secret, so HMAC family algorithms are
// excluded to keep key-confusion attacks structurally impossible.
var DefaultAlgorithms = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// SignatureVerifier verifies a token's signature over its signing input
// with an explicit algorithm allow-list. The token's own "alg" header
// never selects an algorithm outside the list, and "none" is rejected
// unconditionally.
type SignatureVerifier struct {
	allowed map[string]struct{}
}

// NewSignatureVerifier creates a verifier accepting only the given
// algorithms. An empty list means [DefaultAlgorithms].
func NewSignatureVerifier(algorithms []string) *SignatureVerifier {
	if len(algorithms) == 0 {
		algorithms = DefaultAlgorithms
	}
	allowed := make(map[string]struct{}, len(algorithms))
	for _, alg := range algorithms {
		if strings.EqualFold(alg, "none") {
			continue
		}
		allowed[alg] = struct{}{}
	}
	return &SignatureVerifier{allowed: allowed}
}

// Verify checks the signature of the given signing input against the key.
// The result carries "unsupported algorithm" when the algorithm is outside
// the allow-list or mismatches the key family, and "signature mismatch"
// when the signature does not verify.
func (v *SignatureVerifier) Verify(signingInput string, signature []byte, algorithm string, key any) Result {
	if algorithm == "" || strings.EqualFold(algorithm, "none") {
		return Invalid("unsupported algorithm")
	}
	if _, ok := v.allowed[algorithm]; !ok {
		return Invalid("unsupported algorithm")
	}

	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return Invalid("unsupported algorithm")
	}

	err := method.Verify(signingInput, signature, key)
	if err == nil {
		return Valid()
	}
	// A key of the wrong family (e.g., an EC key presented to an RSA
	// method) is an algorithm problem, not a bad signature.
	if errors.Is(err, jwt.ErrInvalidKeyType) || errors.Is(err, jwt.ErrInvalidKey) {
		return Invalid("unsupported algorithm")
	}
	return Invalid("signature mismatch")
}
