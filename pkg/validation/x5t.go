package validation

import (
	"context"
	"crypto/subtle"

	"github.com/StricklySoft/stricklysoft-trust/pkg/cert"
	"github.com/StricklySoft/stricklysoft-trust/pkg/token"
)

// CertificateBindingValidator checks the token's x5t#S256 confirmation
// against the thumbprint of the client certificate presented on this
// request (proof-of-possession binding). It is not part of the default
// chain: the [Service] appends it only for tenants that enable certificate
// binding, since enforcing it unconditionally would break deployments that
// are not certificate-bound.
//
// A token without a confirmation method is accepted when it names exactly
// one audience: such tokens are scoped to a single recipient and predate
// binding. Multi-audience tokens without a confirmation are rejected.
type CertificateBindingValidator struct {
	// Certificate is the client certificate presented on this request,
	// or nil when the caller presented none.
	Certificate *cert.Certificate
}

// Validate implements [Validator].
func (v CertificateBindingValidator) Validate(_ context.Context, tok *token.Token) Result {
	if tok == nil {
		return Invalid("No token passed to validate certificate thumbprint")
	}

	thumbprint, confirmed := tok.CnfThumbprint()
	if !confirmed {
		if len(tok.Audiences()) == 1 {
			return Valid()
		}
		return Invalid("Token doesn't contain certificate thumbprint confirmation method")
	}

	if v.Certificate == nil {
		return Invalid("Client certificate missing from SecurityContext")
	}
	if subtle.ConstantTimeCompare([]byte(thumbprint), []byte(v.Certificate.Thumbprint())) != 1 {
		return Invalid("Certificate thumbprint validation failed")
	}
	return Valid()
}
