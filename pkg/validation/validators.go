package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/StricklySoft/stricklysoft-trust/pkg/tenant"
	"github.com/StricklySoft/stricklysoft-trust/pkg/token"
)

// DefaultClockSkew is the tolerated clock difference between the issuer
// and this service for time-based checks.
const DefaultClockSkew = 60 * time.Second

// ExpiryValidator checks the token's "exp" and "nbf" claims against the
// current time with a clock-skew leeway. A token without an expiration is
// rejected: unbounded tokens are not accepted.
type ExpiryValidator struct {
	// Skew is the tolerated clock difference. Zero means
	// [DefaultClockSkew].
	Skew time.Duration

	// Now overrides the time source for tests. Nil means [time.Now].
	Now func() time.Time
}

// Validate implements [Validator].
func (v ExpiryValidator) Validate(_ context.Context, tok *token.Token) Result {
	skew := v.Skew
	if skew <= 0 {
		skew = DefaultClockSkew
	}
	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}

	exp, present, err := tok.Expiration()
	if err != nil {
		return Invalid("token expiration claim is malformed")
	}
	if !present {
		return Invalid("token has no expiration")
	}
	if now.After(exp.Add(skew)) {
		return Invalid("token has expired")
	}

	nbf, present, err := tok.ClaimAsTime(token.ClaimNotBefore)
	if err != nil {
		return Invalid("token not-before claim is malformed")
	}
	if present && now.Add(skew).Before(nbf) {
		return Invalid("token is not valid yet")
	}
	return Valid()
}

// IssuerValidator checks the token's "iss" claim against the tenant's
// trusted issuers. Matching is exact apart from a trailing slash; there is
// no closest match and no normalization beyond that.
type IssuerValidator struct {
	Tenant *tenant.Config
}

// Validate implements [Validator].
func (v IssuerValidator) Validate(_ context.Context, tok *token.Token) Result {
	issuer, present, err := tok.ClaimAsString(token.ClaimIssuer)
	if err != nil {
		return Invalid("token issuer claim is malformed")
	}
	if !present || issuer == "" {
		return Invalid("token has no issuer")
	}
	if v.Tenant == nil || !v.Tenant.TrustsIssuer(issuer) {
		return Invalid(fmt.Sprintf("issuer %q is not trusted", issuer))
	}
	return Valid()
}

// AudienceValidator checks that the token was issued for this service: the
// "aud" claim must contain the configured client id. Audience entries may
// carry a suffix after a dot (granted-authority form); only the part
// before the first dot is compared. When the token has no "aud" claim,
// audiences are derived from the scope claim's "appid.scope" entries, as
// some issuers omit the audience for tokens carrying only scopes.
type AudienceValidator struct {
	ClientID string
}

// Validate implements [Validator].
func (v AudienceValidator) Validate(_ context.Context, tok *token.Token) Result {
	audiences := tok.Audiences()
	if len(audiences) == 0 {
		audiences = audiencesFromScopes(tok.Scopes())
	}
	if len(audiences) == 0 {
		return Invalid("token has no audience")
	}
	for _, aud := range audiences {
		if base, _, _ := strings.Cut(aud, "."); base == v.ClientID {
			return Valid()
		}
	}
	return Invalid(fmt.Sprintf("audience does not include client %q", v.ClientID))
}

// audiencesFromScopes derives audience candidates from scopes of the form
// "appid.scope".
func audiencesFromScopes(scopes []string) []string {
	var audiences []string
	seen := make(map[string]struct{})
	for _, scope := range scopes {
		base, _, found := strings.Cut(scope, ".")
		if !found || base == "" {
			continue
		}
		if _, dup := seen[base]; dup {
			continue
		}
		seen[base] = struct{}{}
		audiences = append(audiences, base)
	}
	return audiences
}

// ScopeValidator checks that the token carries every required scope.
// Scope names are compared exactly; call sites that use prefixed scopes
// ("appid.Display") must require the prefixed form.
type ScopeValidator struct {
	Required []string
}

// Validate implements [Validator].
func (v ScopeValidator) Validate(_ context.Context, tok *token.Token) Result {
	granted := make(map[string]struct{})
	for _, scope := range tok.Scopes() {
		granted[scope] = struct{}{}
	}
	for _, required := range v.Required {
		if _, ok := granted[required]; !ok {
			return Invalid(fmt.Sprintf("missing required scope %q", required))
		}
	}
	return Valid()
}
