// Package token implements the claim model for bearer access tokens: parsing
// a compact-serialized JWT into an immutable structured claim set with typed
// accessors.
//
// This package performs no validation. It decodes the three base64url
// segments, unmarshals header and payload JSON, and exposes the claims
// read-only. Signature verification and claim validation live in
// pkg/validation; key resolution lives in pkg/trust.
//
// # Absent vs. Wrong Shape
//
// Claim accessors distinguish a missing claim from a malformed one. A missing
// claim is reported via the boolean return (present == false) with a nil
// error; a claim that is present but has the wrong shape returns an error
// with code [sserr.CodeTokenClaimShape]. Callers that treat absence as valid
// (e.g., the certificate-binding validator when disabled) rely on this
// distinction.
package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
)

// Well-known claim and header names used across the SDK.
const (
	// ClaimIssuer is the standard "iss" claim naming the token issuer.
	ClaimIssuer = "iss"

	// ClaimAudience is the standard "aud" claim; a string or string list.
	ClaimAudience = "aud"

	// ClaimExpiration is the standard "exp" claim, seconds since epoch.
	ClaimExpiration = "exp"

	// ClaimNotBefore is the standard "nbf" claim, seconds since epoch.
	ClaimNotBefore = "nbf"

	// ClaimSubject is the standard "sub" claim.
	ClaimSubject = "sub"

	// ClaimScope carries granted scopes; a string list or space-separated
	// string depending on the issuer.
	ClaimScope = "scope"

	// ClaimZoneID carries the tenant (identity zone) id the token was
	// issued in.
	ClaimZoneID = "zid"

	// ClaimUserName carries the authenticated user name.
	ClaimUserName = "user_name"

	// ClaimClientID carries the OAuth2 client the token was issued to.
	ClaimClientID = "client_id"

	// ClaimCnf is the confirmation claim, a nested object binding the
	// token to key material presented by the caller.
	ClaimCnf = "cnf"

	// ClaimCnfX5t is the certificate-thumbprint member of the cnf claim:
	// the base64url-encoded SHA-256 hash of the client certificate.
	ClaimCnfX5t = "x5t#S256"

	// HeaderAlgorithm is the "alg" header naming the signing algorithm.
	HeaderAlgorithm = "alg"

	// HeaderKeyID is the "kid" header naming the verification key.
	HeaderKeyID = "kid"
)

// maxTokenSize is the maximum accepted size for a token string (8 KB).
// Tokens larger than this are rejected to prevent resource exhaustion.
const maxTokenSize = 8192

// Token is an immutable view over a parsed access token: decoded header and
// payload claims plus the original compact encoding. Once constructed, the
// claims are never mutated; re-parsing the same input produces an equal
// Token.
//
// Token is safe for concurrent use by multiple goroutines.
type Token struct {
	raw          string
	header       map[string]any
	claims       map[string]any
	signingInput string
	signature    []byte
}

// Parse decodes a compact-serialized token string into a Token. It fails
// with a *[sserr.Error] of code [sserr.CodeTokenMalformed] when the input
// does not have exactly three segments, a segment is not valid base64url,
// or the header or payload is not a JSON object.
//
// Parse performs no signature or claim validation.
func Parse(raw string) (*Token, error) {
	if raw == "" {
		return nil, sserr.New(sserr.CodeTokenMalformed, "token must not be empty")
	}
	if len(raw) > maxTokenSize {
		return nil, sserr.New(sserr.CodeTokenMalformed, "token exceeds maximum size")
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, sserr.Newf(sserr.CodeTokenMalformed, "token has %d segments, expected 3", len(parts))
	}

	header, err := decodeSegment(parts[0])
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeTokenMalformed, "token header segment is invalid")
	}
	claims, err := decodeSegment(parts[1])
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeTokenMalformed, "token payload segment is invalid")
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeTokenMalformed, "token signature segment is invalid")
	}

	return &Token{
		raw:          raw,
		header:       header,
		claims:       claims,
		signingInput: parts[0] + "." + parts[1],
		signature:    signature,
	}, nil
}

// decodeSegment base64url-decodes one token segment and unmarshals it as a
// JSON object.
func decodeSegment(seg string) (map[string]any, error) {
	data, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return nil, fmt.Errorf("invalid base64url encoding: %w", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return obj, nil
}

// Raw returns the original compact encoding the token was parsed from.
func (t *Token) Raw() string { return t.raw }

// SigningInput returns the "header.payload" portion of the compact encoding,
// the byte sequence the signature is computed over.
func (t *Token) SigningInput() string { return t.signingInput }

// Signature returns the decoded signature bytes.
func (t *Token) Signature() []byte {
	sig := make([]byte, len(t.signature))
	copy(sig, t.signature)
	return sig
}

// Algorithm returns the "alg" value from the token header, or the empty
// string if absent or not a string.
func (t *Token) Algorithm() string {
	alg, _ := t.header[HeaderAlgorithm].(string)
	return alg
}

// KeyID returns the "kid" value from the token header, or the empty string
// if absent or not a string.
func (t *Token) KeyID() string {
	kid, _ := t.header[HeaderKeyID].(string)
	return kid
}

// Claims returns a shallow copy of the payload claims. Each call returns a
// new map, so callers may modify the result without affecting the token.
func (t *Token) Claims() map[string]any {
	copied := make(map[string]any, len(t.claims))
	for k, v := range t.claims {
		copied[k] = v
	}
	return copied
}

// HasClaim reports whether the named claim is present in the payload,
// regardless of its shape.
func (t *Token) HasClaim(name string) bool {
	_, ok := t.claims[name]
	return ok
}

// ClaimAsString returns the named claim as a string. A missing claim
// returns ("", false, nil). A claim that is present but not a string
// returns an error with code [sserr.CodeTokenClaimShape].
func (t *Token) ClaimAsString(name string) (string, bool, error) {
	v, ok := t.claims[name]
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", true, sserr.Newf(sserr.CodeTokenClaimShape, "claim %q is not a string", name)
	}
	return s, true, nil
}

// ClaimAsObject returns the named claim as a nested JSON object. A missing
// claim returns (nil, false, nil). A claim that is present but not an
// object returns an error with code [sserr.CodeTokenClaimShape].
//
// The returned map is a shallow copy.
func (t *Token) ClaimAsObject(name string) (map[string]any, bool, error) {
	v, ok := t.claims[name]
	if !ok {
		return nil, false, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, true, sserr.Newf(sserr.CodeTokenClaimShape, "claim %q is not an object", name)
	}
	copied := make(map[string]any, len(obj))
	for k, val := range obj {
		copied[k] = val
	}
	return copied, true, nil
}

// ClaimAsStringList returns the named claim as a list of strings. A single
// string value is returned as a one-element list, matching how issuers emit
// single-valued "aud" claims. A missing claim returns (nil, false, nil);
// any other shape returns an error with code [sserr.CodeTokenClaimShape].
func (t *Token) ClaimAsStringList(name string) ([]string, bool, error) {
	v, ok := t.claims[name]
	if !ok {
		return nil, false, nil
	}
	switch val := v.(type) {
	case string:
		return []string{val}, true, nil
	case []any:
		list := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, true, sserr.Newf(sserr.CodeTokenClaimShape, "claim %q contains a non-string element", name)
			}
			list = append(list, s)
		}
		return list, true, nil
	default:
		return nil, true, sserr.Newf(sserr.CodeTokenClaimShape, "claim %q is not a string list", name)
	}
}

// ClaimAsTime returns the named claim as a time. Numeric claims are read as
// seconds since the Unix epoch, the shape of the standard "exp" and "nbf"
// claims. A missing claim returns (zero, false, nil).
func (t *Token) ClaimAsTime(name string) (time.Time, bool, error) {
	v, ok := t.claims[name]
	if !ok {
		return time.Time{}, false, nil
	}
	switch val := v.(type) {
	case float64:
		sec, frac := int64(val), val-float64(int64(val))
		return time.Unix(sec, int64(frac*float64(time.Second))), true, nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return time.Time{}, true, sserr.Newf(sserr.CodeTokenClaimShape, "claim %q is not a numeric date", name)
		}
		return time.Unix(int64(f), 0), true, nil
	case string:
		sec, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return time.Time{}, true, sserr.Newf(sserr.CodeTokenClaimShape, "claim %q is not a numeric date", name)
		}
		return time.Unix(int64(sec), 0), true, nil
	default:
		return time.Time{}, true, sserr.Newf(sserr.CodeTokenClaimShape, "claim %q is not a numeric date", name)
	}
}

// Expiration returns the token's "exp" claim.
func (t *Token) Expiration() (time.Time, bool, error) {
	return t.ClaimAsTime(ClaimExpiration)
}

// Audiences returns the token's "aud" claim as a string list, or nil when
// absent or malformed.
func (t *Token) Audiences() []string {
	aud, _, err := t.ClaimAsStringList(ClaimAudience)
	if err != nil {
		return nil
	}
	return aud
}

// Scopes returns the token's granted scopes. The "scope" claim may be a
// string list or a single space-separated string; both shapes normalize to
// a list. Returns nil when absent or malformed.
func (t *Token) Scopes() []string {
	v, ok := t.claims[ClaimScope]
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case string:
		return strings.Fields(val)
	default:
		scopes, _, err := t.ClaimAsStringList(ClaimScope)
		if err != nil {
			return nil
		}
		return scopes
	}
}

// ZoneID returns the tenant (identity zone) id from the "zid" claim, or the
// empty string when absent.
func (t *Token) ZoneID() string {
	zid, _, _ := t.ClaimAsString(ClaimZoneID)
	return zid
}

// CnfThumbprint extracts the "x5t#S256" member of the confirmation claim.
// Returns ("", false) when the cnf claim or its thumbprint member is absent
// or malformed — absence of the confirmation method is valid and distinct
// from a failed comparison.
func (t *Token) CnfThumbprint() (string, bool) {
	cnf, present, err := t.ClaimAsObject(ClaimCnf)
	if err != nil || !present {
		return "", false
	}
	thumbprint, ok := cnf[ClaimCnfX5t].(string)
	if !ok || thumbprint == "" {
		return "", false
	}
	return thumbprint, true
}

// Equal reports whether two tokens were parsed from the same input bytes.
func (t *Token) Equal(other *Token) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.raw == other.raw
}
