package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// HMACKey is a 32-byte HMAC signing key shared by HS256 token tests.
const HMACKey = "this-is-a-32-byte-test-signing-k"

// SignHS256 creates an HS256-signed token with the given claims.
// Fails the test immediately if signing fails.
func SignHS256(t testing.TB, key []byte, claims map[string]any) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims))
	raw, err := tok.SignedString(key)
	require.NoError(t, err, "failed to sign HS256 token")
	return raw
}

// GenerateRSAKey generates a 2048-bit RSA key pair for signing test tokens.
func GenerateRSAKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate RSA key pair")
	return key
}

// SignRS256 creates an RS256-signed token with the given claims and kid
// header.
func SignRS256(t testing.TB, key *rsa.PrivateKey, kid string, claims map[string]any) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims(claims))
	if kid != "" {
		tok.Header["kid"] = kid
	}
	raw, err := tok.SignedString(key)
	require.NoError(t, err, "failed to sign RS256 token")
	return raw
}

// StandardClaims returns a claim set that passes the default validator
// chain for the given issuer and audience, expiring one hour from now.
// Callers may override or extend individual claims before signing.
func StandardClaims(issuer, audience string) map[string]any {
	return map[string]any{
		"iss": issuer,
		"aud": audience,
		"sub": "user-abc-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

// JWKSServer serves a JWKS document for the given RSA public keys, keyed by
// kid, and counts the requests it receives. The counter lets cache and
// fetch-coalescing tests assert exactly how many network fetches occurred.
type JWKSServer struct {
	*httptest.Server
	hits atomic.Int64
}

// Hits returns the number of JWKS requests served so far.
func (s *JWKSServer) Hits() int64 { return s.hits.Load() }

// ServeJWKS starts an httptest server that serves a JWKS document
// containing the given RSA public keys. The server is closed automatically
// when the test finishes.
func ServeJWKS(t testing.TB, keys map[string]*rsa.PublicKey) *JWKSServer {
	t.Helper()

	type jwkEntry struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		Alg string `json:"alg,omitempty"`
		Use string `json:"use,omitempty"`
		N   string `json:"n,omitempty"`
		E   string `json:"e,omitempty"`
	}

	entries := make([]jwkEntry, 0, len(keys))
	for kid, pub := range keys {
		entries = append(entries, jwkEntry{
			Kty: "RSA",
			Kid: kid,
			Alg: "RS256",
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	doc, err := json.Marshal(map[string]any{"keys": entries})
	require.NoError(t, err, "failed to marshal JWKS document")

	srv := &JWKSServer{}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}
