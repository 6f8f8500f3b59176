// Package cert wraps X.509 client certificates with the derived SHA-256
// thumbprint used by the certificate-binding (x5t#S256) validator.
//
// Certificates typically reach a service either directly from the TLS layer
// (r.TLS.PeerCertificates) or forwarded by an ingress as a base64-encoded
// header; constructors exist for both paths.
package cert

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"sync"

	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
)

// Certificate is a parsed X.509 client certificate with a content-addressed
// SHA-256 thumbprint. The thumbprint is computed once on first use and
// cached; the certificate is immutable after construction.
//
// Certificate is safe for concurrent use by multiple goroutines.
type Certificate struct {
	x509Cert *x509.Certificate

	thumbprintOnce sync.Once
	thumbprint     string
}

// New wraps an already-parsed X.509 certificate.
// Returns nil if c is nil.
func New(c *x509.Certificate) *Certificate {
	if c == nil {
		return nil
	}
	return &Certificate{x509Cert: c}
}

// ParseDER parses a DER-encoded certificate.
func ParseDER(der []byte) (*Certificate, error) {
	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidationFormat, "certificate is not valid DER")
	}
	return New(c), nil
}

// ParsePEM parses the first CERTIFICATE block from PEM-encoded data.
func ParsePEM(pemData []byte) (*Certificate, error) {
	for block, rest := pem.Decode(pemData); block != nil; block, rest = pem.Decode(rest) {
		if block.Type == "CERTIFICATE" {
			return ParseDER(block.Bytes)
		}
	}
	return nil, sserr.New(sserr.CodeValidationFormat, "no CERTIFICATE block found in PEM data")
}

// ParseForwardedHeader parses a certificate forwarded by an ingress or load
// balancer as a base64-encoded DER value (the common x-forwarded-client-cert
// shape). Standard and URL-safe base64 alphabets are both accepted.
func ParseForwardedHeader(value string) (*Certificate, error) {
	der, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		der, err = base64.URLEncoding.DecodeString(value)
	}
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidationFormat, "forwarded certificate is not valid base64")
	}
	return ParseDER(der)
}

// Thumbprint returns the base64url-encoded (unpadded) SHA-256 hash of the
// certificate's DER encoding, the value the token's cnf "x5t#S256" member
// is compared against. The hash is computed on first call and cached.
func (c *Certificate) Thumbprint() string {
	c.thumbprintOnce.Do(func() {
		sum := sha256.Sum256(c.x509Cert.Raw)
		c.thumbprint = base64.RawURLEncoding.EncodeToString(sum[:])
	})
	return c.thumbprint
}

// Subject returns the certificate's subject common name.
func (c *Certificate) Subject() string {
	return c.x509Cert.Subject.CommonName
}

// X509 returns the underlying parsed certificate.
func (c *Certificate) X509() *x509.Certificate {
	return c.x509Cert
}
