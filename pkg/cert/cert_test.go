package cert

import (
	"encoding/base64"
	"encoding/pem"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-trust/internal/testutil"
	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
)

func TestNew_NilCertificate(t *testing.T) {
	t.Parallel()
	assert.Nil(t, New(nil))
}

func TestThumbprint_MatchesIndependentDerivation(t *testing.T) {
	t.Parallel()

	x509Cert := testutil.GenerateClientCert(t, "client.acme.test")
	c := New(x509Cert)

	assert.Equal(t, testutil.CertThumbprint(x509Cert), c.Thumbprint())
	assert.NotContains(t, c.Thumbprint(), "=", "thumbprint must be unpadded base64url")
}

func TestThumbprint_StableAcrossCalls(t *testing.T) {
	t.Parallel()

	c := New(testutil.GenerateClientCert(t, "client.acme.test"))
	first := c.Thumbprint()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, first, c.Thumbprint())
		}()
	}
	wg.Wait()
}

func TestThumbprint_DistinctCertificatesDiffer(t *testing.T) {
	t.Parallel()

	a := New(testutil.GenerateClientCert(t, "client-a.acme.test"))
	b := New(testutil.GenerateClientCert(t, "client-b.acme.test"))
	assert.NotEqual(t, a.Thumbprint(), b.Thumbprint())
}

func TestParseDER_RoundTrip(t *testing.T) {
	t.Parallel()

	x509Cert := testutil.GenerateClientCert(t, "client.acme.test")
	c, err := ParseDER(x509Cert.Raw)
	require.NoError(t, err)
	assert.Equal(t, "client.acme.test", c.Subject())
	assert.Equal(t, testutil.CertThumbprint(x509Cert), c.Thumbprint())
}

func TestParseDER_Invalid(t *testing.T) {
	t.Parallel()

	c, err := ParseDER([]byte("garbage"))
	assert.Nil(t, c)
	testutil.RequireErrorCode(t, err, sserr.CodeValidationFormat)
}

func TestParsePEM(t *testing.T) {
	t.Parallel()

	x509Cert := testutil.GenerateClientCert(t, "client.acme.test")
	pemData := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: x509Cert.Raw})

	c, err := ParsePEM(pemData)
	require.NoError(t, err)
	assert.Equal(t, "client.acme.test", c.Subject())

	_, err = ParsePEM([]byte("not pem at all"))
	testutil.RequireErrorCode(t, err, sserr.CodeValidationFormat)
}

func TestParseForwardedHeader(t *testing.T) {
	t.Parallel()

	x509Cert := testutil.GenerateClientCert(t, "client.acme.test")

	t.Run("standard base64", func(t *testing.T) {
		t.Parallel()
		c, err := ParseForwardedHeader(base64.StdEncoding.EncodeToString(x509Cert.Raw))
		require.NoError(t, err)
		assert.Equal(t, testutil.CertThumbprint(x509Cert), c.Thumbprint())
	})

	t.Run("url-safe base64", func(t *testing.T) {
		t.Parallel()
		c, err := ParseForwardedHeader(base64.URLEncoding.EncodeToString(x509Cert.Raw))
		require.NoError(t, err)
		assert.Equal(t, testutil.CertThumbprint(x509Cert), c.Thumbprint())
	})

	t.Run("invalid base64", func(t *testing.T) {
		t.Parallel()
		_, err := ParseForwardedHeader("!!! not base64 !!!")
		testutil.RequireErrorCode(t, err, sserr.CodeValidationFormat)
	})
}
