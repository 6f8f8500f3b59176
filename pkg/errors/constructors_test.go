package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	err := New(CodeTokenMalformed, "token has wrong segment count")
	assert.Equal(t, CodeTokenMalformed, err.Code)
	assert.Equal(t, "token has wrong segment count", err.Message)
	assert.Nil(t, err.Cause)
}

func TestNewf(t *testing.T) {
	t.Parallel()
	err := Newf(CodeTrustKeyNotFound, "key id %q not found in key set for tenant %q", "key-1", "acme")
	assert.Equal(t, CodeTrustKeyNotFound, err.Code)
	assert.Equal(t, `key id "key-1" not found in key set for tenant "acme"`, err.Message)
}

func TestWrap(t *testing.T) {
	t.Parallel()

	t.Run("wraps cause", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeTrustUnreachable, "key set fetch failed")
		require.NotNil(t, err)
		assert.Equal(t, CodeTrustUnreachable, err.Code)
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("nil cause returns nil", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, Wrap(nil, CodeInternal, "should vanish"))
	})
}

func TestWrapf(t *testing.T) {
	t.Parallel()
	cause := errors.New("404")
	err := Wrapf(cause, CodeTenantUnknown, "no trust configuration for tenant %q", "acme")
	require.NotNil(t, err)
	assert.Equal(t, `no trust configuration for tenant "acme"`, err.Message)
	assert.Nil(t, Wrapf(nil, CodeInternal, "vanish %d", 1))
}

func TestConvenienceConstructors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *Error
		code Code
	}{
		{"Validation", Validation("bad"), CodeValidation},
		{"Validationf", Validationf("bad %s", "field"), CodeValidation},
		{"Unauthorized", Unauthorized("denied"), CodeAuthentication},
		{"Forbidden", Forbidden("no scope"), CodeAuthorization},
		{"NotFound", NotFound("missing"), CodeNotFound},
		{"NotFoundf", NotFoundf("missing %s", "row"), CodeNotFound},
		{"Internal", Internal("boom"), CodeInternal},
		{"Internalf", Internalf("boom %d", 2), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}
}

func TestCode_Category(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "TRUST", CodeTrustUntrusted.Category())
	assert.Equal(t, "TOKEN", CodeTokenClaimShape.Category())
	assert.Equal(t, "BRK", CodeBrokerUnreachable.Category())
	assert.Equal(t, "NOUNDERSCORE", Code("NOUNDERSCORE").Category())
}
