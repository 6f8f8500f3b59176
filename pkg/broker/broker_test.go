package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/StricklySoft/stricklysoft-trust/internal/testutil"
	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
	"github.com/StricklySoft/stricklysoft-trust/pkg/secret"
	"github.com/StricklySoft/stricklysoft-trust/pkg/tenant"
)

func brokerTenant(tokenURL string) *tenant.Config {
	return &tenant.Config{
		ID:        "zone-a",
		Issuers:   []string{"https://acme.auth.example.com"},
		ClientID:  "sb-app!t42",
		KeySetURL: "https://acme.auth.example.com/token_keys",
		TokenURL:  tokenURL,
	}
}

var testClient = ClientCredentials{ID: "sb-app!t42", Secret: secret.Secret("client-secret")}

// tokenEndpoint simulates an issuer's password-grant endpoint for one
// known user in one zone.
func tokenEndpoint(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get(tenant.HeaderZoneID) != "zone-a" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.PostFormValue("username") != "alice" || r.PostFormValue("password") != "correct-password" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "issued.token.value",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestBroker_PasswordGrant verifies the successful exchange: form
// encoding, zone header, and response mapping.
func TestBroker_PasswordGrant(t *testing.T) {
	var gotGrantType, gotZone, gotCorrelation string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotGrantType = r.PostFormValue("grant_type")
		gotZone = r.Header.Get(tenant.HeaderZoneID)
		gotCorrelation = r.Header.Get("X-CorrelationID")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "issued.token.value",
			"token_type":   "bearer",
			"expires_in":   3600,
			"scope":        "openid",
		})
	}))
	t.Cleanup(srv.Close)

	b := New()
	resp, err := b.PasswordGrant(context.Background(), brokerTenant(srv.URL), "alice", secret.Secret("correct-password"), testClient)
	if err != nil {
		t.Fatalf("PasswordGrant() error = %v", err)
	}
	if resp.AccessToken != "issued.token.value" {
		t.Errorf("AccessToken = %q", resp.AccessToken)
	}
	if resp.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn = %d, want 3600", resp.ExpiresIn)
	}
	if gotGrantType != "password" {
		t.Errorf("grant_type = %q, want password", gotGrantType)
	}
	if gotZone != "zone-a" {
		t.Errorf("zone header = %q, want zone-a", gotZone)
	}
	if gotCorrelation == "" {
		t.Error("no correlation id sent")
	}
}

// TestBroker_PasswordGrant_InvalidCredentials verifies that a wrong
// password and an unknown user are indistinguishable in code and message.
func TestBroker_PasswordGrant_InvalidCredentials(t *testing.T) {
	srv := tokenEndpoint(t)
	b := New()
	ctx := context.Background()

	_, wrongPassword := b.PasswordGrant(ctx, brokerTenant(srv.URL), "alice", secret.Secret("wrong"), testClient)
	testutil.RequireErrorCode(t, wrongPassword, sserr.CodeBrokerInvalidCredentials)

	_, unknownUser := b.PasswordGrant(ctx, brokerTenant(srv.URL), "mallory", secret.Secret("correct-password"), testClient)
	testutil.RequireErrorCode(t, unknownUser, sserr.CodeBrokerInvalidCredentials)

	if wrongPassword.Error() != unknownUser.Error() {
		t.Errorf("wrong password and unknown user differ: %q vs %q",
			wrongPassword.Error(), unknownUser.Error())
	}
}

// TestBroker_PasswordGrant_UnknownTenant verifies the distinct error for
// credentials presented against the wrong zone.
func TestBroker_PasswordGrant_UnknownTenant(t *testing.T) {
	srv := tokenEndpoint(t)

	cfg := brokerTenant(srv.URL)
	cfg.ID = "zone-b"

	b := New()
	_, err := b.PasswordGrant(context.Background(), cfg, "alice", secret.Secret("correct-password"), testClient)
	testutil.RequireErrorCode(t, err, sserr.CodeBrokerUnknownTenant)
}

// TestBroker_PasswordGrant_Unreachable verifies retryable classification
// for endpoint failures.
func TestBroker_PasswordGrant_Unreachable(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		b := New(WithTimeout(time.Second))
		_, err := b.PasswordGrant(context.Background(), brokerTenant(url), "alice", secret.Secret("pw"), testClient)
		testutil.RequireErrorCode(t, err, sserr.CodeBrokerUnreachable)
		if !sserr.IsRetryable(err) {
			t.Errorf("IsRetryable(%v) = false, want true", err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)

		b := New()
		_, err := b.PasswordGrant(context.Background(), brokerTenant(srv.URL), "alice", secret.Secret("pw"), testClient)
		testutil.RequireErrorCode(t, err, sserr.CodeBrokerUnreachable)
	})

	t.Run("malformed response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		t.Cleanup(srv.Close)

		b := New()
		_, err := b.PasswordGrant(context.Background(), brokerTenant(srv.URL), "alice", secret.Secret("pw"), testClient)
		testutil.RequireErrorCode(t, err, sserr.CodeBrokerUnreachable)
	})

	t.Run("empty access token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
		}))
		t.Cleanup(srv.Close)

		b := New()
		_, err := b.PasswordGrant(context.Background(), brokerTenant(srv.URL), "alice", secret.Secret("pw"), testClient)
		testutil.RequireErrorCode(t, err, sserr.CodeBrokerUnreachable)
	})
}

// TestBroker_PasswordGrant_ArgumentChecks verifies the precondition
// errors.
func TestBroker_PasswordGrant_ArgumentChecks(t *testing.T) {
	b := New()
	ctx := context.Background()

	t.Run("nil tenant", func(t *testing.T) {
		_, err := b.PasswordGrant(ctx, nil, "alice", secret.Secret("pw"), testClient)
		testutil.RequireErrorCode(t, err, sserr.CodeValidationRequired)
	})

	t.Run("no token endpoint", func(t *testing.T) {
		cfg := brokerTenant("")
		_, err := b.PasswordGrant(ctx, cfg, "alice", secret.Secret("pw"), testClient)
		testutil.RequireErrorCode(t, err, sserr.CodeInternalConfiguration)
	})

	t.Run("empty username", func(t *testing.T) {
		cfg := brokerTenant("https://example.com/oauth/token")
		_, err := b.PasswordGrant(ctx, cfg, "", secret.Secret("pw"), testClient)
		testutil.RequireErrorCode(t, err, sserr.CodeValidationRequired)
	})
}

// TestBroker_PasswordGrant_Timeout verifies the bounded exchange: a
// hanging endpoint fails within the configured timeout.
func TestBroker_PasswordGrant_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	b := New(WithTimeout(100*time.Millisecond), WithHTTPClient(&http.Client{}))
	start := time.Now()
	_, err := b.PasswordGrant(context.Background(), brokerTenant(srv.URL), "alice", secret.Secret("pw"), testClient)
	if err == nil {
		t.Fatal("expected an error from a hanging endpoint")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("exchange took %v, want bounded by the timeout", elapsed)
	}
	testutil.RequireErrorCode(t, err, sserr.CodeTimeout)
}

// TestBroker_PasswordGrant_Canceled verifies that a caller-initiated
// cancellation is not reported as a timeout or an unreachable endpoint.
func TestBroker_PasswordGrant_Canceled(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	b := New(WithTimeout(5*time.Second), WithHTTPClient(&http.Client{}))
	_, err := b.PasswordGrant(ctx, brokerTenant(srv.URL), "alice", secret.Secret("pw"), testClient)
	if err == nil {
		t.Fatal("expected an error from a canceled exchange")
	}
	testutil.RequireErrorCode(t, err, sserr.CodeInternal)
}
