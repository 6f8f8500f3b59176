// Package broker acquires tokens from a tenant's token endpoint on behalf
// of the service (resource-owner password grant).
//
// The broker is an outbound client, not part of inbound validation: it is
// invoked only after the inbound request has been validated, typically to
// exchange end-user credentials for a downstream token. Acquired tokens go
// through the same inbound validation as any other token before use.
//
// # Credential Privacy
//
// A rejected grant for an unknown user is indistinguishable from one with
// a wrong password: both map to [sserr.CodeBrokerInvalidCredentials]. Only
// presenting credentials against the wrong tenant zone gets its own code,
// since that is a deployment error, not a guessing signal.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
	"github.com/StricklySoft/stricklysoft-trust/pkg/secret"
	"github.com/StricklySoft/stricklysoft-trust/pkg/tenant"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/stricklysoft-trust/pkg/broker"

const (
	// defaultTimeout bounds one token-endpoint exchange.
	defaultTimeout = 10 * time.Second

	// maxResponseBytes caps the token-endpoint response body.
	maxResponseBytes = 1 << 20

	// headerCorrelationID carries a fresh id per exchange so failed
	// grants can be matched to the issuer's logs.
	headerCorrelationID = "X-CorrelationID"
)

// HTTPClient abstracts the HTTP client used for token exchanges.
// Satisfied by [*http.Client].
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenResponse is the successful result of a grant exchange.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// ClientCredentials identifies this service to the token endpoint.
type ClientCredentials struct {
	ID     string
	Secret secret.Secret
}

// Broker exchanges credentials for tokens at tenant token endpoints.
//
// Broker is safe for concurrent use by multiple goroutines.
type Broker struct {
	httpClient HTTPClient
	timeout    time.Duration
	tracer     trace.Tracer
}

// Option configures a [Broker].
type Option func(*Broker)

// WithHTTPClient overrides the HTTP client used for exchanges.
func WithHTTPClient(client HTTPClient) Option {
	return func(b *Broker) {
		if client != nil {
			b.httpClient = client
		}
	}
}

// WithTimeout overrides the per-exchange timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(b *Broker) {
		if timeout > 0 {
			b.timeout = timeout
		}
	}
}

// New creates a token broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		httpClient: &http.Client{Timeout: defaultTimeout},
		timeout:    defaultTimeout,
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PasswordGrant exchanges a user's credentials for a token at the tenant's
// token endpoint, pinning the exchange to the tenant's zone via the zone
// id header.
//
// The password is carried as a [secret.Secret] and never logged or
// recorded on spans.
func (b *Broker) PasswordGrant(ctx context.Context, cfg *tenant.Config, username string, password secret.Secret, client ClientCredentials) (*TokenResponse, error) {
	if cfg == nil {
		return nil, sserr.New(sserr.CodeValidationRequired, "broker: tenant configuration must not be nil")
	}
	if cfg.TokenURL == "" {
		return nil, sserr.Newf(sserr.CodeInternalConfiguration, "broker: tenant %q has no token endpoint", cfg.ID)
	}
	if username == "" {
		return nil, sserr.New(sserr.CodeValidationRequired, "broker: username must not be empty")
	}

	ctx, span := b.tracer.Start(ctx, "broker.PasswordGrant",
		trace.WithAttributes(
			attribute.String("tenant.id", cfg.ID),
			attribute.String("broker.grant_type", "password"),
		),
	)
	defer span.End()

	resp, err := b.exchange(ctx, cfg, username, password, client)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return resp, nil
}

func (b *Broker) exchange(ctx context.Context, cfg *tenant.Config, username string, password secret.Secret, client ClientCredentials) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password.Value())
	form.Set("client_id", client.ID)
	form.Set("client_secret", client.Secret.Value())

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternal, "broker: failed to create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerCorrelationID, uuid.NewString())
	req.Header.Set(tenant.HeaderZoneID, cfg.ID)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, sserr.Wrap(err, sserr.CodeInternal, "broker: token exchange canceled")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, sserr.Wrap(err, sserr.CodeTimeout, "broker: token exchange timed out")
		}
		return nil, sserr.Wrapf(err, sserr.CodeBrokerUnreachable, "token endpoint %s unreachable", cfg.TokenURL)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeBrokerUnreachable, "broker: failed to read token response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return parseTokenResponse(body)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		// Wrong password and unknown user both land here. The message
		// deliberately does not say which.
		return nil, sserr.New(sserr.CodeBrokerInvalidCredentials, "token endpoint rejected the credentials")
	case resp.StatusCode == http.StatusNotFound:
		return nil, sserr.Newf(sserr.CodeBrokerUnknownTenant, "token endpoint does not serve tenant %q", cfg.ID)
	case resp.StatusCode >= 500:
		return nil, sserr.Newf(sserr.CodeBrokerUnreachable, "token endpoint returned status %d", resp.StatusCode)
	default:
		return nil, sserr.Newf(sserr.CodeBrokerUnreachable, "token endpoint returned unexpected status %d", resp.StatusCode)
	}
}

func parseTokenResponse(body []byte) (*TokenResponse, error) {
	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeBrokerUnreachable, "broker: token response is not valid JSON")
	}
	if tr.AccessToken == "" {
		return nil, sserr.New(sserr.CodeBrokerUnreachable, "broker: token response carries no access token")
	}
	return &tr, nil
}
