package validation

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/StricklySoft/stricklysoft-trust/pkg/cert"
	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
	"github.com/StricklySoft/stricklysoft-trust/pkg/tenant"
)

// Header names read by the transport adapters.
const (
	// HeaderAuthorization carries the bearer token.
	HeaderAuthorization = "Authorization"

	// HeaderForwardedClientCert carries the base64-encoded client
	// certificate forwarded by a TLS-terminating proxy.
	HeaderForwardedClientCert = "x-forwarded-client-cert"
)

// ExtractBearerToken extracts the token from an Authorization header value
// of the form "Bearer <token>". Returns "" when the value does not carry a
// bearer token. The scheme comparison is case-insensitive.
func ExtractBearerToken(header string) string {
	scheme, tok, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// HTTPMiddleware returns an HTTP middleware that runs the full inbound
// validation path and attaches the resulting [SecurityContext] to the
// request context.
//
// The middleware performs the following steps:
//  1. Extracts the bearer token from the Authorization header
//  2. Extracts the zone header, host, and forwarded client certificate
//  3. Runs [Service.Validate]
//  4. Opens a security-context scope for the duration of the request
//
// Rejected requests get 401 (or 403 for missing scopes) with a generic
// body: the rejection reason is logged server-side, never sent to the
// caller.
//
// Example:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/api/data", handleData)
//	handler := validation.HTTPMiddleware(svc)(mux)
//	http.ListenAndServe(":8080", handler)
func HTTPMiddleware(svc *Service, scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken := ExtractBearerToken(r.Header.Get(HeaderAuthorization))
			if rawToken == "" {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			ctx := r.Context()
			sc, err := svc.Validate(ctx, Request{
				Token:          rawToken,
				ZoneID:         r.Header.Get(tenant.HeaderZoneID),
				Host:           r.Host,
				Certificate:    certificateFromRequest(r),
				RequiredScopes: scopes,
			})
			if err != nil {
				slog.WarnContext(ctx, "validation: request rejected",
					"error", err,
					"path", r.URL.Path,
				)
				if sserr.GetCode(err) == sserr.CodeAuthorizationInsufficientScope {
					http.Error(w, "insufficient scope", http.StatusForbidden)
					return
				}
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			ctx, scope := OpenScope(ctx, sc)
			defer scope.Clear()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// certificateFromRequest extracts the client certificate from the TLS
// connection state, falling back to the forwarded-certificate header set
// by a TLS-terminating proxy. Returns nil when the request carries no
// certificate; whether that matters is the certificate-binding
// validator's decision.
func certificateFromRequest(r *http.Request) *cert.Certificate {
	if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
		return cert.New(r.TLS.PeerCertificates[0])
	}
	if forwarded := r.Header.Get(HeaderForwardedClientCert); forwarded != "" {
		if c, err := cert.ParseForwardedHeader(forwarded); err == nil {
			return c
		}
	}
	return nil
}
