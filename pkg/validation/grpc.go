package validation

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/StricklySoft/stricklysoft-trust/pkg/cert"
	sserr "github.com/StricklySoft/stricklysoft-trust/pkg/errors"
	"github.com/StricklySoft/stricklysoft-trust/pkg/tenant"
)

// metadataAuthorization is the incoming metadata key carrying the bearer
// token. gRPC metadata keys are lowercase.
const metadataAuthorization = "authorization"

// UnaryServerInterceptor returns a gRPC unary server interceptor that runs
// the full inbound validation path and attaches the resulting
// [SecurityContext] to the handler context.
//
// Rejected requests get Unauthenticated (or PermissionDenied for missing
// scopes) with a generic message: the rejection reason is logged
// server-side, never sent to the caller.
func UnaryServerInterceptor(svc *Service, scopes ...string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, scope, err := validateGRPC(ctx, svc, scopes)
		if err != nil {
			return nil, err
		}
		defer scope.Clear()
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor
// performing the same validation as [UnaryServerInterceptor], wrapping the
// stream so handlers see the enriched context.
func StreamServerInterceptor(svc *Service, scopes ...string) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, scope, err := validateGRPC(ss.Context(), svc, scopes)
		if err != nil {
			return err
		}
		defer scope.Clear()
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// validateGRPC extracts the bearer token, tenant indicators, and client
// certificate from incoming metadata and connection state, validates, and
// opens a security-context scope.
func validateGRPC(ctx context.Context, svc *Service, scopes []string) (context.Context, *Scope, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, nil, status.Error(grpccodes.Unauthenticated, "missing metadata")
	}

	values := md.Get(metadataAuthorization)
	if len(values) == 0 {
		return ctx, nil, status.Error(grpccodes.Unauthenticated, "missing authorization metadata")
	}
	rawToken := ExtractBearerToken(values[0])
	if rawToken == "" {
		return ctx, nil, status.Error(grpccodes.Unauthenticated, "invalid authorization format")
	}

	req := Request{
		Token:          rawToken,
		Certificate:    certificateFromPeer(ctx, md),
		RequiredScopes: scopes,
	}
	if zones := md.Get(tenant.HeaderZoneID); len(zones) > 0 {
		req.ZoneID = zones[0]
	}
	if hosts := md.Get(":authority"); len(hosts) > 0 {
		req.Host = hosts[0]
	}

	sc, err := svc.Validate(ctx, req)
	if err != nil {
		slog.WarnContext(ctx, "validation: request rejected", "error", err)
		if sserr.GetCode(err) == sserr.CodeAuthorizationInsufficientScope {
			return ctx, nil, status.Error(grpccodes.PermissionDenied, "insufficient scope")
		}
		return ctx, nil, status.Error(grpccodes.Unauthenticated, "token validation failed")
	}

	ctx, scope := OpenScope(ctx, sc)
	return ctx, scope, nil
}

// certificateFromPeer extracts the client certificate from the peer's TLS
// state, falling back to the forwarded-certificate metadata key.
func certificateFromPeer(ctx context.Context, md metadata.MD) *cert.Certificate {
	if p, ok := peer.FromContext(ctx); ok && p.AuthInfo != nil {
		if tlsInfo, ok := p.AuthInfo.(credentials.TLSInfo); ok && len(tlsInfo.State.PeerCertificates) > 0 {
			return cert.New(tlsInfo.State.PeerCertificates[0])
		}
	}
	if forwarded := md.Get(HeaderForwardedClientCert); len(forwarded) > 0 && forwarded[0] != "" {
		if c, err := cert.ParseForwardedHeader(forwarded[0]); err == nil {
			return c
		}
	}
	return nil
}

// wrappedServerStream wraps a grpc.ServerStream to override its Context
// method, since ServerStream.Context() returns the original stream context
// without the security context added by the interceptor.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context containing the security context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
