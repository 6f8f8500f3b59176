package validation

import (
	"context"
	"sync"

	"github.com/StricklySoft/stricklysoft-trust/pkg/cert"
	"github.com/StricklySoft/stricklysoft-trust/pkg/tenant"
	"github.com/StricklySoft/stricklysoft-trust/pkg/token"
)

// contextKey is an unexported type used for context keys in this package.
// Using a distinct type prevents collisions with keys from other packages.
type contextKey int

const securityContextKey contextKey = iota

// SecurityContext is the per-request security state produced by successful
// validation: the validated token, the client certificate presented with
// the request (if any), and the resolved tenant.
//
// A SecurityContext is immutable once attached to a request context.
type SecurityContext struct {
	Token       *token.Token
	Certificate *cert.Certificate
	Tenant      *tenant.Config
}

// HasScope reports whether the validated token carries the given scope.
func (sc *SecurityContext) HasScope(scope string) bool {
	if sc == nil || sc.Token == nil {
		return false
	}
	for _, granted := range sc.Token.Scopes() {
		if granted == scope {
			return true
		}
	}
	return false
}

// Subject returns the "sub" claim of the validated token, or "".
func (sc *SecurityContext) Subject() string {
	if sc == nil || sc.Token == nil {
		return ""
	}
	sub, _, _ := sc.Token.ClaimAsString(token.ClaimSubject)
	return sub
}

// holder is the indirection that lets a Scope revoke access to the
// security context after the request finishes, even for code that captured
// the request context.
type holder struct {
	mu sync.RWMutex
	sc *SecurityContext
}

func (h *holder) load() (*SecurityContext, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sc, h.sc != nil
}

// Scope is the handle to a security context attached to a request. The
// code that opens a scope owns its lifetime and must call [Scope.Clear] on
// every exit path, normally via defer; after Clear, lookups through the
// request context report no security context.
type Scope struct {
	h *holder
}

// OpenScope attaches the security context to the context and returns the
// derived context together with the scope handle controlling it.
//
//	ctx, scope := validation.OpenScope(ctx, sc)
//	defer scope.Clear()
func OpenScope(ctx context.Context, sc *SecurityContext) (context.Context, *Scope) {
	h := &holder{sc: sc}
	return context.WithValue(ctx, securityContextKey, h), &Scope{h: h}
}

// Clear detaches the security context. Idempotent.
func (s *Scope) Clear() {
	if s == nil || s.h == nil {
		return
	}
	s.h.mu.Lock()
	s.h.sc = nil
	s.h.mu.Unlock()
}

// FromContext retrieves the security context attached to the request.
// Returns nil and false when none is attached or its scope has been
// cleared. It never returns a non-nil security context with false.
func FromContext(ctx context.Context) (*SecurityContext, bool) {
	h, ok := ctx.Value(securityContextKey).(*holder)
	if !ok {
		return nil, false
	}
	return h.load()
}

// MustFromContext retrieves the security context, panicking if none is
// attached. Use only behind the authentication middleware, where a
// security context is guaranteed.
func MustFromContext(ctx context.Context) *SecurityContext {
	sc, ok := FromContext(ctx)
	if !ok {
		panic("validation: no security context; ensure authentication middleware is configured")
	}
	return sc
}
