// Package validation implements token validation: signature verification,
// a composable validator chain over parsed claims, and the per-request
// security context produced by successful validation.
//
// Individual checks are [Validator] values returning a [Result]; a rejected
// token is data, not a panic or a bare error. The [Service] composes tenant
// resolution, key resolution, signature verification, and the validator
// chain into the full inbound path, and the HTTP middleware and gRPC
// interceptors put it in front of handlers.
package validation

import (
	"context"

	"github.com/StricklySoft/stricklysoft-trust/pkg/token"
)

// Result is the outcome of one validation check. The zero value is invalid
// with no reason; use [Valid] and [Invalid] to construct results.
type Result struct {
	valid   bool
	reasons []string
}

// Valid returns a passing result.
func Valid() Result {
	return Result{valid: true}
}

// Invalid returns a failing result with the given reason.
func Invalid(reason string) Result {
	return Result{reasons: []string{reason}}
}

// IsValid reports whether the check passed.
func (r Result) IsValid() bool { return r.valid }

// Reason returns the first rejection reason, or "" for a valid result.
func (r Result) Reason() string {
	if len(r.reasons) == 0 {
		return ""
	}
	return r.reasons[0]
}

// Reasons returns all rejection reasons collected in this result.
func (r Result) Reasons() []string {
	out := make([]string, len(r.reasons))
	copy(out, r.reasons)
	return out
}

// Validator is one stateless validation check over a parsed token.
//
// Implementations must be safe for concurrent use by multiple goroutines
// and must not mutate the token.
type Validator interface {
	Validate(ctx context.Context, tok *token.Token) Result
}

// ValidatorFunc adapts a function to the [Validator] interface.
type ValidatorFunc func(ctx context.Context, tok *token.Token) Result

// Validate implements [Validator].
func (f ValidatorFunc) Validate(ctx context.Context, tok *token.Token) Result {
	return f(ctx, tok)
}

// Chain is an ordered sequence of validators. Order matters: cheap checks
// go first so expensive ones only run on plausible tokens.
type Chain struct {
	validators []Validator
}

// NewChain builds a chain from the given validators.
func NewChain(validators ...Validator) *Chain {
	return &Chain{validators: validators}
}

// Append returns a new chain with the given validators added at the end.
// The receiver is not modified.
func (c *Chain) Append(validators ...Validator) *Chain {
	combined := make([]Validator, 0, len(c.validators)+len(validators))
	combined = append(combined, c.validators...)
	combined = append(combined, validators...)
	return &Chain{validators: combined}
}

// Validate runs the chain, short-circuiting on the first failing check.
func (c *Chain) Validate(ctx context.Context, tok *token.Token) Result {
	for _, v := range c.validators {
		if r := v.Validate(ctx, tok); !r.IsValid() {
			return r
		}
	}
	return Valid()
}

// ValidateAll runs every check regardless of failures and aggregates all
// rejection reasons, for audit paths that want the complete picture of why
// a token was rejected.
func (c *Chain) ValidateAll(ctx context.Context, tok *token.Token) Result {
	var reasons []string
	for _, v := range c.validators {
		if r := v.Validate(ctx, tok); !r.IsValid() {
			reasons = append(reasons, r.reasons...)
		}
	}
	if len(reasons) > 0 {
		return Result{reasons: reasons}
	}
	return Valid()
}
