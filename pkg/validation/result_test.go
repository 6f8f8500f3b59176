package validation

import (
	"context"
	"testing"

	"github.com/StricklySoft/stricklysoft-trust/internal/testutil"
	"github.com/StricklySoft/stricklysoft-trust/pkg/token"
)

func mustParse(t *testing.T, raw string) *token.Token {
	t.Helper()
	tok, err := token.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse test token: %v", err)
	}
	return tok
}

func signedToken(t *testing.T, claims map[string]any) *token.Token {
	t.Helper()
	return mustParse(t, testutil.SignHS256(t, []byte(testutil.HMACKey), claims))
}

func passing(string) Validator {
	return ValidatorFunc(func(context.Context, *token.Token) Result { return Valid() })
}

func failing(reason string) Validator {
	return ValidatorFunc(func(context.Context, *token.Token) Result { return Invalid(reason) })
}

// TestResult verifies the Result accessors for both outcomes.
func TestResult(t *testing.T) {
	if !Valid().IsValid() {
		t.Error("Valid().IsValid() = false")
	}
	if Valid().Reason() != "" {
		t.Errorf("Valid().Reason() = %q, want empty", Valid().Reason())
	}

	r := Invalid("token has expired")
	if r.IsValid() {
		t.Error("Invalid().IsValid() = true")
	}
	if r.Reason() != "token has expired" {
		t.Errorf("Reason() = %q, want %q", r.Reason(), "token has expired")
	}

	// Zero value is invalid: a forgotten check must not pass a token.
	var zero Result
	if zero.IsValid() {
		t.Error("zero Result is valid, want invalid")
	}
}

// TestChain_ShortCircuit verifies that Validate stops at the first failing
// check.
func TestChain_ShortCircuit(t *testing.T) {
	var thirdRan bool
	chain := NewChain(
		passing("first"),
		failing("second failed"),
		ValidatorFunc(func(context.Context, *token.Token) Result {
			thirdRan = true
			return Valid()
		}),
	)

	tok := signedToken(t, testutil.StandardClaims("https://issuer", "client"))
	r := chain.Validate(context.Background(), tok)
	if r.IsValid() {
		t.Fatal("chain passed despite a failing check")
	}
	if r.Reason() != "second failed" {
		t.Errorf("Reason() = %q, want %q", r.Reason(), "second failed")
	}
	if thirdRan {
		t.Error("validator after the failing check still ran")
	}
}

// TestChain_ValidateAll verifies that all rejection reasons are collected.
func TestChain_ValidateAll(t *testing.T) {
	chain := NewChain(failing("first failed"), passing("second"), failing("third failed"))

	tok := signedToken(t, testutil.StandardClaims("https://issuer", "client"))
	r := chain.ValidateAll(context.Background(), tok)
	if r.IsValid() {
		t.Fatal("chain passed despite failing checks")
	}
	reasons := r.Reasons()
	if len(reasons) != 2 {
		t.Fatalf("collected %d reasons, want 2: %v", len(reasons), reasons)
	}
	if reasons[0] != "first failed" || reasons[1] != "third failed" {
		t.Errorf("reasons = %v, want order preserved", reasons)
	}
}

// TestChain_Empty verifies that an empty chain accepts.
func TestChain_Empty(t *testing.T) {
	tok := signedToken(t, testutil.StandardClaims("https://issuer", "client"))
	if r := NewChain().Validate(context.Background(), tok); !r.IsValid() {
		t.Errorf("empty chain rejected: %q", r.Reason())
	}
}

// TestChain_Append verifies that Append does not mutate the receiver.
func TestChain_Append(t *testing.T) {
	base := NewChain(passing("first"))
	extended := base.Append(failing("appended failed"))

	tok := signedToken(t, testutil.StandardClaims("https://issuer", "client"))
	if r := base.Validate(context.Background(), tok); !r.IsValid() {
		t.Errorf("base chain affected by Append: %q", r.Reason())
	}
	if r := extended.Validate(context.Background(), tok); r.IsValid() {
		t.Error("extended chain missing the appended check")
	}
}
