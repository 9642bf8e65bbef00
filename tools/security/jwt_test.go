package security

import (
	"errors"
	"testing"
	"time"

	"PShop/tools/errs"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("unit-secret"))
	tok, exp, err := Generate(opts, "user-1", []string{"chat"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry in the past: %v", exp)
	}

	claims, err := Verify(opts, tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if len(claims.Scope) != 1 || claims.Scope[0] != "chat" {
		t.Fatalf("scope = %v", claims.Scope)
	}
	if claims.ExpiresAt != exp.Unix() {
		t.Fatalf("exp = %d, want %d", claims.ExpiresAt, exp.Unix())
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	tok, _, err := Generate(DefaultOptions([]byte("a")), "u", nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Verify(DefaultOptions([]byte("b")), tok)
	if !errors.Is(err, errs.ErrTokenInvalid) {
		t.Fatalf("want token invalid, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	opts := DefaultOptions([]byte("s"))
	claims := jwtlib.MapClaims{
		"sub": "u",
		"iss": opts.Issuer,
		"exp": time.Now().Add(-time.Minute).Unix(),
	}
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(opts.Secret)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Verify(opts, tok)
	if !errors.Is(err, errs.ErrTokenExpired) {
		t.Fatalf("want token expired, got %v", err)
	}
	if !errs.ErrUnauthorized.Is(err) {
		t.Fatalf("expired token should map to unauthorized")
	}
}

func TestVerifyRejectsMissingSubjectAndAlg(t *testing.T) {
	opts := DefaultOptions([]byte("s"))
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"iss": opts.Issuer,
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString(opts.Secret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Verify(opts, tok); !errors.Is(err, errs.ErrTokenInvalid) {
		t.Fatalf("missing sub: got %v", err)
	}

	opts.Alg = "RS256"
	if _, err := Verify(opts, tok); !errors.Is(err, errs.ErrArgs) {
		t.Fatalf("unsupported alg: got %v", err)
	}
}
