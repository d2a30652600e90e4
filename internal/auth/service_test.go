package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/skaet/ussd_bank/internal/apperr"
)

func TestIssueAndParse(t *testing.T) {
	svc, err := NewService("secret", "skaet-ussd", time.Minute)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	tok, err := svc.Issue("ops@skaet", RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.Parse(tok.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "ops@skaet" || claims.Role != RoleAdmin || claims.Issuer != "skaet-ussd" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	svc, _ := NewService("secret", "skaet-ussd", time.Minute)
	tok, _ := svc.Issue("ops", RoleAdmin)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := svc.Parse(tok.AccessToken); !errors.Is(err, ErrInvalidToken) || apperr.KindOf(err) != apperr.KindAuth {
		t.Fatalf("expected expired token rejection, got %v", err)
	}

	other, _ := NewService("another-secret", "skaet-ussd", time.Minute)
	foreign, _ := other.Issue("ops", RoleAdmin)
	svc.now = time.Now
	if _, err := svc.Parse(foreign.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature rejection, got %v", err)
	}

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleAdmin}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := svc.Parse(none); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected alg=none rejection, got %v", err)
	}
}

func TestNewServiceRequiresSecret(t *testing.T) {
	if _, err := NewService("", "", 0); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
