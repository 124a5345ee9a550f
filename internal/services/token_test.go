package services

import (
	"errors"
	"testing"
	"time"

	"github.com/petroasset/apiserver/config"
)

func testTokenIssuer() *TokenIssuer {
	return NewTokenIssuer(config.JWTConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := testTokenIssuer()
	pair, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := issuer.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("unexpected subject %q", claims.UserID)
	}
	if d := time.Until(claims.ExpiresAt); d <= 14*time.Minute || d > 15*time.Minute {
		t.Fatalf("unexpected access expiry in %s", d)
	}

	subject, err := issuer.VerifyRefresh(pair.RefreshToken)
	if err != nil || subject != "user-1" {
		t.Fatalf("VerifyRefresh: %q, %v", subject, err)
	}
}

func TestTokenIssuerKindsAreNotInterchangeable(t *testing.T) {
	issuer := testTokenIssuer()
	pair, _ := issuer.Issue("user-1")

	if _, err := issuer.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}
	if _, err := issuer.VerifyRefresh(pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
}

func TestTokenIssuerTokensAreUnique(t *testing.T) {
	issuer := testTokenIssuer()
	first, _ := issuer.Issue("user-1")
	second, _ := issuer.Issue("user-1")
	if first.AccessToken == second.AccessToken {
		t.Fatalf("tokens issued in the same second must differ")
	}
}

func TestTokenIssuerExpiredAccess(t *testing.T) {
	issuer := testTokenIssuer()
	issued := time.Now().Add(-time.Hour)
	issuer.now = func() time.Time { return issued }
	pair, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	issuer.now = time.Now

	if _, err := issuer.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	subject, err := issuer.DecodeAccessIgnoringExpiry(pair.AccessToken)
	if err != nil || subject != "user-1" {
		t.Fatalf("DecodeAccessIgnoringExpiry: %q, %v", subject, err)
	}
	if _, err := issuer.DecodeAccessIgnoringExpiry(pair.AccessToken + "x"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("tampered token must still fail signature check: %v", err)
	}
}
