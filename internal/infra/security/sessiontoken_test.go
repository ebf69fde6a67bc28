package security

import (
	"errors"
	"testing"
	"time"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	manager, err := NewSessionTokenManager("clave-de-prueba", "telemedicina", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionTokenManager: %v", err)
	}

	signed, expiresAt, err := manager.Issue("user-1", "Maria Soto", "medico")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	claims, err := manager.Verify(signed)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.Subject != "user-1" || claims.Name != "Maria Soto" || claims.Role != "medico" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSessionTokenExpiry(t *testing.T) {
	manager, err := NewSessionTokenManager("clave-de-prueba", "telemedicina", time.Minute)
	if err != nil {
		t.Fatalf("NewSessionTokenManager: %v", err)
	}

	issuedAt := time.Now().Add(-time.Hour)
	manager.now = func() time.Time { return issuedAt }
	signed, _, err := manager.Issue("user-1", "Maria Soto", "medico")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	manager.now = time.Now
	if _, err := manager.Verify(signed); !errors.Is(err, ErrExpiredSessionToken) {
		t.Fatalf("expected ErrExpiredSessionToken, got %v", err)
	}
}

func TestSessionTokenRejectsForeignSignature(t *testing.T) {
	issuer, _ := NewSessionTokenManager("clave-uno", "telemedicina", time.Hour)
	verifier, _ := NewSessionTokenManager("clave-dos", "telemedicina", time.Hour)

	signed, _, err := issuer.Issue("user-1", "Maria Soto", "medico")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken, got %v", err)
	}
}

func TestSessionTokenRequiresSecret(t *testing.T) {
	if _, err := NewSessionTokenManager("", "telemedicina", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
