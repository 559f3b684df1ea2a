package utils

import (
	"errors"
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", "z-docgen-identity")

	token, err := m.GenerateToken("user-123", "editor", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.PrincipalID != "user-123" || claims.Role != "editor" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestJWTExpiredToken(t *testing.T) {
	m := NewJWTManager("test-secret", "z-docgen-identity")

	token, err := m.GenerateToken("user-123", "editor", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := m.ParseToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("error = %v, want expired token", err)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	issuer := NewJWTManager("secret-a", "z-docgen-identity")
	verifier := NewJWTManager("secret-b", "z-docgen-identity")

	token, err := issuer.GenerateToken("user-123", "editor", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := verifier.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want invalid token", err)
	}
}

func TestJWTIssuerMismatch(t *testing.T) {
	issuer := NewJWTManager("test-secret", "other-service")
	verifier := NewJWTManager("test-secret", "z-docgen-identity")

	token, err := issuer.GenerateToken("user-123", "editor", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := verifier.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want invalid token", err)
	}
}

func TestJWTGarbageToken(t *testing.T) {
	m := NewJWTManager("test-secret", "z-docgen-identity")
	if _, err := m.ParseToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want invalid token", err)
	}
}
