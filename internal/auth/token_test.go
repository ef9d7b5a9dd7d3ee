package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret"

func TestSignVerifyRoundTrip(t *testing.T) {
	claims := Claims{UserID: "u1", Username: "ivan", IsAdmin: true}
	token, err := SignToken(claims, testSecret)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}

	got, err := VerifyToken(token, testSecret)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if got != claims {
		t.Fatalf("claims mismatch: got %+v, want %+v", got, claims)
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	token, err := SignToken(Claims{UserID: "u1", Username: "ivan"}, testSecret)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	parts := strings.Split(token, ".")
	forged, err := SignToken(Claims{UserID: "u1", Username: "ivan", IsAdmin: true}, testSecret)
	if err != nil {
		t.Fatalf("SignToken forged: %v", err)
	}
	forgedPayload := strings.Split(forged, ".")[0]

	if _, err := VerifyToken(forgedPayload+"."+parts[1], testSecret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered payload, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := SignToken(Claims{UserID: "u1"}, testSecret)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	if _, err := VerifyToken(token, "other-secret"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	claims := Claims{UserID: "u1", ExpiresAt: time.Now().Add(-time.Minute).Unix()}
	token, err := SignToken(claims, testSecret)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	if _, err := VerifyToken(token, testSecret); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "abc", "a.b.c", "not-base64!.deadbeef"} {
		if _, err := VerifyToken(token, testSecret); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}
