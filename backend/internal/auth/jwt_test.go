package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignAndParse(t *testing.T) {
	secret := []byte("s3cret")
	tok, err := SignAccessToken(secret, 42, "alice", time.Minute)
	if err != nil {
		t.Fatalf("SignAccessToken() error = %v", err)
	}
	claims, err := ParseAccessToken(secret, tok)
	if err != nil {
		t.Fatalf("ParseAccessToken() error = %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := ParseAccessToken([]byte("other"), tok); err == nil {
		t.Fatalf("expected signature error with wrong secret")
	}
}

func TestParse_RejectsExpiredAndRefresh(t *testing.T) {
	secret := []byte("s3cret")
	expired, _ := SignAccessToken(secret, 1, "bob", -time.Minute)
	if _, err := ParseAccessToken(secret, expired); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expired token error = %v, want ErrTokenExpired", err)
	}

	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: 1, Username: "bob", Type: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("sign refresh: %v", err)
	}
	if _, err := ParseAccessToken(secret, refresh); !errors.Is(err, ErrNotAccessToken) {
		t.Fatalf("refresh token error = %v, want ErrNotAccessToken", err)
	}
}

func TestSecret(t *testing.T) {
	if string(Secret("cfg")) != "cfg" {
		t.Fatalf("configured secret ignored")
	}
	t.Setenv("JWT_SECRET", "")
	if string(Secret("")) != "dev-secret" {
		t.Fatalf("default secret = %s", Secret(""))
	}
	t.Setenv("JWT_SECRET", "env")
	if string(Secret("")) != "env" {
		t.Fatalf("env secret ignored")
	}
}
