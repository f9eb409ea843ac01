package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateVerifyRoundtrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	userID := uuid.New().String()

	token, err := m.Generate(userID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != userID {
		t.Errorf("subject: got %q, want %q", claims.Subject, userID)
	}
	if remaining := time.Until(claims.ExpiresAt.Time); remaining < 55*time.Minute || remaining > time.Hour {
		t.Errorf("expiry out of range: %v remaining", remaining)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)

	token, err := m.Generate(uuid.New().String())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Verify(token); err == nil {
		t.Error("expired token accepted")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-a", time.Hour).Generate(uuid.New().String())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewJWTManager("secret-b", time.Hour).Verify(token); err == nil {
		t.Error("token signed with different secret accepted")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	for _, token := range []string{"", "not.a.jwt", "aaaa.bbbb.cccc"} {
		if _, err := m.Verify(token); err == nil {
			t.Errorf("garbage token %q accepted", token)
		}
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer abc123")

	token, err := ExtractTokenFromHeader(r)
	if err != nil || token != "abc123" {
		t.Errorf("got (%q, %v)", token, err)
	}

	for _, hdr := range []string{"", "abc123", "Basic abc123"} {
		r := httptest.NewRequest("GET", "/", nil)
		if hdr != "" {
			r.Header.Set("Authorization", hdr)
		}
		if _, err := ExtractTokenFromHeader(r); err == nil {
			t.Errorf("header %q accepted", hdr)
		}
	}
}
