package token

import (
	"strings"
	"testing"
)

func TestGenerateAndVerify(t *testing.T) {
	manager := NewJWTManager("test-secret", 30)

	tok, err := manager.Generate(42, "alice")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if tok == "" {
		t.Fatal("Expected a non-empty token")
	}

	claims, err := manager.Verify(tok)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("Expected userId 42, got %d", claims.UserID)
	}
	if claims.Username != "alice" {
		t.Errorf("Expected username alice, got %s", claims.Username)
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Error("Expected expiry and issue timestamps on the claims")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, err := NewJWTManager("secret-a", 30).Generate(1, "alice")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, err := NewJWTManager("secret-b", 30).Verify(tok); err == nil {
		t.Error("Expected verification to fail with a different secret")
	}
}

func TestVerify_TamperedToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 30)
	tok, err := manager.Generate(1, "alice")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("Expected 3 token segments, got %d", len(parts))
	}
	tampered := parts[0] + ".eyJ1c2VySWQiOjk5OX0." + parts[2]
	if _, err := manager.Verify(tampered); err == nil {
		t.Error("Expected verification to fail for a tampered payload")
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	// Negative validity puts the expiry in the past.
	manager := NewJWTManager("test-secret", -1)
	tok, err := manager.Generate(1, "alice")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, err := manager.Verify(tok); err == nil {
		t.Error("Expected verification to fail for an expired token")
	}
}

func TestVerify_Garbage(t *testing.T) {
	manager := NewJWTManager("test-secret", 30)
	for _, bad := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := manager.Verify(bad); err == nil {
			t.Errorf("Expected verification to fail for %q", bad)
		}
	}
}
