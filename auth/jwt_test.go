package auth

import (
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("p1", "Alice", true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.PlayerID != "p1" || claims.Username != "Alice" || !claims.Guest {
		t.Errorf("claims mismatch: %+v", claims)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	if _, err := ValidateToken("not-a-token"); err == nil {
		t.Error("garbage token should fail validation")
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	token, err := ExtractTokenFromHeader("Bearer abc123")
	if err != nil || token != "abc123" {
		t.Errorf("expected abc123, got %q err=%v", token, err)
	}

	if _, err := ExtractTokenFromHeader(""); err == nil {
		t.Error("missing header should fail")
	}
	if _, err := ExtractTokenFromHeader("Basic abc123"); err == nil {
		t.Error("non-bearer header should fail")
	}
}
