package utils

import (
	"testing"
	"time"
)

func TestJWT(t *testing.T) {
	secret := "supersecret"
	userID := "123"
	role := "patient"

	token, err := GenerateToken(userID, role, secret)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	claims, err := ValidateToken(token, secret)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("Expected UserID %s, got %s", userID, claims.UserID)
	}

	if claims.Role != role {
		t.Errorf("Expected Role %s, got %s", role, claims.Role)
	}

	_, err = ValidateToken(token, "wrongsecret")
	if err == nil {
		t.Errorf("Expected error with wrong secret")
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	token, err := GenerateTokenWithTTL("9", "doctor", "supersecret", -time.Minute)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := ValidateToken(token, "supersecret"); err == nil {
		t.Errorf("Expected expired token to be rejected")
	}
}

func TestGenerateTokenRequiresSecret(t *testing.T) {
	if _, err := GenerateToken("1", "patient", ""); err == nil {
		t.Errorf("Expected error for empty secret")
	}
}
