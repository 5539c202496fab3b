package security_test

import (
	"testing"
	"time"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/security"
	"github.com/google/uuid"
)

func TestTokenManager_MintAndValidate(t *testing.T) {
	manager := security.NewTokenManager("test-secret-key-with-32-chars!!", 15*time.Minute)

	sessionID := uuid.New()
	connectionID := uuid.New()

	token, err := manager.MintSessionToken(sessionID, connectionID)
	if err != nil {
		t.Fatalf("failed to mint session token: %v", err)
	}

	if token == "" {
		t.Error("session token is empty")
	}

	claims, err := manager.ValidateSessionToken(token)
	if err != nil {
		t.Fatalf("failed to validate session token: %v", err)
	}

	if claims.SessionID != sessionID {
		t.Errorf("session ID mismatch: got %v, want %v", claims.SessionID, sessionID)
	}

	if claims.ConnectionID != connectionID {
		t.Errorf("connection ID mismatch: got %v, want %v", claims.ConnectionID, connectionID)
	}

	if claims.Subject != sessionID.String() {
		t.Errorf("subject mismatch: got %v, want %v", claims.Subject, sessionID)
	}
}

func TestTokenManager_InvalidToken(t *testing.T) {
	manager := security.NewTokenManager("test-secret-key-with-32-chars!!", 15*time.Minute)

	// Invalid token format
	_, err := manager.ValidateSessionToken("invalid-token")
	if err == nil {
		t.Error("expected error for invalid token, got nil")
	}

	// Empty token
	_, err = manager.ValidateSessionToken("")
	if err == nil {
		t.Error("expected error for empty token, got nil")
	}

	// Token signed with different secret
	otherManager := security.NewTokenManager("different-secret-key-32-chars!!", 15*time.Minute)
	token, _ := otherManager.MintSessionToken(uuid.New(), uuid.New())

	_, err = manager.ValidateSessionToken(token)
	if err == nil {
		t.Error("expected error for token signed with different secret, got nil")
	}
}

func TestTokenManager_ExpiredToken(t *testing.T) {
	manager := security.NewTokenManager("test-secret-key-with-32-chars!!", -time.Minute)

	token, err := manager.MintSessionToken(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}

	if _, err := manager.ValidateSessionToken(token); err == nil {
		t.Error("expected error for expired token, got nil")
	}
}

func TestTokenManager_TTL(t *testing.T) {
	ttl := 30 * time.Minute
	manager := security.NewTokenManager("test-secret-key-with-32-chars!!", ttl)

	if manager.TTL() != ttl {
		t.Errorf("TTL mismatch: got %v, want %v", manager.TTL(), ttl)
	}
}

// BenchmarkMintSessionToken benchmarks token generation
func BenchmarkMintSessionToken(b *testing.B) {
	manager := security.NewTokenManager("benchmark-secret-key-32-chars!!", 15*time.Minute)
	sessionID := uuid.New()
	connectionID := uuid.New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = manager.MintSessionToken(sessionID, connectionID)
	}
}
