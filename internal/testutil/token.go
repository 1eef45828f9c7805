package testutil

import (
	"testing"
	"time"

	"labyrinth-server/internal/auth"
)

const (
	JWTSecret = "test-secret"
	JWTIssuer = "test-accounts"
)

func NewVerifier() *auth.Verifier {
	return auth.NewVerifier(JWTSecret, JWTIssuer)
}

// Token signs a short-lived bearer token for userID.
func Token(t *testing.T, userID, name string) string {
	t.Helper()
	tok, err := auth.Sign(JWTSecret, JWTIssuer, auth.Principal{UserID: userID, Name: name}, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}
