package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qizhangumich/acams/internal/models"
)

func TestNewSessionServiceRequiresSecret(t *testing.T) {
	_, err := NewSessionService("", time.Hour)
	require.Error(t, err)
}

func TestSessionRoundTrip(t *testing.T) {
	svc, err := NewSessionService("test-secret", 30*24*time.Hour)
	require.NoError(t, err)

	user := &models.User{ID: "user-123", Email: "user@example.com"}
	token, err := svc.Generate(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.UserID)
	require.Equal(t, "user@example.com", claims.Email)
}

func TestSessionParseRejectsWrongSecret(t *testing.T) {
	issuer, err := NewSessionService("secret-a", time.Hour)
	require.NoError(t, err)
	verifier, err := NewSessionService("secret-b", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Generate(&models.User{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)

	_, err = verifier.Parse(token)
	require.Error(t, err)
}

func TestSessionParseRejectsGarbage(t *testing.T) {
	svc, err := NewSessionService("test-secret", time.Hour)
	require.NoError(t, err)

	_, err = svc.Parse("not-a-token")
	require.Error(t, err)
}

func TestSessionParseRejectsExpired(t *testing.T) {
	svc, err := NewSessionService("test-secret", time.Hour)
	require.NoError(t, err)
	svc.expiry = -time.Minute

	token, err := svc.Generate(&models.User{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)

	_, err = svc.Parse(token)
	require.Error(t, err)
}
