package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/qizhangumich/acams/internal/models"
)

// SessionClaims are the custom fields carried by a session token.
type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// SessionService issues and verifies the signed tokens held in the session
// cookie. User identity is always derived from the token, never from request
// bodies.
type SessionService struct {
	secret []byte
	expiry time.Duration
}

// NewSessionService creates a session service.
func NewSessionService(secret string, expiry time.Duration) (*SessionService, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if expiry <= 0 {
		expiry = 30 * 24 * time.Hour
	}
	return &SessionService{secret: []byte(secret), expiry: expiry}, nil
}

// Expiry returns the configured session lifetime.
func (s *SessionService) Expiry() time.Duration { return s.expiry }

// Generate creates a session token for the user.
func (s *SessionService) Generate(user *models.User) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse verifies a session token and returns its claims.
func (s *SessionService) Parse(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}
