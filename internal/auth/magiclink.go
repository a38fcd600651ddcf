package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qizhangumich/acams/internal/apperrors"
	"github.com/qizhangumich/acams/internal/models"
)

const (
	tokenExpiry          = 15 * time.Minute
	maxTokensPerHour     = 5
	usedTokenRetention   = 24 * time.Hour
	cleanupTickInterval  = time.Hour
	magicLinkTokenLength = 32 // random bytes; hex-encoded to 64 chars
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RateLimiter bounds magic-link creation per email. Allow reports whether one
// more request is permitted for the key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MagicLinkService creates, verifies and garbage-collects magic-link tokens.
type MagicLinkService struct {
	db      *gorm.DB
	limiter RateLimiter
}

// NewMagicLinkService creates the service. limiter may be nil, in which case
// creation falls back to counting recent token rows for the email.
func NewMagicLinkService(db *gorm.DB, limiter RateLimiter) *MagicLinkService {
	return &MagicLinkService{db: db, limiter: limiter}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create validates the email, applies the rate limit and stores a fresh
// single-use token. It returns the token for delivery; sending the email is
// the caller's concern so a provider failure cannot roll back the token.
func (s *MagicLinkService) Create(ctx context.Context, email string) (string, error) {
	normalized := NormalizeEmail(email)
	if !emailPattern.MatchString(normalized) {
		return "", errors.New("invalid email format")
	}

	allowed, err := s.allow(ctx, normalized)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", apperrors.ErrRateLimited
	}

	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	record := models.MagicLinkToken{
		Token:     token,
		Email:     normalized,
		ExpiresAt: time.Now().Add(tokenExpiry),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store magic link token: %w", err)
	}

	return token, nil
}

func (s *MagicLinkService) allow(ctx context.Context, email string) (bool, error) {
	if s.limiter != nil {
		return s.limiter.Allow(ctx, "magiclink:"+email)
	}

	// Fallback: count tokens created for this email within the last hour.
	var recent int64
	err := s.db.WithContext(ctx).Model(&models.MagicLinkToken{}).
		Where("email = ? AND created_at >= ?", email, time.Now().Add(-time.Hour)).
		Count(&recent).Error
	if err != nil {
		return false, err
	}
	return recent < maxTokensPerHour, nil
}

// Verify consumes a token and returns the user it authenticates, creating the
// user row on first login. The token is one-shot: it is flagged used before
// the user lookup, and an expired token is flagged used as cleanup.
func (s *MagicLinkService) Verify(ctx context.Context, token, email string) (*models.User, error) {
	token = strings.TrimSpace(token)
	normalized := NormalizeEmail(email)

	var record models.MagicLinkToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	if normalized != "" && record.Email != normalized {
		return nil, apperrors.ErrInvalidToken
	}

	if time.Now().After(record.ExpiresAt) {
		if err := s.markUsed(ctx, record.ID); err != nil {
			log.Printf("ERROR: Failed to mark expired token as used: %v", err)
		}
		return nil, apperrors.ErrTokenExpired
	}

	if record.Used {
		return nil, apperrors.ErrTokenUsed
	}

	if err := s.markUsed(ctx, record.ID); err != nil {
		return nil, err
	}

	var user models.User
	err = s.db.WithContext(ctx).Where("email = ?", record.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{Email: record.Email, LastActiveAt: time.Now()}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(&user).Update("last_active_at", time.Now()).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MagicLinkService) markUsed(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&models.MagicLinkToken{}).
		Where("id = ?", id).Update("used", true).Error
}

// Cleanup removes expired tokens and used tokens past their retention window.
// Returns the number of rows deleted.
func (s *MagicLinkService) Cleanup(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Or("used = ? AND created_at < ?", true, time.Now().Add(-usedTokenRetention)).
		Delete(&models.MagicLinkToken{})
	return result.RowsAffected, result.Error
}

// RunCleanupRoutine deletes stale tokens on a ticker until ctx is cancelled.
func (s *MagicLinkService) RunCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(cleanupTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deleted, err := s.Cleanup(ctx)
			if err != nil {
				log.Printf("ERROR: Magic link cleanup failed: %v", err)
				continue
			}
			if deleted > 0 {
				log.Printf("INFO: Cleaned up %d stale magic link tokens", deleted)
			}
		case <-ctx.Done():
			return
		}
	}
}

func generateToken() (string, error) {
	buf := make([]byte, magicLinkTokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
