package handlers

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"

	"github.com/qizhangumich/acams/internal/apperrors"
	"github.com/qizhangumich/acams/internal/auth"
	"github.com/qizhangumich/acams/internal/middleware"
	"github.com/qizhangumich/acams/internal/models"
)

// RequestMagicLink handles POST /auth/magic-link. It always answers with the
// same generic message so the endpoint does not reveal which emails exist.
func (h *Handler) RequestMagicLink(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "email is required"})
		return
	}

	token, err := h.MagicLink.Create(c.Request.Context(), req.Email)
	if errors.Is(err, apperrors.ErrRateLimited) {
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Too many magic link requests. Please try again later."})
		return
	}
	if err != nil {
		// Invalid address or a storage failure; either way the caller only
		// gets the generic response.
		log.Printf("WARNING: Magic link not created: %v", err)
	} else {
		// Fire and forget: a provider failure must not undo the token.
		go h.Mailer.SendMagicLink(auth.NormalizeEmail(req.Email), token)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "If an account exists, a magic link has been sent to your email.",
	})
}

// VerifyMagicLink handles GET /auth/verify. On success the session cookie is
// attached to the same response that carries the redirect.
func (h *Handler) VerifyMagicLink(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		h.redirectLogin(c, "missing_token")
		return
	}

	user, err := h.MagicLink.Verify(c.Request.Context(), token, c.Query("email"))
	if err != nil {
		h.redirectLogin(c, verifyErrorCode(err))
		return
	}

	sessionToken, err := h.Sessions.Generate(user)
	if err != nil {
		log.Printf("ERROR: Failed to generate session token: %v", err)
		h.redirectLogin(c, "verification_failed")
		return
	}

	h.setSessionCookie(c, sessionToken)
	c.Redirect(http.StatusSeeOther, h.BaseURL+"/dashboard")
}

// GoogleAuth handles POST /auth/google: validates a Google ID token and signs
// the user in with the same session cookie as magic-link verification.
func (h *Handler) GoogleAuth(c *gin.Context) {
	if h.GoogleClientID == "" {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Google sign-in is not enabled"})
		return
	}

	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "token is required"})
		return
	}

	payload, err := idtoken.Validate(c.Request.Context(), req.Token, h.GoogleClientID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid Google ID token"})
		return
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Google token has no email claim"})
		return
	}
	email = auth.NormalizeEmail(email)

	var user models.User
	err = h.DB.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{Email: email, LastActiveAt: time.Now()}
		err = h.DB.Create(&user).Error
	} else if err == nil {
		err = h.DB.Model(&user).Update("last_active_at", time.Now()).Error
	}
	if err != nil {
		log.Printf("ERROR: Could not process Google sign-in for %s: %v", email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not process user"})
		return
	}

	sessionToken, err := h.Sessions.Generate(&user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not create session"})
		return
	}

	h.setSessionCookie(c, sessionToken)
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) redirectLogin(c *gin.Context, errorCode string) {
	c.Redirect(http.StatusSeeOther, h.BaseURL+"/login?error="+url.QueryEscape(errorCode))
}

func verifyErrorCode(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrTokenExpired):
		return "expired"
	case errors.Is(err, apperrors.ErrTokenUsed):
		return "already_used"
	case errors.Is(err, apperrors.ErrInvalidToken):
		return "invalid_token"
	default:
		return "verification_failed"
	}
}
