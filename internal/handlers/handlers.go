package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qizhangumich/acams/internal/ai"
	"github.com/qizhangumich/acams/internal/auth"
	"github.com/qizhangumich/acams/internal/mail"
	"github.com/qizhangumich/acams/internal/progress"
)

// Handler carries the service dependencies for all HTTP endpoints.
type Handler struct {
	DB             *gorm.DB
	Resolver       *progress.Resolver
	Sessions       *auth.SessionService
	MagicLink      *auth.MagicLinkService
	Mailer         *mail.Mailer
	AIService      *ai.Service
	BaseURL        string
	CookieName     string
	GoogleClientID string
}

// New creates the handler set.
func New(db *gorm.DB, resolver *progress.Resolver, sessions *auth.SessionService,
	magicLink *auth.MagicLinkService, mailer *mail.Mailer, aiService *ai.Service,
	baseURL, cookieName, googleClientID string) *Handler {
	return &Handler{
		DB:             db,
		Resolver:       resolver,
		Sessions:       sessions,
		MagicLink:      magicLink,
		Mailer:         mailer,
		AIService:      aiService,
		BaseURL:        strings.TrimRight(baseURL, "/"),
		CookieName:     cookieName,
		GoogleClientID: googleClientID,
	}
}

func (h *Handler) secureCookies() bool {
	return strings.HasPrefix(h.BaseURL, "https://")
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.CookieName, token, int(h.Sessions.Expiry().Seconds()), "/", "", h.secureCookies(), true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.CookieName, "", -1, "/", "", h.secureCookies(), true)
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
}

// HealthDB handles GET /health/db.
func (h *Handler) HealthDB(c *gin.Context) {
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		log.Printf("ERROR: Database health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Database unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
}
