package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qizhangumich/acams/internal/auth"
	"github.com/qizhangumich/acams/internal/models"
)

// Context key under which the authenticated user is stored.
const UserKey = "current_user"

// SessionMiddleware validates the session cookie (or a Bearer token as a
// fallback) and loads the user row into the request context. Identity is
// always derived from the verified token, never from request payloads.
func SessionMiddleware(db *gorm.DB, sessions *auth.SessionService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(cookieName)
		if err != nil || tokenString == "" {
			tokenString = bearerToken(c)
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authenticated"})
			return
		}

		claims, err := sessions.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid session"})
			return
		}

		var user models.User
		if err := db.Where("id = ?", claims.UserID).First(&user).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid session"})
			return
		}

		c.Set(UserKey, &user)
		c.Next()
	}
}

// CurrentUser returns the authenticated user stored by SessionMiddleware.
func CurrentUser(c *gin.Context) *models.User {
	value, exists := c.Get(UserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
