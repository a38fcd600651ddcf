package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qizhangumich/acams/internal/middleware"
)

// WrongBook handles GET /wrong-book.
func (h *Handler) WrongBook(c *gin.Context) {
	user := middleware.CurrentUser(c)

	items, err := h.Resolver.WrongBook(c.Request.Context(), user.ID)
	if err != nil {
		log.Printf("ERROR: Failed to load wrong book for user %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to get wrong book"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "questions": items, "total": len(items)})
}

// ReviewQueue handles GET /review/queue.
func (h *Handler) ReviewQueue(c *gin.Context) {
	user := middleware.CurrentUser(c)

	queue, err := h.Resolver.ReviewQueue(c.Request.Context(), user.ID)
	if err != nil {
		log.Printf("ERROR: Failed to build review queue for user %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to generate review queue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "queue": queue, "total": len(queue)})
}

// SprintDashboard handles GET /review/sprint-dashboard.
func (h *Handler) SprintDashboard(c *gin.Context) {
	user := middleware.CurrentUser(c)

	dashboard, err := h.Resolver.SprintDashboard(c.Request.Context(), user.ID)
	if err != nil {
		log.Printf("ERROR: Failed to build sprint dashboard for user %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to get sprint dashboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "dashboard": dashboard})
}
