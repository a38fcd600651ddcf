package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qizhangumich/acams/internal/apperrors"
	"github.com/qizhangumich/acams/internal/middleware"
	"github.com/qizhangumich/acams/internal/models"
)

type chatRequest struct {
	Message string `json:"message" binding:"required,min=1,max=2000"`
}

// SendChat handles POST /chat/:questionId. The user's turn and the assistant
// reply are written together after the completion succeeds, so an upstream
// failure leaves no half-formed conversation behind.
func (h *Handler) SendChat(c *gin.Context) {
	user := middleware.CurrentUser(c)

	questionID, err := strconv.ParseUint(c.Param("questionId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid question ID"})
		return
	}

	question, err := h.Resolver.Question(c.Request.Context(), uint(questionID))
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Question not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to load question"})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "message must be between 1 and 2000 characters"})
		return
	}

	if h.AIService == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "AI service not configured"})
		return
	}

	var history []models.QuestionChat
	err = h.DB.Where("user_id = ? AND question_id = ?", user.ID, question.ID).
		Order("created_at ASC").
		Find(&history).Error
	if err != nil {
		log.Printf("ERROR: Failed to load chat history for user %s question %d: %v", user.ID, question.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to load chat history"})
		return
	}

	reply, err := h.AIService.Chat(c.Request.Context(), question, history, req.Message)
	if err != nil {
		log.Printf("ERROR: AI completion failed for user %s question %d: %v", user.ID, question.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to get AI response. Please try again."})
		return
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		turns := []models.QuestionChat{
			{UserID: user.ID, QuestionID: question.ID, Role: models.ChatRoleUser, Content: req.Message},
			{UserID: user.ID, QuestionID: question.ID, Role: models.ChatRoleAssistant, Content: reply},
		}
		return tx.Create(&turns).Error
	})
	if err != nil {
		log.Printf("ERROR: Failed to persist chat turns for user %s question %d: %v", user.ID, question.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to save chat"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": reply})
}

// ChatHistory handles GET /chat/:questionId.
func (h *Handler) ChatHistory(c *gin.Context) {
	user := middleware.CurrentUser(c)

	questionID, err := strconv.ParseUint(c.Param("questionId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid question ID"})
		return
	}

	var history []models.QuestionChat
	err = h.DB.Where("user_id = ? AND question_id = ?", user.ID, uint(questionID)).
		Order("created_at ASC").
		Find(&history).Error
	if err != nil {
		log.Printf("ERROR: Failed to load chat history for user %s question %d: %v", user.ID, questionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to load chat history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "messages": history})
}
