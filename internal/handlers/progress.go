package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qizhangumich/acams/internal/apperrors"
	"github.com/qizhangumich/acams/internal/middleware"
)

type submitRequest struct {
	QuestionID     uint     `json:"question_id" binding:"required"`
	SelectedAnswer []string `json:"selected_answer" binding:"required,min=1"`
	// Clients may assert correctness; it is informational only and the
	// server grades against the stored answer key regardless.
	IsCorrect *bool `json:"is_correct"`
}

// SubmitAnswer handles POST /progress (and its historical aliases /answer and
// /questions/submit). Grading and all three persistence effects happen
// server-side in one transaction.
func (h *Handler) SubmitAnswer(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "question_id and selected_answer are required"})
		return
	}

	result, err := h.Resolver.Submit(c.Request.Context(), user, req.QuestionID, req.SelectedAnswer)
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Question not found"})
		return
	}
	if err != nil {
		log.Printf("ERROR: Failed to record submission for user %s question %d: %v", user.ID, req.QuestionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to save progress"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "progress": result})
}

// Resume handles GET /progress/resume.
func (h *Handler) Resume(c *gin.Context) {
	user := middleware.CurrentUser(c)

	result, err := h.Resolver.Resume(c.Request.Context(), user)
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "No questions found in database"})
		return
	}
	if err != nil {
		log.Printf("ERROR: Failed to resume progress for user %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to resume progress"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"question_id": result.Question.ID,
		"question":    result.Question,
		"progress":    result.Progress,
		"index":       result.Index,
		"total":       result.Total,
	})
}

// GetProgress handles GET /progress?questionId=N.
func (h *Handler) GetProgress(c *gin.Context) {
	user := middleware.CurrentUser(c)

	questionID, err := strconv.ParseUint(c.Query("questionId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid question ID"})
		return
	}

	state, err := h.Resolver.GetProgress(c.Request.Context(), user.ID, uint(questionID))
	if err != nil {
		log.Printf("ERROR: Failed to load progress for user %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to load progress"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "progress": state})
}

type navigationUpdateRequest struct {
	CurrentIndex   *int     `json:"current_index" binding:"required"`
	CurrentAnswers []string `json:"current_answers"`
	LastQuestionID *uint    `json:"last_question_id"`
}

// UpdateNavigation handles POST /progress/update: it saves the in-flight,
// unsubmitted answer state for the question the user is viewing.
func (h *Handler) UpdateNavigation(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req navigationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil || *req.CurrentIndex < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "current_index is required and must be non-negative"})
		return
	}

	err := h.Resolver.SaveNavigationState(c.Request.Context(), user.ID, *req.CurrentIndex, req.CurrentAnswers, req.LastQuestionID)
	if err != nil {
		log.Printf("ERROR: Failed to save navigation state for user %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to save progress"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Summary handles GET /progress/summary.
func (h *Handler) Summary(c *gin.Context) {
	user := middleware.CurrentUser(c)

	summary, err := h.Resolver.Summary(c.Request.Context(), user.ID)
	if err != nil {
		log.Printf("ERROR: Failed to load summary for user %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to load progress summary"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"total":   summary.Total,
		"done":    summary.Done,
		"correct": summary.Correct,
		"wrong":   summary.Wrong,
		"percent": summary.Percent,
	})
}

// ResetProgress handles POST /progress/reset. It wipes only the calling
// user's rows.
func (h *Handler) ResetProgress(c *gin.Context) {
	user := middleware.CurrentUser(c)

	if err := h.Resolver.Reset(c.Request.Context(), user.ID); err != nil {
		log.Printf("ERROR: Failed to reset progress for user %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to reset progress"})
		return
	}

	log.Printf("INFO: Progress reset for user %s", user.ID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Dashboard handles GET /dashboard.
func (h *Handler) Dashboard(c *gin.Context) {
	user := middleware.CurrentUser(c)

	dashboard, err := h.Resolver.Dashboard(c.Request.Context(), user)
	if err != nil {
		log.Printf("ERROR: Failed to load dashboard for user %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to get dashboard data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"stats":            dashboard.Stats,
		"domain_stats":     dashboard.DomainStats,
		"last_question_id": dashboard.LastQuestionID,
	})
}

// ListQuestions handles GET /questions.
func (h *Handler) ListQuestions(c *gin.Context) {
	questions, err := h.Resolver.Questions(c.Request.Context())
	if err != nil {
		log.Printf("ERROR: Failed to list questions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to load questions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "questions": questions, "total": len(questions)})
}

// GetQuestion handles GET /questions/:questionId.
func (h *Handler) GetQuestion(c *gin.Context) {
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
		log.Printf("ERROR: Failed to load question %d: %v", questionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to load question"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "question": question})
}

// QuestionByIndex handles GET /questions/by-index?index=N.
func (h *Handler) QuestionByIndex(c *gin.Context) {
	index, err := strconv.Atoi(c.Query("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid index"})
		return
	}

	question, err := h.Resolver.QuestionByPosition(c.Request.Context(), index)
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Question not found"})
		return
	}
	if err != nil {
		log.Printf("ERROR: Failed to load question at index %d: %v", index, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to load question"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "index": index, "question": question})
}

// NextQuestion handles GET /questions/next?currentIndex=N. Running past the
// end of the corpus is a normal terminal state, not an error.
func (h *Handler) NextQuestion(c *gin.Context) {
	currentIndex, err := strconv.Atoi(c.Query("currentIndex"))
	if err != nil || currentIndex < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid currentIndex"})
		return
	}

	result, err := h.Resolver.Next(c.Request.Context(), currentIndex)
	if errors.Is(err, apperrors.ErrNoMoreQuestions) {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "No more questions"})
		return
	}
	if err != nil {
		log.Printf("ERROR: Failed to load next question after index %d: %v", currentIndex, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to load next question"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"index":    result.Index,
		"question": result.Question,
		"progress": result.Progress,
	})
}
