// Package progress implements the progress resolver: resume-position
// resolution, server-side grading, and atomic submission recording.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qizhangumich/acams/internal/apperrors"
	"github.com/qizhangumich/acams/internal/models"
)

// Resolver decides which question a user should see next and records graded
// submissions. It owns every write to UserProgress and WrongBook.
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a resolver bound to a database handle.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// State is the progress attached to a resolved question. Absent rows surface
// as not_started.
type State struct {
	Status         string             `json:"status"`
	SelectedAnswer models.StringArray `json:"selected_answer,omitempty"`
}

// ResumeResult is a resolved question plus its progress and corpus position.
type ResumeResult struct {
	Question models.Question `json:"question"`
	Progress State           `json:"progress"`
	Index    int             `json:"index"`
	Total    int             `json:"total"`
}

// SubmissionResult is the outcome of recording one graded submission.
type SubmissionResult struct {
	Status         string             `json:"status"`
	SelectedAnswer models.StringArray `json:"selected_answer"`
	WrongCount     int                `json:"wrong_count,omitempty"`
}

// Resume returns the question the user should continue with. Three tiers,
// first match wins:
//
//  1. From the first question with ID >= the user's resume anchor, the first
//     one in corpus order that is still not_started.
//  2. The first not_started question anywhere in the corpus.
//  3. The last question, when everything is answered.
//
// An empty corpus yields apperrors.ErrNotFound.
func (r *Resolver) Resume(ctx context.Context, user *models.User) (*ResumeResult, error) {
	questions, err := r.corpus(ctx)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, apperrors.ErrNotFound
	}

	progressMap, err := r.progressMap(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	// Tier 1: scan forward from the resume anchor.
	if user.LastQuestionID != nil {
		start := -1
		for i, q := range questions {
			if q.ID >= *user.LastQuestionID {
				start = i
				break
			}
		}
		if start >= 0 {
			if result := firstNotStarted(questions[start:], progressMap, len(questions)); result != nil {
				return result, nil
			}
		}
	}

	// Tier 2: first unanswered question anywhere.
	if result := firstNotStarted(questions, progressMap, len(questions)); result != nil {
		return result, nil
	}

	// Tier 3: corpus fully completed.
	last := questions[len(questions)-1]
	return &ResumeResult{
		Question: last,
		Progress: stateFor(progressMap, last.ID),
		Index:    last.Position,
		Total:    len(questions),
	}, nil
}

// Next returns the question at currentIndex+1 with fresh not_started
// progress. This is pure navigation: unlike Resume it never consults the
// target's existing progress. Walking past the end of the corpus yields
// apperrors.ErrNoMoreQuestions, a normal terminal state.
func (r *Resolver) Next(ctx context.Context, currentIndex int) (*ResumeResult, error) {
	if currentIndex < 0 {
		return nil, fmt.Errorf("invalid current index %d", currentIndex)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Question{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var question models.Question
	err := r.db.WithContext(ctx).Where("position = ?", currentIndex+1).First(&question).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNoMoreQuestions
	}
	if err != nil {
		return nil, err
	}

	return &ResumeResult{
		Question: question,
		Progress: State{Status: models.StatusNotStarted},
		Index:    question.Position,
		Total:    int(total),
	}, nil
}

// Grade checks a submitted answer set against the stored answer key. The two
// sets must be equal in both directions: over-selection and under-selection
// on multi-answer questions are both wrong. Returns the status and the
// normalized (deduplicated, sorted) selection.
func (r *Resolver) Grade(question *models.Question, selected []string) (string, []string, error) {
	normalized := normalizeSelection(selected)
	if len(normalized) == 0 {
		return "", nil, errors.New("selected answers must not be empty")
	}

	correct := make(map[string]bool, len(question.CorrectAnswers))
	for _, key := range question.CorrectAnswers {
		correct[key] = true
	}

	status := models.StatusCorrect
	if len(normalized) != len(correct) {
		status = models.StatusWrong
	} else {
		for _, key := range normalized {
			if !correct[key] {
				status = models.StatusWrong
				break
			}
		}
	}
	return status, normalized, nil
}

// Submit grades a submission and records it atomically: the UserProgress
// upsert, the WrongBook increment and the user's resume anchor either all
// commit or none do. Re-submitting overwrites the progress row; each wrong
// call bumps wrong_count by exactly one at the database level.
func (r *Resolver) Submit(ctx context.Context, user *models.User, questionID uint, selected []string) (*SubmissionResult, error) {
	var question models.Question
	err := r.db.WithContext(ctx).First(&question, questionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	status, normalized, err := r.Grade(&question, selected)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	selection := models.StringArray(normalized)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		progress := models.UserProgress{
			UserID:         user.ID,
			QuestionID:     question.ID,
			Status:         status,
			SelectedAnswer: selection,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "question_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":          status,
				"selected_answer": selection,
				"updated_at":      now,
			}),
		}).Create(&progress).Error
		if err != nil {
			return err
		}

		if status == models.StatusWrong {
			entry := models.WrongBook{
				UserID:      user.ID,
				QuestionID:  question.ID,
				WrongCount:  1,
				LastWrongAt: now,
			}
			err = tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}, {Name: "question_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"wrong_count":   gorm.Expr("wrong_books.wrong_count + 1"),
					"last_wrong_at": now,
				}),
			}).Create(&entry).Error
			if err != nil {
				return err
			}
		}

		return tx.Model(&models.User{}).Where("id = ?", user.ID).
			Updates(map[string]interface{}{
				"last_question_id": question.ID,
				"last_active_at":   now,
				"current_index":    question.Position,
				"current_answers":  selection,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	result := &SubmissionResult{Status: status, SelectedAnswer: selection}
	if status == models.StatusWrong {
		var entry models.WrongBook
		err = r.db.WithContext(ctx).
			Where("user_id = ? AND question_id = ?", user.ID, question.ID).
			First(&entry).Error
		if err != nil {
			return nil, err
		}
		result.WrongCount = entry.WrongCount
	}
	return result, nil
}

// SaveNavigationState persists the in-flight, unsubmitted answer state for
// the question the user is currently on.
func (r *Resolver) SaveNavigationState(ctx context.Context, userID string, index int, answers []string, lastQuestionID *uint) error {
	updates := map[string]interface{}{
		"current_index":   index,
		"current_answers": models.StringArray(normalizeSelection(answers)),
		"last_active_at":  time.Now(),
	}
	if lastQuestionID != nil {
		updates["last_question_id"] = *lastQuestionID
	}
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).Updates(updates).Error
}

// GetProgress returns the stored progress for one question, or a synthetic
// not_started state when no row exists.
func (r *Resolver) GetProgress(ctx context.Context, userID string, questionID uint) (*State, error) {
	var row models.UserProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND question_id = ?", userID, questionID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &State{Status: models.StatusNotStarted}, nil
	}
	if err != nil {
		return nil, err
	}
	return &State{Status: row.Status, SelectedAnswer: row.SelectedAnswer}, nil
}

// Reset deletes all progress, wrong-book and chat rows for one user and
// clears the in-flight answer state, in a single transaction. The question
// corpus and other users' rows are untouched.
func (r *Resolver) Reset(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserProgress{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.WrongBook{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.QuestionChat{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).
			Updates(map[string]interface{}{
				"current_index":   nil,
				"current_answers": nil,
			}).Error
	})
}

// Question fetches one question by ID.
func (r *Resolver) Question(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	err := r.db.WithContext(ctx).First(&question, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &question, nil
}

// QuestionByPosition fetches one question by its corpus position.
func (r *Resolver) QuestionByPosition(ctx context.Context, position int) (*models.Question, error) {
	var question models.Question
	err := r.db.WithContext(ctx).Where("position = ?", position).First(&question).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &question, nil
}

// Questions lists the corpus in position order.
func (r *Resolver) Questions(ctx context.Context) ([]models.Question, error) {
	return r.corpus(ctx)
}

func (r *Resolver) corpus(ctx context.Context) ([]models.Question, error) {
	var questions []models.Question
	err := r.db.WithContext(ctx).Order("position").Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *Resolver) progressMap(ctx context.Context, userID string) (map[uint]models.UserProgress, error) {
	var rows []models.UserProgress
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[uint]models.UserProgress, len(rows))
	for _, row := range rows {
		byQuestion[row.QuestionID] = row
	}
	return byQuestion, nil
}

func firstNotStarted(questions []models.Question, progressMap map[uint]models.UserProgress, total int) *ResumeResult {
	for _, q := range questions {
		row, ok := progressMap[q.ID]
		if !ok || row.Status == models.StatusNotStarted {
			return &ResumeResult{
				Question: q,
				Progress: stateFor(progressMap, q.ID),
				Index:    q.Position,
				Total:    total,
			}
		}
	}
	return nil
}

func stateFor(progressMap map[uint]models.UserProgress, questionID uint) State {
	if row, ok := progressMap[questionID]; ok {
		return State{Status: row.Status, SelectedAnswer: row.SelectedAnswer}
	}
	return State{Status: models.StatusNotStarted}
}

func normalizeSelection(selected []string) []string {
	seen := make(map[string]bool, len(selected))
	normalized := make([]string, 0, len(selected))
	for _, key := range selected {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		normalized = append(normalized, key)
	}
	sort.Strings(normalized)
	return normalized
}
