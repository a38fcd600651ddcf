package database

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qizhangumich/acams/internal/models"
)

type seedQuestion struct {
	ID              uint              `json:"id"`
	Domain          string            `json:"domain"`
	Question        string            `json:"question"`
	Options         map[string]string `json:"options"`
	CorrectAnswers  []string          `json:"correct_answers"`
	Explanation     string            `json:"explanation"`
	ExplanationAIEn string            `json:"explanation_ai_en"`
	ExplanationAICh string            `json:"explanation_ai_ch"`
}

// SeedQuestions loads the question corpus from a JSON file. It is idempotent:
// existing rows are updated in place, and each question's position follows its
// order in the file. A missing file is not an error; the corpus may already be
// seeded.
func SeedQuestions(db *gorm.DB, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("INFO: %s not found, skipping question seed", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read questions file: %w", err)
	}

	var seed []seedQuestion
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse questions file: %w", err)
	}

	questions := make([]models.Question, 0, len(seed))
	for i, q := range seed {
		if len(q.CorrectAnswers) == 0 {
			return fmt.Errorf("question %d has no correct answers", q.ID)
		}
		for _, key := range q.CorrectAnswers {
			if _, ok := q.Options[key]; !ok {
				return fmt.Errorf("question %d: correct answer %q is not an option", q.ID, key)
			}
		}
		questions = append(questions, models.Question{
			ID:              q.ID,
			Position:        i,
			Domain:          q.Domain,
			QuestionText:    q.Question,
			Options:         q.Options,
			CorrectAnswers:  q.CorrectAnswers,
			Explanation:     q.Explanation,
			ExplanationAIEn: q.ExplanationAIEn,
			ExplanationAICh: q.ExplanationAICh,
		})
	}

	if len(questions) == 0 {
		log.Printf("INFO: %s contains no questions, skipping seed", path)
		return nil
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&questions).Error
	if err != nil {
		return fmt.Errorf("failed to seed questions: %w", err)
	}

	log.Printf("INFO: Seeded %d questions from %s", len(questions), path)
	return nil
}
