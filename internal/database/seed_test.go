package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qizhangumich/acams/internal/models"
)

const seedFixture = `[
  {
    "id": 1,
    "domain": "Risk Management",
    "question": "Which factor raises customer risk?",
    "options": {"A": "PEP status", "B": "Local retail customer"},
    "correct_answers": ["A"],
    "explanation": "PEPs carry elevated risk."
  },
  {
    "id": 2,
    "domain": "AML Regulations",
    "question": "Select all reporting obligations.",
    "options": {"A": "SAR", "B": "Birthday card", "C": "CTR"},
    "correct_answers": ["A", "C"],
    "explanation": "SARs and CTRs are mandatory filings."
  }
]`

func newSeedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSeedQuestions(t *testing.T) {
	db := newSeedDB(t)
	path := writeFixture(t, seedFixture)

	require.NoError(t, SeedQuestions(db, path))

	var questions []models.Question
	require.NoError(t, db.Order("position").Find(&questions).Error)
	require.Len(t, questions, 2)
	require.Equal(t, uint(1), questions[0].ID)
	require.Equal(t, 0, questions[0].Position)
	require.Equal(t, "Risk Management", questions[0].Domain)
	require.Equal(t, models.StringArray{"A", "C"}, questions[1].CorrectAnswers)
}

func TestSeedQuestionsIsIdempotent(t *testing.T) {
	db := newSeedDB(t)
	path := writeFixture(t, seedFixture)

	require.NoError(t, SeedQuestions(db, path))
	require.NoError(t, SeedQuestions(db, path))

	var count int64
	require.NoError(t, db.Model(&models.Question{}).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestSeedQuestionsUpdatesInPlace(t *testing.T) {
	db := newSeedDB(t)
	require.NoError(t, SeedQuestions(db, writeFixture(t, seedFixture)))

	updated := `[
  {
    "id": 1,
    "domain": "Risk Management",
    "question": "Which factor raises customer risk the most?",
    "options": {"A": "PEP status", "B": "Local retail customer"},
    "correct_answers": ["A"],
    "explanation": "PEPs carry elevated risk."
  }
]`
	require.NoError(t, SeedQuestions(db, writeFixture(t, updated)))

	var question models.Question
	require.NoError(t, db.First(&question, 1).Error)
	require.Equal(t, "Which factor raises customer risk the most?", question.QuestionText)
}

func TestSeedQuestionsMissingFileIsNotAnError(t *testing.T) {
	db := newSeedDB(t)
	require.NoError(t, SeedQuestions(db, filepath.Join(t.TempDir(), "absent.json")))
}

func TestSeedQuestionsRejectsBadAnswerKey(t *testing.T) {
	db := newSeedDB(t)

	missingKey := `[
  {
    "id": 1,
    "domain": "AML Regulations",
    "question": "Broken question",
    "options": {"A": "only option"},
    "correct_answers": ["Z"]
  }
]`
	require.Error(t, SeedQuestions(db, writeFixture(t, missingKey)))

	noAnswers := `[
  {
    "id": 1,
    "domain": "AML Regulations",
    "question": "Broken question",
    "options": {"A": "only option"},
    "correct_answers": []
  }
]`
	require.Error(t, SeedQuestions(db, writeFixture(t, noAnswers)))
}
