package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Progress status values for UserProgress.Status. A missing row means
// not_started.
const (
	StatusNotStarted = "not_started"
	StatusCorrect    = "correct"
	StatusWrong      = "wrong"
)

// Chat roles for QuestionChat.Role.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// StringArray is stored as JSONB.
type StringArray []string

func (a *StringArray) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	case nil:
		*a = nil
		return nil
	}
	return errors.New("failed to scan JSONB value into StringArray")
}

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// StringMap is stored as JSONB. Used for question options ("A" -> option text).
type StringMap map[string]string

func (m *StringMap) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	case nil:
		*m = nil
		return nil
	}
	return errors.New("failed to scan JSONB value into StringMap")
}

func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Question is immutable after seeding. Position is the 0-based corpus order
// used for sequential navigation; it is exposed as "index" in JSON.
type Question struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	Position        int         `gorm:"uniqueIndex;not null" json:"index"`
	Domain          string      `gorm:"size:120;not null" json:"domain"`
	QuestionText    string      `gorm:"not null" json:"question_text"`
	Options         StringMap   `gorm:"type:jsonb;not null" json:"options"`
	CorrectAnswers  StringArray `gorm:"type:jsonb;not null" json:"-"`
	Explanation     string      `json:"explanation,omitempty"`
	ExplanationAIEn string      `json:"explanation_ai_en,omitempty"`
	ExplanationAICh string      `json:"explanation_ai_ch,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// User is keyed by email. LastQuestionID is the resume anchor; CurrentIndex
// and CurrentAnswers hold in-flight, unsubmitted answer state.
type User struct {
	ID             string      `gorm:"primaryKey;size:36" json:"id"`
	Email          string      `gorm:"uniqueIndex;not null" json:"email"`
	LastQuestionID *uint       `json:"last_question_id"`
	CurrentIndex   *int        `json:"current_index"`
	CurrentAnswers StringArray `gorm:"type:jsonb" json:"current_answers"`
	LastActiveAt   time.Time   `json:"last_active_at"`
	CreatedAt      time.Time   `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// UserProgress holds at most one row per (user, question); submissions
// overwrite it in place.
type UserProgress struct {
	ID             uint        `gorm:"primaryKey" json:"-"`
	UserID         string      `gorm:"size:36;not null;uniqueIndex:idx_progress_user_question" json:"-"`
	QuestionID     uint        `gorm:"not null;uniqueIndex:idx_progress_user_question" json:"question_id"`
	Status         string      `gorm:"size:16;not null" json:"status"`
	SelectedAnswer StringArray `gorm:"type:jsonb" json:"selected_answer"`
	CreatedAt      time.Time   `json:"-"`
	UpdatedAt      time.Time   `json:"updated_at"`

	Question Question `gorm:"foreignKey:QuestionID" json:"-"`
}

func (UserProgress) TableName() string { return "user_progress" }

// WrongBook tracks every question a user has ever missed. WrongCount only
// ever grows; reset-progress is the one path that removes rows.
type WrongBook struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	UserID      string    `gorm:"size:36;not null;uniqueIndex:idx_wrongbook_user_question" json:"-"`
	QuestionID  uint      `gorm:"not null;uniqueIndex:idx_wrongbook_user_question" json:"question_id"`
	WrongCount  int       `gorm:"not null;default:1" json:"wrong_count"`
	LastWrongAt time.Time `gorm:"not null" json:"last_wrong_at"`
	CreatedAt   time.Time `json:"-"`

	Question Question `gorm:"foreignKey:QuestionID" json:"-"`
}

func (WrongBook) TableName() string { return "wrong_books" }

// QuestionChat is an append-only log of chat turns scoped to (user, question).
type QuestionChat struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"size:36;not null;index:idx_chat_user_question" json:"-"`
	QuestionID uint      `gorm:"not null;index:idx_chat_user_question" json:"question_id"`
	Role       string    `gorm:"size:16;not null" json:"role"`
	Content    string    `gorm:"not null" json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

func (QuestionChat) TableName() string { return "question_chats" }

// MagicLinkToken is a one-shot, time-limited login credential.
type MagicLinkToken struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Token     string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	Email     string    `gorm:"index;not null" json:"email"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Used      bool      `gorm:"not null;default:false" json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

func (MagicLinkToken) TableName() string { return "magic_link_tokens" }
