package models

import (
	"time"

	"gorm.io/datatypes"
)

// Exercise is a coding problem students submit solutions for.
type Exercise struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"size:255;not null" json:"title"`
	Description     string    `gorm:"type:text;not null" json:"description"`
	DifficultyLevel string    `gorm:"size:50" json:"difficulty_level"`
	Topic           string    `gorm:"size:100;index" json:"topic"`
	StarterCode     string    `gorm:"type:text" json:"starter_code"`
	ExpectedOutput  string    `gorm:"type:text" json:"expected_output"`
	TeacherID       *uint     `json:"teacher_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Quiz is an authored assessment made of ordered questions.
type Quiz struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Title            string         `gorm:"size:255;not null" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	TeacherID        *uint          `gorm:"index" json:"teacher_id"`
	PassingScore     int            `gorm:"not null" json:"passing_score"`
	TimeLimitMinutes *int           `json:"time_limit_minutes"`
	ShuffleQuestions bool           `json:"shuffle_questions"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Questions        []QuizQuestion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
}

// AuthoredBy reports whether the quiz was created by the given teacher.
func (q Quiz) AuthoredBy(teacherID uint) bool {
	return q.TeacherID != nil && teacherID != 0 && *q.TeacherID == teacherID
}

// QuizQuestion is one gradable item of a quiz.
type QuizQuestion struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	QuizID        uint           `gorm:"not null;index" json:"quiz_id"`
	QuestionText  string         `gorm:"type:text;not null" json:"question_text"`
	QuestionType  QuestionType   `gorm:"size:32;not null" json:"question_type"`
	Options       datatypes.JSON `json:"options"`
	CorrectAnswer datatypes.JSON `json:"correct_answer"`
	Explanation   string         `gorm:"type:text" json:"explanation"`
	Position      int            `gorm:"not null" json:"order"`
	Points        int            `gorm:"not null" json:"points"`
	CreatedAt     time.Time      `json:"created_at"`
}
