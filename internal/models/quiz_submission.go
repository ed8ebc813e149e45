package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuizSubmission is one attempt by a student at a quiz.
// Score and Passed are written once, when the attempt completes.
type QuizSubmission struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	StudentID   uint         `gorm:"not null;index" json:"student_id"`
	QuizID      uint         `gorm:"not null;index" json:"quiz_id"`
	StartedAt   time.Time    `gorm:"not null" json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at"`
	Score       *int         `json:"score"`
	Passed      bool         `gorm:"not null" json:"passed"`
	Answers     []QuizAnswer `gorm:"foreignKey:SubmissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"answers,omitempty"`
}

// State derives the lifecycle state from the completion timestamp.
func (s QuizSubmission) State() QuizSubmissionState {
	if s.CompletedAt != nil {
		return QuizSubmissionCompleted
	}
	return QuizSubmissionStarted
}

// IsCompleted reports whether the attempt has been scored.
func (s QuizSubmission) IsCompleted() bool {
	return s.State() == QuizSubmissionCompleted
}

// QuizAnswer is the graded response to one question within a submission.
type QuizAnswer struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	SubmissionID uint           `gorm:"not null;uniqueIndex:idx_quiz_answer_submission_question" json:"submission_id"`
	QuestionID   uint           `gorm:"not null;uniqueIndex:idx_quiz_answer_submission_question" json:"question_id"`
	Answer       datatypes.JSON `gorm:"not null" json:"answer_text"`
	IsCorrect    bool           `gorm:"not null" json:"is_correct"`
	PointsEarned int            `gorm:"not null" json:"points_earned"`
	AnsweredAt   time.Time      `gorm:"not null" json:"answered_at"`
}
