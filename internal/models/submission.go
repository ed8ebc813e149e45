package models

import "time"

// ExerciseSubmission is one student's attempt at an exercise.
// Only the evaluation step mutates it after creation.
type ExerciseSubmission struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	StudentID   uint             `gorm:"not null;index" json:"student_id"`
	ExerciseID  uint             `gorm:"not null;index" json:"exercise_id"`
	Code        string           `gorm:"type:text;not null" json:"code"`
	Language    string           `gorm:"size:50;not null" json:"language"`
	Status      SubmissionStatus `gorm:"size:32;not null" json:"status"`
	Score       *int             `json:"score"`
	Feedback    *string          `gorm:"type:text" json:"feedback"`
	SubmittedAt time.Time        `gorm:"not null" json:"submitted_at"`
	CompletedAt *time.Time       `json:"completed_at"`
}

// IsEvaluated reports whether the grader has recorded an outcome.
func (s ExerciseSubmission) IsEvaluated() bool {
	return s.Status.IsTerminal()
}
