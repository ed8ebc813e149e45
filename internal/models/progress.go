package models

import "time"

// Progress is the rollup of a student's standing on one exercise.
// At most one row exists per (student, exercise).
type Progress struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	StudentID   uint           `gorm:"not null;uniqueIndex:idx_progress_student_exercise" json:"student_id"`
	ExerciseID  uint           `gorm:"not null;uniqueIndex:idx_progress_student_exercise" json:"exercise_id"`
	Status      ProgressStatus `gorm:"size:32;not null" json:"status"`
	Attempts    int            `gorm:"not null" json:"attempts"`
	BestScore   *int           `json:"best_score"`
	CompletedAt *time.Time     `json:"completed_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName keeps the singular table name used by analytics queries.
func (Progress) TableName() string {
	return "progress"
}
