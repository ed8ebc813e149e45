package dto

import (
	"time"

	"github.com/noah-isme/learnflow-api/internal/models"
)

// ProgressResponse serialises a progress rollup row.
type ProgressResponse struct {
	ID          uint       `json:"id"`
	StudentID   uint       `json:"student_id"`
	ExerciseID  uint       `json:"exercise_id"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	BestScore   *int       `json:"best_score"`
	CompletedAt *time.Time `json:"completed_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewProgressResponse converts a Progress model into a DTO.
func NewProgressResponse(model models.Progress) ProgressResponse {
	return ProgressResponse{
		ID:          model.ID,
		StudentID:   model.StudentID,
		ExerciseID:  model.ExerciseID,
		Status:      string(model.Status),
		Attempts:    model.Attempts,
		BestScore:   model.BestScore,
		CompletedAt: model.CompletedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewProgressResponseSlice converts a slice of progress rows.
func NewProgressResponseSlice(items []models.Progress) []ProgressResponse {
	result := make([]ProgressResponse, 0, len(items))
	for _, item := range items {
		result = append(result, NewProgressResponse(item))
	}
	return result
}

// ProgressUpdateRequest records an explicit progress change made by a teacher.
type ProgressUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=in_progress completed mastered"`
	Score  *int   `json:"score" validate:"omitempty,gte=0,lte=100"`
}
