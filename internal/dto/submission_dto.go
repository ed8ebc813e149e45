package dto

import (
	"time"

	"github.com/noah-isme/learnflow-api/internal/models"
)

// SubmissionCreateRequest is sent by a student submitting code for an exercise.
type SubmissionCreateRequest struct {
	ExerciseID uint   `json:"exercise_id" validate:"required,gt=0"`
	Code       string `json:"code" validate:"required,max=65536"`
	Language   string `json:"language" validate:"omitempty,max=50"`
}

// SubmissionEvaluateRequest records a grading outcome.
type SubmissionEvaluateRequest struct {
	Status   string  `json:"status" validate:"required,oneof=draft submitted passing failing"`
	Score    *int    `json:"score" validate:"omitempty,gte=0,lte=100"`
	Feedback *string `json:"feedback" validate:"omitempty,max=10000"`
}

// SubmissionResponse is returned when viewing an exercise submission.
type SubmissionResponse struct {
	ID          uint       `json:"id"`
	StudentID   uint       `json:"student_id"`
	ExerciseID  uint       `json:"exercise_id"`
	Code        string     `json:"code"`
	Language    string     `json:"language"`
	Status      string     `json:"status"`
	Score       *int       `json:"score"`
	Feedback    *string    `json:"feedback"`
	SubmittedAt time.Time  `json:"submitted_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// SubmissionEvaluationResponse pairs the evaluated submission with the resulting progress.
type SubmissionEvaluationResponse struct {
	Submission SubmissionResponse `json:"submission"`
	Progress   ProgressResponse   `json:"progress"`
}

// NewSubmissionResponse converts an ExerciseSubmission model into a DTO.
func NewSubmissionResponse(model models.ExerciseSubmission) SubmissionResponse {
	return SubmissionResponse{
		ID:          model.ID,
		StudentID:   model.StudentID,
		ExerciseID:  model.ExerciseID,
		Code:        model.Code,
		Language:    model.Language,
		Status:      string(model.Status),
		Score:       model.Score,
		Feedback:    model.Feedback,
		SubmittedAt: model.SubmittedAt,
		CompletedAt: model.CompletedAt,
	}
}

// NewSubmissionResponseSlice converts a slice of submissions.
func NewSubmissionResponseSlice(items []models.ExerciseSubmission) []SubmissionResponse {
	result := make([]SubmissionResponse, 0, len(items))
	for _, item := range items {
		result = append(result, NewSubmissionResponse(item))
	}
	return result
}
