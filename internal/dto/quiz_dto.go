package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/learnflow-api/internal/models"
)

// QuizAnswerRequest carries a student's answer to one question.
// The answer may be any JSON value: string, number, boolean, list or object.
type QuizAnswerRequest struct {
	QuestionID uint            `json:"question_id" validate:"required,gt=0"`
	AnswerText json.RawMessage `json:"answer_text" validate:"required"`
}

// QuizAnswerResponse serialises a graded answer.
type QuizAnswerResponse struct {
	ID           uint            `json:"id"`
	SubmissionID uint            `json:"submission_id"`
	QuestionID   uint            `json:"question_id"`
	AnswerText   json.RawMessage `json:"answer_text"`
	IsCorrect    bool            `json:"is_correct"`
	PointsEarned int             `json:"points_earned"`
	AnsweredAt   time.Time       `json:"answered_at"`
}

// QuizSubmissionResponse serialises a quiz attempt.
type QuizSubmissionResponse struct {
	ID          uint                 `json:"id"`
	StudentID   uint                 `json:"student_id"`
	QuizID      uint                 `json:"quiz_id"`
	State       string               `json:"state"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at"`
	Score       *int                 `json:"score"`
	Passed      bool                 `json:"passed"`
	Answers     []QuizAnswerResponse `json:"answers,omitempty"`
}

// QuizStatsResponse summarises attempts on one quiz for its author.
type QuizStatsResponse struct {
	QuizID           uint    `json:"quiz_id"`
	Title            string  `json:"title"`
	TotalSubmissions int64   `json:"total_submissions"`
	Completed        int64   `json:"completed_submissions"`
	Passed           int64   `json:"passed_submissions"`
	AverageScore     float64 `json:"average_score"`
	PassRate         float64 `json:"pass_rate"`
}

// NewQuizAnswerResponse converts a QuizAnswer model into a DTO.
func NewQuizAnswerResponse(model models.QuizAnswer) QuizAnswerResponse {
	return QuizAnswerResponse{
		ID:           model.ID,
		SubmissionID: model.SubmissionID,
		QuestionID:   model.QuestionID,
		AnswerText:   rawJSON(model.Answer),
		IsCorrect:    model.IsCorrect,
		PointsEarned: model.PointsEarned,
		AnsweredAt:   model.AnsweredAt,
	}
}

// NewQuizSubmissionResponse converts a QuizSubmission model, including any loaded answers.
func NewQuizSubmissionResponse(model models.QuizSubmission) QuizSubmissionResponse {
	response := QuizSubmissionResponse{
		ID:          model.ID,
		StudentID:   model.StudentID,
		QuizID:      model.QuizID,
		State:       string(model.State()),
		StartedAt:   model.StartedAt,
		CompletedAt: model.CompletedAt,
		Score:       model.Score,
		Passed:      model.Passed,
	}
	if len(model.Answers) > 0 {
		response.Answers = make([]QuizAnswerResponse, 0, len(model.Answers))
		for _, answer := range model.Answers {
			response.Answers = append(response.Answers, NewQuizAnswerResponse(answer))
		}
	}
	return response
}

// NewQuizSubmissionResponseSlice converts a slice of quiz submissions.
func NewQuizSubmissionResponseSlice(items []models.QuizSubmission) []QuizSubmissionResponse {
	result := make([]QuizSubmissionResponse, 0, len(items))
	for _, item := range items {
		result = append(result, NewQuizSubmissionResponse(item))
	}
	return result
}
