package dto

import "encoding/json"

// SeedContentRequest is the demo dataset accepted by the seed endpoint.
// An empty request seeds the built-in dataset.
type SeedContentRequest struct {
	Students  []SeedStudent  `json:"students" validate:"dive"`
	Teachers  []SeedTeacher  `json:"teachers" validate:"dive"`
	Exercises []SeedExercise `json:"exercises" validate:"dive"`
	Quizzes   []SeedQuiz     `json:"quizzes" validate:"dive"`
}

// IsEmpty reports whether the request carries no records.
func (r SeedContentRequest) IsEmpty() bool {
	return len(r.Students) == 0 && len(r.Teachers) == 0 && len(r.Exercises) == 0 && len(r.Quizzes) == 0
}

// SeedStudent is a student upserted by email.
type SeedStudent struct {
	Name       string `json:"name" validate:"required,max=255"`
	Email      string `json:"email" validate:"required,email"`
	GradeLevel string `json:"grade_level" validate:"omitempty,max=50"`
}

// SeedTeacher is a teacher upserted by email.
type SeedTeacher struct {
	Name       string `json:"name" validate:"required,max=255"`
	Email      string `json:"email" validate:"required,email"`
	Department string `json:"department" validate:"omitempty,max=100"`
}

// SeedExercise is an exercise upserted by title.
type SeedExercise struct {
	Title           string `json:"title" validate:"required,max=255"`
	Description     string `json:"description" validate:"required"`
	DifficultyLevel string `json:"difficulty_level" validate:"omitempty,max=50"`
	Topic           string `json:"topic" validate:"omitempty,max=100"`
	StarterCode     string `json:"starter_code"`
	ExpectedOutput  string `json:"expected_output"`
	TeacherEmail    string `json:"teacher_email" validate:"omitempty,email"`
}

// SeedQuiz is a quiz upserted by title; its questions replace any existing ones.
type SeedQuiz struct {
	Title            string         `json:"title" validate:"required,max=255"`
	Description      string         `json:"description"`
	TeacherEmail     string         `json:"teacher_email" validate:"omitempty,email"`
	PassingScore     *int           `json:"passing_score" validate:"omitempty,gte=0,lte=100"`
	TimeLimitMinutes *int           `json:"time_limit_minutes" validate:"omitempty,gt=0"`
	ShuffleQuestions bool           `json:"shuffle_questions"`
	Questions        []SeedQuestion `json:"questions" validate:"dive"`
}

// SeedQuestion is one quiz question.
type SeedQuestion struct {
	QuestionText  string          `json:"question_text" validate:"required"`
	QuestionType  string          `json:"question_type" validate:"omitempty,oneof=multiple_choice true_false short_answer code"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer json.RawMessage `json:"correct_answer" validate:"required"`
	Explanation   string          `json:"explanation"`
	Points        *int            `json:"points" validate:"omitempty,gte=0"`
}

// SeedSummary reports how many records a seed run upserted.
type SeedSummary struct {
	Students  int `json:"students"`
	Teachers  int `json:"teachers"`
	Exercises int `json:"exercises"`
	Quizzes   int `json:"quizzes"`
	Questions int `json:"questions"`
}
