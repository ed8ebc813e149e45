package dto

import "time"

// StudentStatsResponse aggregates one student's progress and quiz results.
type StudentStatsResponse struct {
	StudentID          uint    `json:"student_id"`
	TotalExercises     int64   `json:"total_exercises"`
	ExercisesTracked   int64   `json:"exercises_tracked"`
	CompletedExercises int64   `json:"completed_exercises"`
	MasteredExercises  int64   `json:"mastered_exercises"`
	CompletionRate     float64 `json:"completion_rate"`
	AverageScore       float64 `json:"average_score"`
	TotalAttempts      int64   `json:"total_attempts"`
	QuizzesPassed      int64   `json:"quizzes_passed"`
}

// ExerciseStatsResponse aggregates progress across students for one exercise.
type ExerciseStatsResponse struct {
	ExerciseID      uint    `json:"exercise_id"`
	TotalStudents   int64   `json:"total_attempts"`
	SuccessfulCount int64   `json:"successful_attempts"`
	SuccessRate     float64 `json:"success_rate"`
	AverageScore    float64 `json:"average_score"`
	AttemptSum      int64   `json:"attempt_sum"`
}

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank               int     `json:"rank"`
	StudentID          uint    `json:"student_id"`
	StudentName        string  `json:"student_name"`
	ExercisesCompleted int64   `json:"exercises_completed"`
	AverageScore       float64 `json:"average_score"`
}

// LeaderboardResponse wraps ranked rows with cache metadata.
type LeaderboardResponse struct {
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generated_at"`
	CacheHit    bool               `json:"cache_hit"`
}

// StudentOverviewResponse summarises one student for teachers.
type StudentOverviewResponse struct {
	StudentID          uint      `json:"student_id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	GradeLevel         string    `json:"grade_level"`
	ExercisesTracked   int64     `json:"exercises_tracked"`
	ExercisesCompleted int64     `json:"exercises_completed"`
	QuizzesPassed      int64     `json:"quizzes_passed"`
	AverageScore       float64   `json:"average_score"`
	LastActivity       time.Time `json:"last_activity"`
}
