package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/learnflow-api/internal/models"
)

// StudentProgressSummary aggregates one student's progress rows.
type StudentProgressSummary struct {
	Tracked       int64   `gorm:"column:tracked"`
	Completed     int64   `gorm:"column:completed"`
	Mastered      int64   `gorm:"column:mastered"`
	AverageScore  float64 `gorm:"column:average_score"`
	TotalAttempts int64   `gorm:"column:total_attempts"`
}

// ExerciseProgressSummary aggregates all progress rows for one exercise.
type ExerciseProgressSummary struct {
	Total        int64   `gorm:"column:total"`
	Successful   int64   `gorm:"column:successful"`
	AverageScore float64 `gorm:"column:average_score"`
	AttemptSum   int64   `gorm:"column:attempt_sum"`
}

// LeaderboardRow is one ranked student.
type LeaderboardRow struct {
	StudentID          uint    `gorm:"column:student_id"`
	StudentName        string  `gorm:"column:student_name"`
	ExercisesCompleted int64   `gorm:"column:exercises_completed"`
	AverageScore       float64 `gorm:"column:average_score"`
}

// StudentActivityRow aggregates progress and quiz results per student.
type StudentActivityRow struct {
	StudentID          uint    `gorm:"column:student_id"`
	ExercisesTracked   int64   `gorm:"column:exercises_tracked"`
	ExercisesCompleted int64   `gorm:"column:exercises_completed"`
	AverageScore       float64 `gorm:"column:average_score"`
}

// AnalyticsRepository runs read-only aggregate queries over progress and quiz results.
type AnalyticsRepository interface {
	StudentSummary(ctx context.Context, studentID uint) (StudentProgressSummary, error)
	ExerciseSummary(ctx context.Context, exerciseID uint) (ExerciseProgressSummary, error)
	QuizzesPassed(ctx context.Context, studentID uint) (int64, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error)
	StudentActivity(ctx context.Context, studentIDs []uint) ([]StudentActivityRow, error)
	QuizzesPassedByStudent(ctx context.Context, studentIDs []uint) (map[uint]int64, error)
	LastActivity(ctx context.Context, studentIDs []uint) (map[uint]time.Time, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository constructs the analytics repository.
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) StudentSummary(ctx context.Context, studentID uint) (StudentProgressSummary, error) {
	var summary StudentProgressSummary
	err := conn(ctx, r.db).Model(&models.Progress{}).
		Select(`COUNT(*) AS tracked,
			COALESCE(SUM(CASE WHEN status IN ? THEN 1 ELSE 0 END), 0) AS completed,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS mastered,
			COALESCE(AVG(best_score), 0) AS average_score,
			COALESCE(SUM(attempts), 0) AS total_attempts`,
			models.CompleteProgressStatuses(), string(models.ProgressStatusMastered)).
		Where("student_id = ?", studentID).
		Scan(&summary).Error
	return summary, err
}

func (r *analyticsRepository) ExerciseSummary(ctx context.Context, exerciseID uint) (ExerciseProgressSummary, error) {
	var summary ExerciseProgressSummary
	err := conn(ctx, r.db).Model(&models.Progress{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status IN ? THEN 1 ELSE 0 END), 0) AS successful,
			COALESCE(AVG(best_score), 0) AS average_score,
			COALESCE(SUM(attempts), 0) AS attempt_sum`,
			models.CompleteProgressStatuses()).
		Where("exercise_id = ?", exerciseID).
		Scan(&summary).Error
	return summary, err
}

func (r *analyticsRepository) QuizzesPassed(ctx context.Context, studentID uint) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.QuizSubmission{}).
		Where("student_id = ? AND passed = ?", studentID, true).
		Count(&count).Error
	return count, err
}

// Leaderboard ranks students by completed exercises, then average best score.
func (r *analyticsRepository) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	err := conn(ctx, r.db).Table("progress AS p").
		Select(`p.student_id AS student_id,
			COALESCE(s.name, '') AS student_name,
			COUNT(p.id) AS exercises_completed,
			COALESCE(AVG(p.best_score), 0) AS average_score`).
		Joins("LEFT JOIN students s ON s.id = p.student_id").
		Where("p.status IN ?", models.CompleteProgressStatuses()).
		Group("p.student_id, s.name").
		Order("exercises_completed DESC, average_score DESC, p.student_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *analyticsRepository) StudentActivity(ctx context.Context, studentIDs []uint) ([]StudentActivityRow, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}

	var rows []StudentActivityRow
	err := conn(ctx, r.db).Model(&models.Progress{}).
		Select(`student_id,
			COUNT(*) AS exercises_tracked,
			COALESCE(SUM(CASE WHEN status IN ? THEN 1 ELSE 0 END), 0) AS exercises_completed,
			COALESCE(AVG(best_score), 0) AS average_score`,
			models.CompleteProgressStatuses()).
		Where("student_id IN ?", studentIDs).
		Group("student_id").
		Scan(&rows).Error
	return rows, err
}

func (r *analyticsRepository) QuizzesPassedByStudent(ctx context.Context, studentIDs []uint) (map[uint]int64, error) {
	result := make(map[uint]int64, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		StudentID uint  `gorm:"column:student_id"`
		Passed    int64 `gorm:"column:passed"`
	}
	err := conn(ctx, r.db).Model(&models.QuizSubmission{}).
		Select("student_id, COUNT(*) AS passed").
		Where("student_id IN ? AND passed = ?", studentIDs, true).
		Group("student_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.StudentID] = row.Passed
	}
	return result, nil
}

// LastActivity returns the latest progress or quiz timestamp per student.
func (r *analyticsRepository) LastActivity(ctx context.Context, studentIDs []uint) (map[uint]time.Time, error) {
	result := make(map[uint]time.Time, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}

	var progress []models.Progress
	if err := conn(ctx, r.db).Select("student_id", "updated_at").
		Where("student_id IN ?", studentIDs).
		Find(&progress).Error; err != nil {
		return nil, err
	}
	for _, row := range progress {
		if row.UpdatedAt.After(result[row.StudentID]) {
			result[row.StudentID] = row.UpdatedAt
		}
	}

	var attempts []models.QuizSubmission
	if err := conn(ctx, r.db).Select("student_id", "started_at", "completed_at").
		Where("student_id IN ?", studentIDs).
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	for _, row := range attempts {
		latest := row.StartedAt
		if row.CompletedAt != nil && row.CompletedAt.After(latest) {
			latest = *row.CompletedAt
		}
		if latest.After(result[row.StudentID]) {
			result[row.StudentID] = latest
		}
	}
	return result, nil
}
