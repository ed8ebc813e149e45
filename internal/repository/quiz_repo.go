package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/learnflow-api/internal/models"
)

// QuizStatsRow aggregates attempts for one quiz.
type QuizStatsRow struct {
	QuizID       uint    `gorm:"column:quiz_id"`
	Total        int64   `gorm:"column:total"`
	Completed    int64   `gorm:"column:completed"`
	Passed       int64   `gorm:"column:passed"`
	AverageScore float64 `gorm:"column:average_score"`
}

// QuizRepository persists quiz submissions and their answers.
type QuizRepository interface {
	CreateSubmission(ctx context.Context, submission *models.QuizSubmission) error
	GetSubmission(ctx context.Context, id uint) (models.QuizSubmission, error)
	GetSubmissionForUpdate(ctx context.Context, id uint) (models.QuizSubmission, error)
	GetSubmissionWithAnswers(ctx context.Context, id uint) (models.QuizSubmission, error)
	HasOpenSubmission(ctx context.Context, studentID, quizID uint) (bool, error)
	CompleteSubmission(ctx context.Context, submission *models.QuizSubmission) error
	ReplaceAnswer(ctx context.Context, answer *models.QuizAnswer) error
	ListAnswers(ctx context.Context, submissionID uint) ([]models.QuizAnswer, error)
	ListByQuiz(ctx context.Context, quizID uint, skip, limit int) ([]models.QuizSubmission, int64, error)
	ListByStudent(ctx context.Context, studentID uint, skip, limit int) ([]models.QuizSubmission, int64, error)
	StatsByQuiz(ctx context.Context, quizIDs []uint) ([]QuizStatsRow, error)
}

type quizRepository struct {
	db *gorm.DB
}

// NewQuizRepository constructs a quiz repository.
func NewQuizRepository(db *gorm.DB) QuizRepository {
	return &quizRepository{db: db}
}

func (r *quizRepository) CreateSubmission(ctx context.Context, submission *models.QuizSubmission) error {
	return conn(ctx, r.db).Omit("Answers").Create(submission).Error
}

func (r *quizRepository) GetSubmission(ctx context.Context, id uint) (models.QuizSubmission, error) {
	var submission models.QuizSubmission
	err := conn(ctx, r.db).First(&submission, id).Error
	return submission, err
}

func (r *quizRepository) GetSubmissionForUpdate(ctx context.Context, id uint) (models.QuizSubmission, error) {
	var submission models.QuizSubmission
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&submission, id).Error
	return submission, err
}

func (r *quizRepository) GetSubmissionWithAnswers(ctx context.Context, id uint) (models.QuizSubmission, error) {
	var submission models.QuizSubmission
	err := conn(ctx, r.db).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_id ASC")
		}).
		First(&submission, id).Error
	return submission, err
}

func (r *quizRepository) HasOpenSubmission(ctx context.Context, studentID, quizID uint) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.QuizSubmission{}).
		Where("student_id = ? AND quiz_id = ? AND completed_at IS NULL", studentID, quizID).
		Count(&count).Error
	return count > 0, err
}

// CompleteSubmission writes the final score once; a submission already completed is left untouched.
func (r *quizRepository) CompleteSubmission(ctx context.Context, submission *models.QuizSubmission) error {
	result := conn(ctx, r.db).Model(&models.QuizSubmission{}).
		Where("id = ? AND completed_at IS NULL", submission.ID).
		Updates(map[string]interface{}{
			"completed_at": submission.CompletedAt,
			"score":        submission.Score,
			"passed":       submission.Passed,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ReplaceAnswer removes any prior answer for the same question before inserting the new one.
func (r *quizRepository) ReplaceAnswer(ctx context.Context, answer *models.QuizAnswer) error {
	db := conn(ctx, r.db)
	if err := db.
		Where("submission_id = ? AND question_id = ?", answer.SubmissionID, answer.QuestionID).
		Delete(&models.QuizAnswer{}).Error; err != nil {
		return err
	}
	answer.ID = 0
	return db.Create(answer).Error
}

func (r *quizRepository) ListAnswers(ctx context.Context, submissionID uint) ([]models.QuizAnswer, error) {
	var answers []models.QuizAnswer
	err := conn(ctx, r.db).
		Where("submission_id = ?", submissionID).
		Order("question_id ASC").
		Find(&answers).Error
	return answers, err
}

func (r *quizRepository) ListByQuiz(ctx context.Context, quizID uint, skip, limit int) ([]models.QuizSubmission, int64, error) {
	return r.list(ctx, "quiz_id = ?", quizID, skip, limit)
}

func (r *quizRepository) ListByStudent(ctx context.Context, studentID uint, skip, limit int) ([]models.QuizSubmission, int64, error) {
	return r.list(ctx, "student_id = ?", studentID, skip, limit)
}

func (r *quizRepository) list(ctx context.Context, condition string, value uint, skip, limit int) ([]models.QuizSubmission, int64, error) {
	query := conn(ctx, r.db).Model(&models.QuizSubmission{}).Where(condition, value)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var submissions []models.QuizSubmission
	if err := paginate(query, skip, limit).Order("started_at DESC, id DESC").Find(&submissions).Error; err != nil {
		return nil, 0, err
	}
	return submissions, total, nil
}

func (r *quizRepository) StatsByQuiz(ctx context.Context, quizIDs []uint) ([]QuizStatsRow, error) {
	if len(quizIDs) == 0 {
		return nil, nil
	}

	var rows []QuizStatsRow
	err := conn(ctx, r.db).Model(&models.QuizSubmission{}).
		Select(`quiz_id,
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN completed_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS completed,
			COALESCE(SUM(CASE WHEN passed THEN 1 ELSE 0 END), 0) AS passed,
			COALESCE(AVG(score), 0) AS average_score`).
		Where("quiz_id IN ?", quizIDs).
		Group("quiz_id").
		Scan(&rows).Error
	return rows, err
}
