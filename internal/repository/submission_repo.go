package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/learnflow-api/internal/models"
)

// SubmissionRepository persists exercise submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.ExerciseSubmission) error
	GetByID(ctx context.Context, id uint) (models.ExerciseSubmission, error)
	GetByIDForUpdate(ctx context.Context, id uint) (models.ExerciseSubmission, error)
	Update(ctx context.Context, submission *models.ExerciseSubmission) error
	ListByStudent(ctx context.Context, studentID uint, skip, limit int) ([]models.ExerciseSubmission, int64, error)
	ListByExercise(ctx context.Context, exerciseID uint, skip, limit int) ([]models.ExerciseSubmission, int64, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository constructs a submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.ExerciseSubmission) error {
	return conn(ctx, r.db).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.ExerciseSubmission, error) {
	var submission models.ExerciseSubmission
	err := conn(ctx, r.db).First(&submission, id).Error
	return submission, err
}

func (r *submissionRepository) GetByIDForUpdate(ctx context.Context, id uint) (models.ExerciseSubmission, error) {
	var submission models.ExerciseSubmission
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&submission, id).Error
	return submission, err
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.ExerciseSubmission) error {
	return conn(ctx, r.db).
		Model(submission).
		Select("status", "score", "feedback", "completed_at").
		Updates(submission).Error
}

func (r *submissionRepository) ListByStudent(ctx context.Context, studentID uint, skip, limit int) ([]models.ExerciseSubmission, int64, error) {
	return r.list(ctx, "student_id = ?", studentID, skip, limit)
}

func (r *submissionRepository) ListByExercise(ctx context.Context, exerciseID uint, skip, limit int) ([]models.ExerciseSubmission, int64, error) {
	return r.list(ctx, "exercise_id = ?", exerciseID, skip, limit)
}

func (r *submissionRepository) list(ctx context.Context, condition string, value uint, skip, limit int) ([]models.ExerciseSubmission, int64, error) {
	query := conn(ctx, r.db).Model(&models.ExerciseSubmission{}).Where(condition, value)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var submissions []models.ExerciseSubmission
	if err := paginate(query, skip, limit).Order("submitted_at DESC, id DESC").Find(&submissions).Error; err != nil {
		return nil, 0, err
	}

	return submissions, total, nil
}
