package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/learnflow-api/internal/models"
)

// ProgressUpsert is one status-update call against the rollup.
type ProgressUpsert struct {
	StudentID   uint
	ExerciseID  uint
	Status      models.ProgressStatus
	Score       *int
	CompletedAt *time.Time
	At          time.Time
}

// ProgressRepository maintains the (student, exercise) rollup.
type ProgressRepository interface {
	GetForUpdate(ctx context.Context, studentID, exerciseID uint) (models.Progress, error)
	Get(ctx context.Context, studentID, exerciseID uint) (models.Progress, error)
	Upsert(ctx context.Context, input ProgressUpsert) (models.Progress, error)
	ListByStudent(ctx context.Context, studentID uint, skip, limit int) ([]models.Progress, int64, error)
	ListByExercise(ctx context.Context, exerciseID uint, skip, limit int) ([]models.Progress, int64, error)
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository constructs a progress repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) GetForUpdate(ctx context.Context, studentID, exerciseID uint) (models.Progress, error) {
	var progress models.Progress
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND exercise_id = ?", studentID, exerciseID).
		First(&progress).Error
	return progress, err
}

func (r *progressRepository) Get(ctx context.Context, studentID, exerciseID uint) (models.Progress, error) {
	var progress models.Progress
	err := conn(ctx, r.db).
		Where("student_id = ? AND exercise_id = ?", studentID, exerciseID).
		First(&progress).Error
	return progress, err
}

// Upsert applies one update in a single statement: attempts is incremented,
// best_score only rises and completed_at is kept unless a new one is supplied.
func (r *progressRepository) Upsert(ctx context.Context, input ProgressUpsert) (models.Progress, error) {
	row := models.Progress{
		StudentID:   input.StudentID,
		ExerciseID:  input.ExerciseID,
		Status:      input.Status,
		Attempts:    1,
		BestScore:   input.Score,
		CompletedAt: input.CompletedAt,
		CreatedAt:   input.At,
		UpdatedAt:   input.At,
	}

	db := conn(ctx, r.db)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "student_id"}, {Name: "exercise_id"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "status"}, Value: gorm.Expr("excluded.status")},
			{Column: clause.Column{Name: "attempts"}, Value: gorm.Expr("progress.attempts + 1")},
			{Column: clause.Column{Name: "best_score"}, Value: gorm.Expr(
				"CASE WHEN excluded.best_score IS NOT NULL AND (progress.best_score IS NULL OR excluded.best_score > progress.best_score) " +
					"THEN excluded.best_score ELSE progress.best_score END")},
			{Column: clause.Column{Name: "completed_at"}, Value: gorm.Expr("COALESCE(excluded.completed_at, progress.completed_at)")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		},
	}).Create(&row).Error
	if err != nil {
		return models.Progress{}, err
	}

	var stored models.Progress
	if err := db.Where("student_id = ? AND exercise_id = ?", input.StudentID, input.ExerciseID).First(&stored).Error; err != nil {
		return models.Progress{}, err
	}
	return stored, nil
}

func (r *progressRepository) ListByStudent(ctx context.Context, studentID uint, skip, limit int) ([]models.Progress, int64, error) {
	return r.list(ctx, "student_id = ?", studentID, skip, limit)
}

func (r *progressRepository) ListByExercise(ctx context.Context, exerciseID uint, skip, limit int) ([]models.Progress, int64, error) {
	return r.list(ctx, "exercise_id = ?", exerciseID, skip, limit)
}

func (r *progressRepository) list(ctx context.Context, condition string, value uint, skip, limit int) ([]models.Progress, int64, error) {
	query := conn(ctx, r.db).Model(&models.Progress{}).Where(condition, value)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Progress
	if err := paginate(query, skip, limit).Order("updated_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
