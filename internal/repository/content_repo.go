package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/learnflow-api/internal/models"
)

// ContentRepository looks up exercises, quizzes and questions.
type ContentRepository interface {
	GetExercise(ctx context.Context, id uint) (models.Exercise, error)
	CountExercises(ctx context.Context) (int64, error)
	GetQuiz(ctx context.Context, id uint) (models.Quiz, error)
	GetQuestion(ctx context.Context, id uint) (models.QuizQuestion, error)
	ListQuestions(ctx context.Context, quizID uint) ([]models.QuizQuestion, error)
	ListQuizzesByTeacher(ctx context.Context, teacherID uint) ([]models.Quiz, error)
	SaveExercise(ctx context.Context, exercise *models.Exercise) error
	SaveQuiz(ctx context.Context, quiz *models.Quiz) error
}

type contentRepository struct {
	db *gorm.DB
}

// NewContentRepository constructs a content repository.
func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) GetExercise(ctx context.Context, id uint) (models.Exercise, error) {
	var exercise models.Exercise
	err := conn(ctx, r.db).First(&exercise, id).Error
	return exercise, err
}

func (r *contentRepository) CountExercises(ctx context.Context) (int64, error) {
	var total int64
	err := conn(ctx, r.db).Model(&models.Exercise{}).Count(&total).Error
	return total, err
}

func (r *contentRepository) GetQuiz(ctx context.Context, id uint) (models.Quiz, error) {
	var quiz models.Quiz
	err := conn(ctx, r.db).First(&quiz, id).Error
	return quiz, err
}

func (r *contentRepository) GetQuestion(ctx context.Context, id uint) (models.QuizQuestion, error) {
	var question models.QuizQuestion
	err := conn(ctx, r.db).First(&question, id).Error
	return question, err
}

func (r *contentRepository) ListQuestions(ctx context.Context, quizID uint) ([]models.QuizQuestion, error) {
	var questions []models.QuizQuestion
	err := conn(ctx, r.db).
		Where("quiz_id = ?", quizID).
		Order("position ASC, id ASC").
		Find(&questions).Error
	return questions, err
}

func (r *contentRepository) ListQuizzesByTeacher(ctx context.Context, teacherID uint) ([]models.Quiz, error) {
	var quizzes []models.Quiz
	err := conn(ctx, r.db).
		Where("teacher_id = ?", teacherID).
		Order("id ASC").
		Find(&quizzes).Error
	return quizzes, err
}

// SaveExercise inserts the exercise, or updates the existing one with the same title.
func (r *contentRepository) SaveExercise(ctx context.Context, exercise *models.Exercise) error {
	db := conn(ctx, r.db)

	var existing models.Exercise
	err := db.Where("title = ?", exercise.Title).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return db.Create(exercise).Error
	case err != nil:
		return err
	}

	exercise.ID = existing.ID
	exercise.CreatedAt = existing.CreatedAt
	return db.Save(exercise).Error
}

// SaveQuiz inserts the quiz with its questions, or replaces the questions of the
// existing quiz with the same title.
func (r *contentRepository) SaveQuiz(ctx context.Context, quiz *models.Quiz) error {
	db := conn(ctx, r.db)
	questions := quiz.Questions
	quiz.Questions = nil

	var existing models.Quiz
	err := db.Where("title = ?", quiz.Title).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := db.Create(quiz).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		quiz.ID = existing.ID
		quiz.CreatedAt = existing.CreatedAt
		if err := db.Omit("Questions").Save(quiz).Error; err != nil {
			return err
		}
		if err := db.Where("quiz_id = ?", quiz.ID).Delete(&models.QuizQuestion{}).Error; err != nil {
			return err
		}
	}

	for i := range questions {
		questions[i].ID = 0
		questions[i].QuizID = quiz.ID
	}
	if len(questions) > 0 {
		if err := db.Create(&questions).Error; err != nil {
			return err
		}
	}
	quiz.Questions = questions
	return nil
}
