package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/learnflow-api/internal/dto"
	"github.com/noah-isme/learnflow-api/internal/models"
	"github.com/noah-isme/learnflow-api/internal/repository"
)

const (
	defaultPassingScore   = 70
	defaultQuestionPoints = 1
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// SeedService loads demo content for development environments.
type SeedService interface {
	SeedContent(ctx context.Context, token string, req dto.SeedContentRequest) (dto.SeedSummary, error)
}

type seedService struct {
	students  repository.StudentRepository
	content   repository.ContentRepository
	tx        repository.TxManager
	validator *validator.Validate
	enabled   bool
	token     string
	logger    zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(students repository.StudentRepository, content repository.ContentRepository, tx repository.TxManager, validate *validator.Validate, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		students:  students,
		content:   content,
		tx:        tx,
		validator: validate,
		enabled:   enabled,
		token:     token,
		logger:    logger.With().Str("component", "seed_service").Logger(),
	}
}

func (s *seedService) SeedContent(ctx context.Context, token string, req dto.SeedContentRequest) (dto.SeedSummary, error) {
	if !s.enabled {
		return dto.SeedSummary{}, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return dto.SeedSummary{}, ErrSeedUnauthorized
	}
	if req.IsEmpty() {
		req = DefaultSeedContent()
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.SeedSummary{}, err
	}

	var summary dto.SeedSummary
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		teachers := make([]models.Teacher, 0, len(req.Teachers))
		for _, item := range req.Teachers {
			teachers = append(teachers, models.Teacher{
				Name:       strings.TrimSpace(item.Name),
				Email:      normalizeEmail(item.Email),
				Department: strings.TrimSpace(item.Department),
			})
		}
		if _, err := s.students.UpsertTeachers(txCtx, teachers); err != nil {
			return fmt.Errorf("seed teachers: %w", err)
		}
		teacherIDs := make(map[string]uint, len(teachers))
		for _, teacher := range teachers {
			teacherIDs[teacher.Email] = teacher.ID
		}

		students := make([]models.Student, 0, len(req.Students))
		for _, item := range req.Students {
			students = append(students, models.Student{
				Name:       strings.TrimSpace(item.Name),
				Email:      normalizeEmail(item.Email),
				GradeLevel: strings.TrimSpace(item.GradeLevel),
			})
		}
		if _, err := s.students.UpsertStudents(txCtx, students); err != nil {
			return fmt.Errorf("seed students: %w", err)
		}

		for _, item := range req.Exercises {
			exercise := models.Exercise{
				Title:           strings.TrimSpace(item.Title),
				Description:     item.Description,
				DifficultyLevel: strings.TrimSpace(item.DifficultyLevel),
				Topic:           strings.TrimSpace(item.Topic),
				StarterCode:     item.StarterCode,
				ExpectedOutput:  item.ExpectedOutput,
				TeacherID:       lookupTeacher(teacherIDs, item.TeacherEmail),
			}
			if err := s.content.SaveExercise(txCtx, &exercise); err != nil {
				return fmt.Errorf("seed exercise %q: %w", exercise.Title, err)
			}
		}

		for _, item := range req.Quizzes {
			quiz, err := buildSeedQuiz(item, teacherIDs)
			if err != nil {
				return err
			}
			if err := s.content.SaveQuiz(txCtx, &quiz); err != nil {
				return fmt.Errorf("seed quiz %q: %w", quiz.Title, err)
			}
			summary.Questions += len(quiz.Questions)
		}

		summary.Teachers = len(teachers)
		summary.Students = len(students)
		summary.Exercises = len(req.Exercises)
		summary.Quizzes = len(req.Quizzes)
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("content seeding failed")
		return dto.SeedSummary{}, err
	}

	s.logger.Info().
		Int("students", summary.Students).
		Int("teachers", summary.Teachers).
		Int("exercises", summary.Exercises).
		Int("quizzes", summary.Quizzes).
		Msg("content seeded")
	return summary, nil
}

func buildSeedQuiz(item dto.SeedQuiz, teacherIDs map[string]uint) (models.Quiz, error) {
	passingScore := defaultPassingScore
	if item.PassingScore != nil {
		passingScore = *item.PassingScore
	}

	quiz := models.Quiz{
		Title:            strings.TrimSpace(item.Title),
		Description:      item.Description,
		TeacherID:        lookupTeacher(teacherIDs, item.TeacherEmail),
		PassingScore:     passingScore,
		TimeLimitMinutes: item.TimeLimitMinutes,
		ShuffleQuestions: item.ShuffleQuestions,
		Questions:        make([]models.QuizQuestion, 0, len(item.Questions)),
	}

	for i, question := range item.Questions {
		questionType, err := models.ParseQuestionType(question.QuestionType)
		if err != nil {
			return models.Quiz{}, fmt.Errorf("seed quiz %q question %d: %w", quiz.Title, i+1, err)
		}
		if !json.Valid(question.CorrectAnswer) {
			return models.Quiz{}, fmt.Errorf("seed quiz %q question %d: %w", quiz.Title, i+1, ErrInvalidAnswer)
		}
		points := defaultQuestionPoints
		if question.Points != nil {
			points = *question.Points
		}
		var options datatypes.JSON
		if len(question.Options) > 0 && json.Valid(question.Options) {
			options = datatypes.JSON(question.Options)
		}
		quiz.Questions = append(quiz.Questions, models.QuizQuestion{
			QuestionText:  question.QuestionText,
			QuestionType:  questionType,
			Options:       options,
			CorrectAnswer: datatypes.JSON(question.CorrectAnswer),
			Explanation:   question.Explanation,
			Position:      i + 1,
			Points:        points,
		})
	}
	return quiz, nil
}

func lookupTeacher(ids map[string]uint, email string) *uint {
	id, ok := ids[normalizeEmail(email)]
	if !ok || id == 0 {
		return nil
	}
	return &id
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}
