package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/learnflow-api/internal/dto"
	"github.com/noah-isme/learnflow-api/internal/events"
	"github.com/noah-isme/learnflow-api/internal/models"
	"github.com/noah-isme/learnflow-api/internal/observability"
	"github.com/noah-isme/learnflow-api/internal/repository"
	"github.com/noah-isme/learnflow-api/pkg/ai"
)

const (
	defaultSubmissionLanguage = "python"
	autoEvaluationPassScore   = 0.7
)

// SubmissionService records exercise submissions and their evaluation outcomes.
type SubmissionService interface {
	Create(ctx context.Context, actor Actor, req dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.SubmissionResponse, error)
	ListByStudent(ctx context.Context, actor Actor, studentID uint, page dto.PageQuery) (dto.ListResponse[dto.SubmissionResponse], error)
	ListByExercise(ctx context.Context, actor Actor, exerciseID uint, page dto.PageQuery) (dto.ListResponse[dto.SubmissionResponse], error)
	Evaluate(ctx context.Context, actor Actor, id uint, req dto.SubmissionEvaluateRequest) (dto.SubmissionEvaluationResponse, error)
	AutoEvaluate(ctx context.Context, actor Actor, id uint) (dto.SubmissionEvaluationResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	content     repository.ContentRepository
	students    repository.StudentRepository
	progress    ProgressService
	tx          repository.TxManager
	publisher   events.Publisher
	leaderboard LeaderboardInvalidator
	activity    ActivityRecorder
	evaluator   ai.Evaluator
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance. leaderboard and evaluator may be nil.
func NewSubmissionService(
	submissions repository.SubmissionRepository,
	content repository.ContentRepository,
	students repository.StudentRepository,
	progress ProgressService,
	tx repository.TxManager,
	publisher events.Publisher,
	leaderboard LeaderboardInvalidator,
	activity ActivityRecorder,
	evaluator ai.Evaluator,
	validate *validator.Validate,
	logger zerolog.Logger,
) SubmissionService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &submissionService{
		submissions: submissions,
		content:     content,
		students:    students,
		progress:    progress,
		tx:          tx,
		publisher:   publisher,
		leaderboard: leaderboard,
		activity:    activity,
		evaluator:   evaluator,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/learnflow-api/internal/service/submission"),
		now:         time.Now,
	}
}

func (s *submissionService) Create(ctx context.Context, actor Actor, req dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.create")
	defer span.End()

	if !actor.IsStudent() {
		return dto.SubmissionResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	if _, err := s.students.GetByID(ctx, actor.ID); err != nil {
		return dto.SubmissionResponse{}, notFoundAs(err, ErrStudentNotFound)
	}
	if _, err := s.content.GetExercise(ctx, req.ExerciseID); err != nil {
		return dto.SubmissionResponse{}, notFoundAs(err, ErrExerciseNotFound)
	}

	language := strings.ToLower(strings.TrimSpace(req.Language))
	if language == "" {
		language = defaultSubmissionLanguage
	}

	submission := models.ExerciseSubmission{
		StudentID:   actor.ID,
		ExerciseID:  req.ExerciseID,
		Code:        req.Code,
		Language:    language,
		Status:      models.SubmissionStatusSubmitted,
		SubmittedAt: s.now().UTC(),
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_create_failed")
		return dto.SubmissionResponse{}, err
	}
	span.SetAttributes(attribute.Int64("submission.id", int64(submission.ID)))

	s.publishSubmission(ctx, submission)
	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Get(ctx context.Context, actor Actor, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, notFoundAs(err, ErrSubmissionNotFound)
	}
	if !actor.canReadStudent(submission.StudentID) {
		return dto.SubmissionResponse{}, ErrForbidden
	}
	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) ListByStudent(ctx context.Context, actor Actor, studentID uint, page dto.PageQuery) (dto.ListResponse[dto.SubmissionResponse], error) {
	if !actor.canReadStudent(studentID) {
		return dto.ListResponse[dto.SubmissionResponse]{}, ErrForbidden
	}
	page = page.Normalize()
	items, total, err := s.submissions.ListByStudent(ctx, studentID, page.Skip, page.Limit)
	if err != nil {
		return dto.ListResponse[dto.SubmissionResponse]{}, err
	}
	return dto.NewListResponse(dto.NewSubmissionResponseSlice(items), page, total), nil
}

func (s *submissionService) ListByExercise(ctx context.Context, actor Actor, exerciseID uint, page dto.PageQuery) (dto.ListResponse[dto.SubmissionResponse], error) {
	if !actor.IsTeacher() {
		return dto.ListResponse[dto.SubmissionResponse]{}, ErrForbidden
	}
	page = page.Normalize()
	items, total, err := s.submissions.ListByExercise(ctx, exerciseID, page.Skip, page.Limit)
	if err != nil {
		return dto.ListResponse[dto.SubmissionResponse]{}, err
	}
	return dto.NewListResponse(dto.NewSubmissionResponseSlice(items), page, total), nil
}

// Evaluate applies a grading outcome and the progress rollup in one transaction, then notifies.
func (s *submissionService) Evaluate(ctx context.Context, actor Actor, id uint, req dto.SubmissionEvaluateRequest) (dto.SubmissionEvaluationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.evaluate")
	span.SetAttributes(
		attribute.Int64("submission.id", int64(id)),
		attribute.Int64("submission.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if !actor.IsTeacher() {
		return dto.SubmissionEvaluationResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionEvaluationResponse{}, err
	}
	next, err := models.ParseSubmissionStatus(req.Status)
	if err != nil {
		return dto.SubmissionEvaluationResponse{}, fmt.Errorf("%w: %v", ErrInvalidSubmissionTransition, err)
	}

	var (
		submission models.ExerciseSubmission
		progress   models.Progress
	)
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.submissions.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return notFoundAs(err, ErrSubmissionNotFound)
		}
		if !current.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidSubmissionTransition, current.Status, next)
		}

		current.Status = next
		if req.Score != nil {
			current.Score = req.Score
		}
		if req.Feedback != nil {
			feedback := strings.TrimSpace(*req.Feedback)
			current.Feedback = &feedback
		}
		if next == models.SubmissionStatusPassing {
			completedAt := s.now().UTC()
			current.CompletedAt = &completedAt
		}
		if err := s.submissions.Update(txCtx, &current); err != nil {
			return err
		}

		progress, err = s.progress.RecordOutcome(txCtx, current.StudentID, current.ExerciseID, next, req.Score)
		if err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		submission = current
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_evaluate_failed")
		return dto.SubmissionEvaluationResponse{}, err
	}

	observability.SubmissionEvaluations().WithLabelValues(string(submission.Status)).Inc()
	if s.leaderboard != nil {
		s.leaderboard.InvalidateLeaderboard(ctx)
	}
	s.publishSubmission(ctx, submission)
	s.publisher.Publish(ctx, events.TopicProgressUpdates, events.ProgressKey(progress.StudentID, progress.ExerciseID), &events.ProgressEvent{
		StudentID:  progress.StudentID,
		ExerciseID: progress.ExerciseID,
		Status:     string(progress.Status),
		Score:      req.Score,
		Attempts:   progress.Attempts,
		BestScore:  progress.BestScore,
	})
	s.recordEvaluation(ctx, actor, submission)

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Str("status", string(submission.Status)).
		Str("progress_status", string(progress.Status)).
		Int("attempts", progress.Attempts).
		Msg("submission evaluated")

	return dto.SubmissionEvaluationResponse{
		Submission: dto.NewSubmissionResponse(submission),
		Progress:   dto.NewProgressResponse(progress),
	}, nil
}

// AutoEvaluate asks the configured evaluator for a verdict and records it through Evaluate.
func (s *submissionService) AutoEvaluate(ctx context.Context, actor Actor, id uint) (dto.SubmissionEvaluationResponse, error) {
	if !actor.IsTeacher() {
		return dto.SubmissionEvaluationResponse{}, ErrForbidden
	}
	if s.evaluator == nil {
		return dto.SubmissionEvaluationResponse{}, ErrEvaluatorUnavailable
	}

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return dto.SubmissionEvaluationResponse{}, notFoundAs(err, ErrSubmissionNotFound)
	}
	exercise, err := s.content.GetExercise(ctx, submission.ExerciseID)
	if err != nil {
		return dto.SubmissionEvaluationResponse{}, notFoundAs(err, ErrExerciseNotFound)
	}

	result, err := s.evaluator.Evaluate(ctx, ai.EvaluationInput{
		ExerciseTitle:  exercise.Title,
		Description:    exercise.Description,
		StarterCode:    exercise.StarterCode,
		Language:       submission.Language,
		Code:           submission.Code,
		ExpectedOutput: exercise.ExpectedOutput,
	})
	if err != nil {
		s.logger.Error().Err(err).Uint("submission_id", id).Msg("automatic evaluation failed")
		return dto.SubmissionEvaluationResponse{}, fmt.Errorf("%w: %v", ErrEvaluatorUnavailable, err)
	}

	score := int(math.Round(result.Score * 100))
	status := models.SubmissionStatusFailing
	if result.Passed(autoEvaluationPassScore) {
		status = models.SubmissionStatusPassing
	}
	feedback := result.Feedback

	return s.Evaluate(ctx, actor, id, dto.SubmissionEvaluateRequest{
		Status:   string(status),
		Score:    &score,
		Feedback: &feedback,
	})
}

func (s *submissionService) publishSubmission(ctx context.Context, submission models.ExerciseSubmission) {
	s.publisher.Publish(ctx, events.TopicExerciseSubmissions, events.IDKey(submission.ID), &events.SubmissionEvent{
		StudentID:    submission.StudentID,
		ExerciseID:   submission.ExerciseID,
		SubmissionID: submission.ID,
		Status:       string(submission.Status),
		Score:        submission.Score,
	})
}

func (s *submissionService) recordEvaluation(ctx context.Context, actor Actor, submission models.ExerciseSubmission) {
	if s.activity == nil {
		return
	}
	entityID := submission.ID
	metadata := map[string]interface{}{
		"student_id":  submission.StudentID,
		"exercise_id": submission.ExerciseID,
		"status":      string(submission.Status),
	}
	if submission.Score != nil {
		metadata["score"] = *submission.Score
	}
	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "submission.evaluated",
		EntityType: "exercise_submission",
		EntityID:   &entityID,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to record evaluation activity")
	}
}

// notFoundAs translates a missing-row error into the service sentinel.
func notFoundAs(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
