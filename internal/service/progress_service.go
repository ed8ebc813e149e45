package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/learnflow-api/internal/dto"
	"github.com/noah-isme/learnflow-api/internal/events"
	"github.com/noah-isme/learnflow-api/internal/models"
	"github.com/noah-isme/learnflow-api/internal/repository"
)

// ProgressService maintains the per-(student, exercise) rollup.
type ProgressService interface {
	// Update applies an explicit status change in its own transaction and rejects regressions.
	Update(ctx context.Context, actor Actor, studentID, exerciseID uint, req dto.ProgressUpdateRequest) (dto.ProgressResponse, error)
	// RecordOutcome folds an evaluated submission into the rollup. It joins the caller's
	// transaction, holds the current status on regression and publishes nothing.
	RecordOutcome(ctx context.Context, studentID, exerciseID uint, outcome models.SubmissionStatus, score *int) (models.Progress, error)
	Get(ctx context.Context, actor Actor, studentID, exerciseID uint) (dto.ProgressResponse, error)
	ListByStudent(ctx context.Context, actor Actor, studentID uint, page dto.PageQuery) (dto.ListResponse[dto.ProgressResponse], error)
	ListByExercise(ctx context.Context, actor Actor, exerciseID uint, page dto.PageQuery) (dto.ListResponse[dto.ProgressResponse], error)
}

type progressService struct {
	repo             repository.ProgressRepository
	tx               repository.TxManager
	publisher        events.Publisher
	leaderboard      LeaderboardInvalidator
	validator        *validator.Validate
	masteryThreshold int
	logger           zerolog.Logger
	now              func() time.Time
}

// NewProgressService constructs the progress tracker. leaderboard may be nil.
func NewProgressService(repo repository.ProgressRepository, tx repository.TxManager, publisher events.Publisher, leaderboard LeaderboardInvalidator, validate *validator.Validate, masteryThreshold int, logger zerolog.Logger) ProgressService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &progressService{
		repo:             repo,
		tx:               tx,
		publisher:        publisher,
		leaderboard:      leaderboard,
		validator:        validate,
		masteryThreshold: masteryThreshold,
		logger:           logger.With().Str("component", "progress_service").Logger(),
		now:              time.Now,
	}
}

func (s *progressService) Update(ctx context.Context, actor Actor, studentID, exerciseID uint, req dto.ProgressUpdateRequest) (dto.ProgressResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/learnflow-api/internal/service/progress")
	ctx, span := tracer.Start(ctx, "progress.update")
	span.SetAttributes(
		attribute.Int64("progress.student_id", int64(studentID)),
		attribute.Int64("progress.exercise_id", int64(exerciseID)),
	)
	defer span.End()

	if !actor.IsTeacher() {
		return dto.ProgressResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ProgressResponse{}, err
	}
	target, err := models.ParseProgressStatus(req.Status)
	if err != nil {
		span.RecordError(err)
		return dto.ProgressResponse{}, fmt.Errorf("%w: %v", ErrInvalidProgressTransition, err)
	}

	var progress models.Progress
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var applyErr error
		progress, applyErr = s.apply(txCtx, studentID, exerciseID, target, req.Score, true)
		return applyErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "progress_update_failed")
		return dto.ProgressResponse{}, err
	}

	if s.leaderboard != nil {
		s.leaderboard.InvalidateLeaderboard(ctx)
	}
	s.publishProgress(ctx, progress, req.Score)
	return dto.NewProgressResponse(progress), nil
}

func (s *progressService) RecordOutcome(ctx context.Context, studentID, exerciseID uint, outcome models.SubmissionStatus, score *int) (models.Progress, error) {
	target := models.ProgressStatusForOutcome(outcome, score, s.masteryThreshold)
	return s.apply(ctx, studentID, exerciseID, target, score, false)
}

// apply locks the current row, resolves the status transition and performs the atomic upsert.
// Attempts increment on every call.
func (s *progressService) apply(ctx context.Context, studentID, exerciseID uint, target models.ProgressStatus, score *int, strict bool) (models.Progress, error) {
	current, err := s.repo.GetForUpdate(ctx, studentID, exerciseID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		current = models.Progress{StudentID: studentID, ExerciseID: exerciseID, Status: models.ProgressStatusNotStarted}
	case err != nil:
		return models.Progress{}, err
	}

	status := target
	if !current.Status.CanTransitionTo(target) {
		if strict {
			return models.Progress{}, fmt.Errorf("%w: %s -> %s", ErrInvalidProgressTransition, current.Status, target)
		}
		s.logger.Debug().
			Uint("student_id", studentID).
			Uint("exercise_id", exerciseID).
			Str("current", string(current.Status)).
			Str("target", string(target)).
			Msg("holding progress status on regression")
		status = current.Status
	}

	now := s.now().UTC()
	var completedAt *time.Time
	switch {
	case status == models.ProgressStatusCompleted && target == status:
		completedAt = &now
	case status == models.ProgressStatusMastered && current.CompletedAt == nil:
		completedAt = &now
	}

	return s.repo.Upsert(ctx, repository.ProgressUpsert{
		StudentID:   studentID,
		ExerciseID:  exerciseID,
		Status:      status,
		Score:       score,
		CompletedAt: completedAt,
		At:          now,
	})
}

func (s *progressService) publishProgress(ctx context.Context, progress models.Progress, score *int) {
	s.publisher.Publish(ctx, events.TopicProgressUpdates, events.ProgressKey(progress.StudentID, progress.ExerciseID), &events.ProgressEvent{
		StudentID:  progress.StudentID,
		ExerciseID: progress.ExerciseID,
		Status:     string(progress.Status),
		Score:      score,
		Attempts:   progress.Attempts,
		BestScore:  progress.BestScore,
	})
}

func (s *progressService) Get(ctx context.Context, actor Actor, studentID, exerciseID uint) (dto.ProgressResponse, error) {
	if !actor.canReadStudent(studentID) {
		return dto.ProgressResponse{}, ErrForbidden
	}
	progress, err := s.repo.Get(ctx, studentID, exerciseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProgressResponse{}, ErrProgressNotFound
		}
		return dto.ProgressResponse{}, err
	}
	return dto.NewProgressResponse(progress), nil
}

func (s *progressService) ListByStudent(ctx context.Context, actor Actor, studentID uint, page dto.PageQuery) (dto.ListResponse[dto.ProgressResponse], error) {
	if !actor.canReadStudent(studentID) {
		return dto.ListResponse[dto.ProgressResponse]{}, ErrForbidden
	}
	page = page.Normalize()
	items, total, err := s.repo.ListByStudent(ctx, studentID, page.Skip, page.Limit)
	if err != nil {
		return dto.ListResponse[dto.ProgressResponse]{}, err
	}
	return dto.NewListResponse(dto.NewProgressResponseSlice(items), page, total), nil
}

func (s *progressService) ListByExercise(ctx context.Context, actor Actor, exerciseID uint, page dto.PageQuery) (dto.ListResponse[dto.ProgressResponse], error) {
	if !actor.IsTeacher() {
		return dto.ListResponse[dto.ProgressResponse]{}, ErrForbidden
	}
	page = page.Normalize()
	items, total, err := s.repo.ListByExercise(ctx, exerciseID, page.Skip, page.Limit)
	if err != nil {
		return dto.ListResponse[dto.ProgressResponse]{}, err
	}
	return dto.NewListResponse(dto.NewProgressResponseSlice(items), page, total), nil
}
