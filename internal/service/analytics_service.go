package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/learnflow-api/internal/dto"
	"github.com/noah-isme/learnflow-api/internal/repository"
)

// Leaderboard size bounds.
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

const leaderboardKeyPattern = "analytics:leaderboard:*"

// LeaderboardInvalidator drops cached leaderboard pages once rankings change.
type LeaderboardInvalidator interface {
	InvalidateLeaderboard(ctx context.Context)
}

// AnalyticsService serves read-only aggregates over progress and quiz results.
type AnalyticsService interface {
	LeaderboardInvalidator
	StudentStats(ctx context.Context, actor Actor, studentID uint) (dto.StudentStatsResponse, error)
	ExerciseStats(ctx context.Context, actor Actor, exerciseID uint) (dto.ExerciseStatsResponse, error)
	Leaderboard(ctx context.Context, actor Actor, limit int) (dto.LeaderboardResponse, error)
	StudentsOverview(ctx context.Context, actor Actor, page dto.PageQuery) (dto.ListResponse[dto.StudentOverviewResponse], error)
}

type analyticsService struct {
	repo     repository.AnalyticsRepository
	content  repository.ContentRepository
	students repository.StudentRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewAnalyticsService constructs the analytics aggregator. cache may be nil.
func NewAnalyticsService(repo repository.AnalyticsRepository, content repository.ContentRepository, students repository.StudentRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) AnalyticsService {
	return &analyticsService{
		repo:     repo,
		content:  content,
		students: students,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "analytics_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/learnflow-api/internal/service/analytics"),
		now:      time.Now,
	}
}

func (s *analyticsService) StudentStats(ctx context.Context, actor Actor, studentID uint) (dto.StudentStatsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "analytics.student_stats")
	span.SetAttributes(attribute.Int64("analytics.student_id", int64(studentID)))
	defer span.End()

	if !actor.canReadStudent(studentID) {
		return dto.StudentStatsResponse{}, ErrForbidden
	}
	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		return dto.StudentStatsResponse{}, notFoundAs(err, ErrStudentNotFound)
	}

	totalExercises, err := s.content.CountExercises(ctx)
	if err != nil {
		return dto.StudentStatsResponse{}, s.fail(span, "count_exercises_failed", err)
	}
	summary, err := s.repo.StudentSummary(ctx, studentID)
	if err != nil {
		return dto.StudentStatsResponse{}, s.fail(span, "student_summary_failed", err)
	}
	quizzesPassed, err := s.repo.QuizzesPassed(ctx, studentID)
	if err != nil {
		return dto.StudentStatsResponse{}, s.fail(span, "quizzes_passed_failed", err)
	}

	return dto.StudentStatsResponse{
		StudentID:          studentID,
		TotalExercises:     totalExercises,
		ExercisesTracked:   summary.Tracked,
		CompletedExercises: summary.Completed,
		MasteredExercises:  summary.Mastered,
		CompletionRate:     percentage(summary.Completed, totalExercises),
		AverageScore:       round2(summary.AverageScore),
		TotalAttempts:      summary.TotalAttempts,
		QuizzesPassed:      quizzesPassed,
	}, nil
}

func (s *analyticsService) ExerciseStats(ctx context.Context, actor Actor, exerciseID uint) (dto.ExerciseStatsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "analytics.exercise_stats")
	span.SetAttributes(attribute.Int64("analytics.exercise_id", int64(exerciseID)))
	defer span.End()

	if !actor.IsStudent() && !actor.IsTeacher() {
		return dto.ExerciseStatsResponse{}, ErrForbidden
	}
	if _, err := s.content.GetExercise(ctx, exerciseID); err != nil {
		return dto.ExerciseStatsResponse{}, notFoundAs(err, ErrExerciseNotFound)
	}

	summary, err := s.repo.ExerciseSummary(ctx, exerciseID)
	if err != nil {
		return dto.ExerciseStatsResponse{}, s.fail(span, "exercise_summary_failed", err)
	}

	return dto.ExerciseStatsResponse{
		ExerciseID:      exerciseID,
		TotalStudents:   summary.Total,
		SuccessfulCount: summary.Successful,
		SuccessRate:     percentage(summary.Successful, summary.Total),
		AverageScore:    round2(summary.AverageScore),
		AttemptSum:      summary.AttemptSum,
	}, nil
}

// Leaderboard ranks students and caches the result in Redis when configured.
func (s *analyticsService) Leaderboard(ctx context.Context, actor Actor, limit int) (dto.LeaderboardResponse, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}
	cacheKey := fmt.Sprintf("analytics:leaderboard:%d", limit)

	ctx, span := s.tracer.Start(ctx, "analytics.leaderboard")
	span.SetAttributes(attribute.String("analytics.cache_key", cacheKey))
	defer span.End()

	if !actor.IsStudent() && !actor.IsTeacher() {
		return dto.LeaderboardResponse{}, ErrForbidden
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.LeaderboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
			span.RecordError(err)
		}
	}

	rows, err := s.repo.Leaderboard(ctx, limit)
	if err != nil {
		return dto.LeaderboardResponse{}, s.fail(span, "leaderboard_failed", err)
	}

	entries := make([]dto.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, dto.LeaderboardEntry{
			Rank:               i + 1,
			StudentID:          row.StudentID,
			StudentName:        row.StudentName,
			ExercisesCompleted: row.ExercisesCompleted,
			AverageScore:       round2(row.AverageScore),
		})
	}
	response := dto.LeaderboardResponse{Entries: entries, GeneratedAt: s.now().UTC()}

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store leaderboard cache")
				span.RecordError(err)
			}
		}
	}

	return response, nil
}

// InvalidateLeaderboard deletes every cached leaderboard page. Failures are logged;
// the cache TTL bounds staleness if a delete is lost.
func (s *analyticsService) InvalidateLeaderboard(ctx context.Context) {
	if s.cache == nil {
		return
	}

	var keys []string
	iter := s.cache.Scan(ctx, 0, leaderboardKeyPattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to scan leaderboard cache")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Int("keys", len(keys)).Msg("failed to invalidate leaderboard cache")
	}
}

func (s *analyticsService) StudentsOverview(ctx context.Context, actor Actor, page dto.PageQuery) (dto.ListResponse[dto.StudentOverviewResponse], error) {
	ctx, span := s.tracer.Start(ctx, "analytics.students_overview")
	defer span.End()

	if !actor.IsTeacher() {
		return dto.ListResponse[dto.StudentOverviewResponse]{}, ErrForbidden
	}

	page = page.Normalize()
	students, total, err := s.students.List(ctx, page.Skip, page.Limit)
	if err != nil {
		return dto.ListResponse[dto.StudentOverviewResponse]{}, s.fail(span, "list_students_failed", err)
	}

	ids := make([]uint, 0, len(students))
	for _, student := range students {
		ids = append(ids, student.ID)
	}

	activity, err := s.repo.StudentActivity(ctx, ids)
	if err != nil {
		return dto.ListResponse[dto.StudentOverviewResponse]{}, s.fail(span, "student_activity_failed", err)
	}
	byStudent := make(map[uint]repository.StudentActivityRow, len(activity))
	for _, row := range activity {
		byStudent[row.StudentID] = row
	}
	passed, err := s.repo.QuizzesPassedByStudent(ctx, ids)
	if err != nil {
		return dto.ListResponse[dto.StudentOverviewResponse]{}, s.fail(span, "quizzes_passed_failed", err)
	}
	lastActivity, err := s.repo.LastActivity(ctx, ids)
	if err != nil {
		return dto.ListResponse[dto.StudentOverviewResponse]{}, s.fail(span, "last_activity_failed", err)
	}

	items := make([]dto.StudentOverviewResponse, 0, len(students))
	for _, student := range students {
		row := byStudent[student.ID]
		last, ok := lastActivity[student.ID]
		if !ok {
			last = student.UpdatedAt
		}
		items = append(items, dto.StudentOverviewResponse{
			StudentID:          student.ID,
			Name:               student.Name,
			Email:              student.Email,
			GradeLevel:         student.GradeLevel,
			ExercisesTracked:   row.ExercisesTracked,
			ExercisesCompleted: row.ExercisesCompleted,
			QuizzesPassed:      passed[student.ID],
			AverageScore:       round2(row.AverageScore),
			LastActivity:       last,
		})
	}
	return dto.NewListResponse(items, page, total), nil
}

func (s *analyticsService) fail(span trace.Span, status string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, status)
	s.logger.Error().Err(err).Str("stage", status).Msg("analytics query failed")
	return err
}

func percentage(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}
