package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learnflow-api/internal/dto"
	"github.com/noah-isme/learnflow-api/internal/models"
	"github.com/noah-isme/learnflow-api/internal/repository"
)

func seedAnalytics(t *testing.T, f *engineFixture) models.Exercise {
	t.Helper()
	ctx := context.Background()

	second := models.Exercise{Title: "Reverse", Description: "Reverse a string"}
	require.NoError(t, f.db.Create(&second).Error)

	_, err := f.progress.RecordOutcome(ctx, f.student.ID, f.exercise.ID, models.SubmissionStatusPassing, intRef(95))
	require.NoError(t, err)
	_, err = f.progress.RecordOutcome(ctx, f.student.ID, second.ID, models.SubmissionStatusPassing, intRef(75))
	require.NoError(t, err)
	_, err = f.progress.RecordOutcome(ctx, f.other.ID, f.exercise.ID, models.SubmissionStatusFailing, intRef(40))
	require.NoError(t, err)
	return second
}

func TestAnalyticsStudentStats(t *testing.T) {
	f := newEngine(t, engineOptions{})
	seedAnalytics(t, f)
	ctx := context.Background()

	stats, err := f.analytics.StudentStats(ctx, f.studentActor(), f.student.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.TotalExercises)
	require.Equal(t, int64(2), stats.CompletedExercises)
	require.Equal(t, int64(1), stats.MasteredExercises)
	require.Equal(t, 100.0, stats.CompletionRate)
	require.Equal(t, 85.0, stats.AverageScore)
	require.Equal(t, int64(2), stats.TotalAttempts)

	other, err := f.analytics.StudentStats(ctx, f.teacherActor(), f.other.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, other.CompletionRate)

	_, err = f.analytics.StudentStats(ctx, f.otherActor(), f.student.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.analytics.StudentStats(ctx, f.teacherActor(), 999)
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestAnalyticsExerciseStats(t *testing.T) {
	f := newEngine(t, engineOptions{})
	seedAnalytics(t, f)
	ctx := context.Background()

	stats, err := f.analytics.ExerciseStats(ctx, f.studentActor(), f.exercise.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.TotalStudents)
	require.Equal(t, int64(1), stats.SuccessfulCount)
	require.Equal(t, 50.0, stats.SuccessRate)
	require.Equal(t, 67.5, stats.AverageScore)

	_, err = f.analytics.ExerciseStats(ctx, f.studentActor(), 999)
	require.ErrorIs(t, err, ErrExerciseNotFound)
}

func TestAnalyticsLeaderboardUsesCache(t *testing.T) {
	f := newEngine(t, engineOptions{})
	seedAnalytics(t, f)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewAnalyticsService(
		repository.NewAnalyticsRepository(f.db),
		repository.NewContentRepository(f.db),
		repository.NewStudentRepository(f.db),
		client, time.Minute, zerolog.Nop(),
	)

	board, err := svc.Leaderboard(ctx, f.studentActor(), 0)
	require.NoError(t, err)
	require.False(t, board.CacheHit)
	require.Len(t, board.Entries, 1)
	require.Equal(t, 1, board.Entries[0].Rank)
	require.Equal(t, f.student.ID, board.Entries[0].StudentID)
	require.Equal(t, int64(2), board.Entries[0].ExercisesCompleted)
	require.True(t, mr.Exists("analytics:leaderboard:10"))

	cached, err := svc.Leaderboard(ctx, f.teacherActor(), 0)
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
	require.Equal(t, board.Entries, cached.Entries)

	mr.FastForward(2 * time.Minute)
	fresh, err := svc.Leaderboard(ctx, f.teacherActor(), 0)
	require.NoError(t, err)
	require.False(t, fresh.CacheHit)
}

func TestAnalyticsLeaderboardWithoutCache(t *testing.T) {
	f := newEngine(t, engineOptions{})
	seedAnalytics(t, f)

	board, err := f.analytics.Leaderboard(context.Background(), f.teacherActor(), MaxLeaderboardLimit+50)
	require.NoError(t, err)
	require.False(t, board.CacheHit)
	require.Len(t, board.Entries, 1)
}

func TestAnalyticsStudentsOverview(t *testing.T) {
	f := newEngine(t, engineOptions{})
	seedAnalytics(t, f)
	ctx := context.Background()

	_, err := f.analytics.StudentsOverview(ctx, f.studentActor(), dto.PageQuery{})
	require.ErrorIs(t, err, ErrForbidden)

	overview, err := f.analytics.StudentsOverview(ctx, f.teacherActor(), dto.PageQuery{})
	require.NoError(t, err)
	require.Equal(t, int64(2), overview.Meta.Total)

	byID := map[uint]dto.StudentOverviewResponse{}
	for _, item := range overview.Items {
		byID[item.StudentID] = item
	}
	require.Equal(t, int64(2), byID[f.student.ID].ExercisesCompleted)
	require.Equal(t, int64(0), byID[f.other.ID].ExercisesCompleted)
	require.Equal(t, int64(1), byID[f.other.ID].ExercisesTracked)
	require.False(t, byID[f.student.ID].LastActivity.IsZero())
}

func TestAnalyticsLeaderboardInvalidatedByEvaluation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newEngine(t, engineOptions{cache: client})
	seedAnalytics(t, f)
	ctx := context.Background()

	board, err := f.analytics.Leaderboard(ctx, f.teacherActor(), 0)
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
	_, err = f.analytics.Leaderboard(ctx, f.teacherActor(), 5)
	require.NoError(t, err)
	require.True(t, mr.Exists("analytics:leaderboard:10"))
	require.True(t, mr.Exists("analytics:leaderboard:5"))

	submission, err := f.submissions.Create(ctx, f.otherActor(), dto.SubmissionCreateRequest{ExerciseID: f.exercise.ID, Code: "print(1)"})
	require.NoError(t, err)
	_, err = f.submissions.Evaluate(ctx, f.teacherActor(), submission.ID, dto.SubmissionEvaluateRequest{Status: "passing", Score: intRef(70)})
	require.NoError(t, err)
	require.False(t, mr.Exists("analytics:leaderboard:10"))
	require.False(t, mr.Exists("analytics:leaderboard:5"))

	fresh, err := f.analytics.Leaderboard(ctx, f.teacherActor(), 0)
	require.NoError(t, err)
	require.False(t, fresh.CacheHit)
	require.Len(t, fresh.Entries, 2)

	_, err = f.progress.Update(ctx, f.teacherActor(), f.other.ID, f.exercise.ID, dto.ProgressUpdateRequest{Status: "mastered"})
	require.NoError(t, err)
	require.False(t, mr.Exists("analytics:leaderboard:10"))
}
