package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/learnflow-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func intPtr(v int) *int { return &v }

func TestProgressUpsertTracksAttemptsAndBestScore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProgressRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := repo.Upsert(ctx, ProgressUpsert{
		StudentID: 1, ExerciseID: 5, Status: models.ProgressStatusCompleted,
		Score: intPtr(80), CompletedAt: &now, At: now,
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.Attempts)
	require.Equal(t, 80, *first.BestScore)
	require.NotNil(t, first.CompletedAt)

	second, err := repo.Upsert(ctx, ProgressUpsert{
		StudentID: 1, ExerciseID: 5, Status: models.ProgressStatusCompleted,
		Score: intPtr(60), At: now.Add(time.Minute),
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 2, second.Attempts)
	require.Equal(t, 80, *second.BestScore)
	require.NotNil(t, second.CompletedAt, "completed_at survives an update without one")

	third, err := repo.Upsert(ctx, ProgressUpsert{
		StudentID: 1, ExerciseID: 5, Status: models.ProgressStatusMastered, At: now.Add(2 * time.Minute),
	})
	require.NoError(t, err)
	require.Equal(t, 3, third.Attempts)
	require.Equal(t, 80, *third.BestScore, "missing score leaves best_score alone")
	require.Equal(t, models.ProgressStatusMastered, third.Status)

	var count int64
	require.NoError(t, db.Model(&models.Progress{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestProgressUpsertWithoutScoresKeepsBestScoreNull(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProgressRepository(db)

	for i := 0; i < 3; i++ {
		_, err := repo.Upsert(context.Background(), ProgressUpsert{
			StudentID: 2, ExerciseID: 9, Status: models.ProgressStatusInProgress, At: time.Now(),
		})
		require.NoError(t, err)
	}

	progress, err := repo.Get(context.Background(), 2, 9)
	require.NoError(t, err)
	require.Equal(t, 3, progress.Attempts)
	require.Nil(t, progress.BestScore)
}

func TestProgressUpsertJoinsTransaction(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProgressRepository(db)
	tx := NewTxManager(db)

	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := repo.Upsert(ctx, ProgressUpsert{StudentID: 3, ExerciseID: 1, Status: models.ProgressStatusInProgress, At: time.Now()}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	_, err = repo.Get(context.Background(), 3, 1)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound, "rolled back with the transaction")
}

func TestQuizReplaceAnswerKeepsOneRowPerQuestion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuizRepository(db)
	ctx := context.Background()

	submission := models.QuizSubmission{StudentID: 1, QuizID: 1, StartedAt: time.Now()}
	require.NoError(t, repo.CreateSubmission(ctx, &submission))

	for _, answer := range []string{`"A"`, `"B"`, `"C"`} {
		require.NoError(t, repo.ReplaceAnswer(ctx, &models.QuizAnswer{
			SubmissionID: submission.ID,
			QuestionID:   7,
			Answer:       datatypes.JSON(answer),
			AnsweredAt:   time.Now(),
		}))
	}

	answers, err := repo.ListAnswers(ctx, submission.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	require.JSONEq(t, `"C"`, string(answers[0].Answer))
}

func TestQuizCompleteSubmissionWritesOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuizRepository(db)
	ctx := context.Background()

	submission := models.QuizSubmission{StudentID: 1, QuizID: 1, StartedAt: time.Now()}
	require.NoError(t, repo.CreateSubmission(ctx, &submission))

	open, err := repo.HasOpenSubmission(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, open)

	completedAt := time.Now()
	submission.CompletedAt = &completedAt
	submission.Score = intPtr(50)
	require.NoError(t, repo.CompleteSubmission(ctx, &submission))

	submission.Score = intPtr(100)
	require.ErrorIs(t, repo.CompleteSubmission(ctx, &submission), gorm.ErrRecordNotFound)

	stored, err := repo.GetSubmission(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, 50, *stored.Score)

	open, err = repo.HasOpenSubmission(ctx, 1, 1)
	require.NoError(t, err)
	require.False(t, open)
}

func TestAnalyticsLeaderboardOrdering(t *testing.T) {
	db := setupTestDB(t)
	analytics := NewAnalyticsRepository(db)
	ctx := context.Background()

	students := []models.Student{
		{Name: "Ana", Email: "ana@example.com"},
		{Name: "Budi", Email: "budi@example.com"},
		{Name: "Citra", Email: "citra@example.com"},
	}
	require.NoError(t, db.Create(&students).Error)

	rows := []models.Progress{
		{StudentID: students[0].ID, ExerciseID: 1, Status: models.ProgressStatusCompleted, Attempts: 1, BestScore: intPtr(70)},
		{StudentID: students[0].ID, ExerciseID: 2, Status: models.ProgressStatusMastered, Attempts: 2, BestScore: intPtr(95)},
		{StudentID: students[1].ID, ExerciseID: 1, Status: models.ProgressStatusCompleted, Attempts: 1, BestScore: intPtr(90)},
		{StudentID: students[1].ID, ExerciseID: 2, Status: models.ProgressStatusCompleted, Attempts: 3, BestScore: intPtr(88)},
		{StudentID: students[2].ID, ExerciseID: 1, Status: models.ProgressStatusInProgress, Attempts: 4, BestScore: intPtr(40)},
	}
	require.NoError(t, db.Create(&rows).Error)

	board, err := analytics.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2, "students without completed exercises are not ranked")
	require.Equal(t, "Budi", board[0].StudentName)
	require.Equal(t, int64(2), board[0].ExercisesCompleted)
	require.InDelta(t, 89.0, board[0].AverageScore, 0.001)
	require.Equal(t, "Ana", board[1].StudentName)

	summary, err := analytics.StudentSummary(ctx, students[0].ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), summary.Tracked)
	require.Equal(t, int64(2), summary.Completed)
	require.Equal(t, int64(1), summary.Mastered)
	require.Equal(t, int64(3), summary.TotalAttempts)
	require.InDelta(t, 82.5, summary.AverageScore, 0.001)

	exercise, err := analytics.ExerciseSummary(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3), exercise.Total)
	require.Equal(t, int64(2), exercise.Successful)
	require.Equal(t, int64(6), exercise.AttemptSum)
}

func TestContentSaveQuizReplacesQuestions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContentRepository(db)
	ctx := context.Background()

	quiz := models.Quiz{
		Title:        "Loops",
		PassingScore: 70,
		Questions: []models.QuizQuestion{
			{QuestionText: "Q1", QuestionType: models.QuestionTypeMultipleChoice, CorrectAnswer: datatypes.JSON(`"A"`), Points: 1, Position: 1},
			{QuestionText: "Q2", QuestionType: models.QuestionTypeTrueFalse, CorrectAnswer: datatypes.JSON(`true`), Points: 1, Position: 2},
		},
	}
	require.NoError(t, repo.SaveQuiz(ctx, &quiz))
	firstID := quiz.ID

	again := models.Quiz{
		Title:        "Loops",
		PassingScore: 80,
		Questions: []models.QuizQuestion{
			{QuestionText: "Only", QuestionType: models.QuestionTypeShortAnswer, CorrectAnswer: datatypes.JSON(`"range"`), Points: 2, Position: 1},
		},
	}
	require.NoError(t, repo.SaveQuiz(ctx, &again))
	require.Equal(t, firstID, again.ID)

	questions, err := repo.ListQuestions(ctx, firstID)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Equal(t, "Only", questions[0].QuestionText)

	stored, err := repo.GetQuiz(ctx, firstID)
	require.NoError(t, err)
	require.Equal(t, 80, stored.PassingScore)
}
