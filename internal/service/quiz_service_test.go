package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learnflow-api/internal/dto"
	"github.com/noah-isme/learnflow-api/internal/events"
	"github.com/noah-isme/learnflow-api/internal/models"
)

func answer(questionID uint, raw string) dto.QuizAnswerRequest {
	return dto.QuizAnswerRequest{QuestionID: questionID, AnswerText: json.RawMessage(raw)}
}

func TestQuizCompletePartialScoreFails(t *testing.T) {
	f := newEngine(t, engineOptions{})
	ctx := context.Background()
	quiz := f.createQuiz(t, 70, choiceQuestion(`"A"`, 1), choiceQuestion(`"B"`, 1))

	attempt, err := f.quizzes.Start(ctx, f.studentActor(), quiz.ID)
	require.NoError(t, err)
	require.Equal(t, "started", attempt.State)

	first, err := f.quizzes.SubmitAnswer(ctx, f.studentActor(), quiz.ID, attempt.ID, answer(quiz.Questions[0].ID, `"A"`))
	require.NoError(t, err)
	require.True(t, first.IsCorrect)
	require.Equal(t, 1, first.PointsEarned)

	second, err := f.quizzes.SubmitAnswer(ctx, f.studentActor(), quiz.ID, attempt.ID, answer(quiz.Questions[1].ID, `"C"`))
	require.NoError(t, err)
	require.False(t, second.IsCorrect)
	require.Zero(t, second.PointsEarned)

	result, err := f.quizzes.Complete(ctx, f.studentActor(), quiz.ID, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, "completed", result.State)
	require.Equal(t, 50, *result.Score)
	require.False(t, result.Passed)
	require.Len(t, result.Answers, 2)
}

func TestQuizCompleteAllCorrectPasses(t *testing.T) {
	f := newEngine(t, engineOptions{})
	ctx := context.Background()
	quiz := f.createQuiz(t, 70, choiceQuestion(`"A"`, 1), choiceQuestion(`"B"`, 1))

	attempt, err := f.quizzes.Start(ctx, f.studentActor(), quiz.ID)
	require.NoError(t, err)
	_, err = f.quizzes.SubmitAnswer(ctx, f.studentActor(), quiz.ID, attempt.ID, answer(quiz.Questions[0].ID, `"A"`))
	require.NoError(t, err)
	_, err = f.quizzes.SubmitAnswer(ctx, f.studentActor(), quiz.ID, attempt.ID, answer(quiz.Questions[1].ID, `"B"`))
	require.NoError(t, err)

	result, err := f.quizzes.Complete(ctx, f.studentActor(), quiz.ID, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, 100, *result.Score)
	require.True(t, result.Passed)

	kinds := make([]string, 0)
	for _, published := range f.recorder.onTopic(events.TopicQuizEvents) {
		require.Equal(t, events.IDKey(attempt.ID), published.Key)
		kinds = append(kinds, published.Event.(*events.QuizEvent).Kind)
	}
	require.Equal(t, []string{
		events.TypeQuizStarted,
		events.TypeQuizAnswerSubmitted,
		events.TypeQuizAnswerSubmitted,
		events.TypeQuizCompleted,
	}, kinds)
}

func TestQuizUnansweredQuestionsCountAgainstScore(t *testing.T) {
	f := newEngine(t, engineOptions{})
	ctx := context.Background()
	quiz := f.createQuiz(t, 50, choiceQuestion(`"A"`, 1), choiceQuestion(`"B"`, 3))

	attempt, err := f.quizzes.Start(ctx, f.studentActor(), quiz.ID)
	require.NoError(t, err)
	_, err = f.quizzes.SubmitAnswer(ctx, f.studentActor(), quiz.ID, attempt.ID, answer(quiz.Questions[0].ID, `"A"`))
	require.NoError(t, err)

	result, err := f.quizzes.Complete(ctx, f.studentActor(), quiz.ID, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, 25, *result.Score)
	require.False(t, result.Passed)
}

func TestQuizWithoutQuestionsScoresZero(t *testing.T) {
	f := newEngine(t, engineOptions{})
	ctx := context.Background()
	quiz := f.createQuiz(t, 70)

	attempt, err := f.quizzes.Start(ctx, f.studentActor(), quiz.ID)
	require.NoError(t, err)

	result, err := f.quizzes.Complete(ctx, f.studentActor(), quiz.ID, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, 0, *result.Score)
	require.False(t, result.Passed)
}

func TestQuizAnswerIsReplaced(t *testing.T) {
	f := newEngine(t, engineOptions{})
	ctx := context.Background()
	quiz := f.createQuiz(t, 70, choiceQuestion(`"A"`, 2))

	attempt, err := f.quizzes.Start(ctx, f.studentActor(), quiz.ID)
	require.NoError(t, err)
	_, err = f.quizzes.SubmitAnswer(ctx, f.studentActor(), quiz.ID, attempt.ID, answer(quiz.Questions[0].ID, `"B"`))
	require.NoError(t, err)
	_, err = f.quizzes.SubmitAnswer(ctx, f.studentActor(), quiz.ID, attempt.ID, answer(quiz.Questions[0].ID, `"A"`))
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.QuizAnswer{}).Where("submission_id = ?", attempt.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)

	result, err := f.quizzes.Complete(ctx, f.studentActor(), quiz.ID, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, 100, *result.Score)
}

func TestQuizCompleteIsIdempotent(t *testing.T) {
	f := newEngine(t, engineOptions{})
	ctx := context.Background()
	quiz := f.createQuiz(t, 70, choiceQuestion(`"A"`, 1))

	attempt, err := f.quizzes.Start(ctx, f.studentActor(), quiz.ID)
	require.NoError(t, err)
	_, err = f.quizzes.SubmitAnswer(ctx, f.studentActor(), quiz.ID, attempt.ID, answer(quiz.Questions[0].ID, `"A"`))
	require.NoError(t, err)

	first, err := f.quizzes.Complete(ctx, f.studentActor(), quiz.ID, attempt.ID)
	require.NoError(t, err)
	second, err := f.quizzes.Complete(ctx, f.studentActor(), quiz.ID, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, *first.Score, *second.Score)
	require.Equal(t, first.CompletedAt.Unix(), second.CompletedAt.Unix())

	completed := 0
	for _, published := range f.recorder.onTopic(events.TopicQuizEvents) {
		if published.Event.(*events.QuizEvent).Kind == events.TypeQuizCompleted {
			completed++
		}
	}
	require.Equal(t, 1, completed)

	_, err = f.quizzes.SubmitAnswer(ctx, f.studentActor(), quiz.ID, attempt.ID, answer(quiz.Questions[0].ID, `"B"`))
	require.ErrorIs(t, err, ErrQuizAlreadyCompleted)
}

func TestQuizSubmitAnswerGuards(t *testing.T) {
	f := newEngine(t, engineOptions{})
	ctx := context.Background()
	quiz := f.createQuiz(t, 70, choiceQuestion(`"A"`, 1))
	foreign := f.createQuiz(t, 70, choiceQuestion(`"B"`, 1))

	attempt, err := f.quizzes.Start(ctx, f.studentActor(), quiz.ID)
	require.NoError(t, err)

	_, err = f.quizzes.SubmitAnswer(ctx, f.studentActor(), quiz.ID, attempt.ID, answer(foreign.Questions[0].ID, `"B"`))
	require.ErrorIs(t, err, ErrQuestionNotFound)

	_, err = f.quizzes.SubmitAnswer(ctx, f.otherActor(), quiz.ID, attempt.ID, answer(quiz.Questions[0].ID, `"A"`))
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.quizzes.SubmitAnswer(ctx, f.studentActor(), foreign.ID, attempt.ID, answer(foreign.Questions[0].ID, `"B"`))
	require.ErrorIs(t, err, ErrQuizSubmissionNotFound)

	_, err = f.quizzes.SubmitAnswer(ctx, f.studentActor(), quiz.ID, attempt.ID, answer(quiz.Questions[0].ID, `{not json`))
	require.ErrorIs(t, err, ErrInvalidAnswer)

	_, err = f.quizzes.Start(ctx, f.studentActor(), 999)
	require.ErrorIs(t, err, ErrQuizNotFound)
}

func TestQuizSingleOpenAttempt(t *testing.T) {
	f := newEngine(t, engineOptions{singleOpenAttempt: true})
	ctx := context.Background()
	quiz := f.createQuiz(t, 70, choiceQuestion(`"A"`, 1))

	attempt, err := f.quizzes.Start(ctx, f.studentActor(), quiz.ID)
	require.NoError(t, err)
	_, err = f.quizzes.Start(ctx, f.studentActor(), quiz.ID)
	require.ErrorIs(t, err, ErrQuizAttemptOpen)

	_, err = f.quizzes.Complete(ctx, f.studentActor(), quiz.ID, attempt.ID)
	require.NoError(t, err)
	_, err = f.quizzes.Start(ctx, f.studentActor(), quiz.ID)
	require.NoError(t, err)
}

func TestQuizMultipleAttemptsAllowedByDefault(t *testing.T) {
	f := newEngine(t, engineOptions{})
	ctx := context.Background()
	quiz := f.createQuiz(t, 70, choiceQuestion(`"A"`, 1))

	first, err := f.quizzes.Start(ctx, f.studentActor(), quiz.ID)
	require.NoError(t, err)
	second, err := f.quizzes.Start(ctx, f.studentActor(), quiz.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
}

func TestQuizSubmissionVisibility(t *testing.T) {
	f := newEngine(t, engineOptions{})
	ctx := context.Background()
	quiz := f.createQuiz(t, 70, choiceQuestion(`"A"`, 1))

	attempt, err := f.quizzes.Start(ctx, f.studentActor(), quiz.ID)
	require.NoError(t, err)

	_, err = f.quizzes.GetSubmission(ctx, f.studentActor(), quiz.ID, attempt.ID)
	require.NoError(t, err)
	_, err = f.quizzes.GetSubmission(ctx, f.otherActor(), quiz.ID, attempt.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.quizzes.GetSubmission(ctx, f.teacherActor(), quiz.ID, attempt.ID)
	require.NoError(t, err)

	stranger := models.Teacher{Name: "Eko", Email: "eko@example.com"}
	require.NoError(t, f.db.Create(&stranger).Error)
	_, err = f.quizzes.GetSubmission(ctx, Actor{ID: stranger.ID, Role: "teacher"}, quiz.ID, attempt.ID)
	require.ErrorIs(t, err, ErrForbidden)

	list, err := f.quizzes.ListQuizSubmissions(ctx, f.teacherActor(), quiz.ID, dto.PageQuery{})
	require.NoError(t, err)
	require.Equal(t, int64(1), list.Meta.Total)

	mine, err := f.quizzes.ListStudentSubmissions(ctx, f.studentActor(), f.student.ID, dto.PageQuery{})
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	_, err = f.quizzes.ListStudentSubmissions(ctx, f.otherActor(), f.student.ID, dto.PageQuery{})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestQuizTeacherStats(t *testing.T) {
	f := newEngine(t, engineOptions{})
	ctx := context.Background()
	quiz := f.createQuiz(t, 70, choiceQuestion(`"A"`, 1))

	for _, actor := range []Actor{f.studentActor(), f.otherActor()} {
		attempt, err := f.quizzes.Start(ctx, actor, quiz.ID)
		require.NoError(t, err)
		if actor.ID == f.student.ID {
			_, err = f.quizzes.SubmitAnswer(ctx, actor, quiz.ID, attempt.ID, answer(quiz.Questions[0].ID, `"A"`))
			require.NoError(t, err)
		}
		_, err = f.quizzes.Complete(ctx, actor, quiz.ID, attempt.ID)
		require.NoError(t, err)
	}
	_, err := f.quizzes.Start(ctx, f.studentActor(), quiz.ID)
	require.NoError(t, err)

	stats, err := f.quizzes.TeacherStats(ctx, f.teacherActor())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.Equal(t, int64(3), stats[0].TotalSubmissions)
	require.Equal(t, int64(2), stats[0].Completed)
	require.Equal(t, int64(1), stats[0].Passed)
	require.Equal(t, 50.0, stats[0].PassRate)
	require.Equal(t, 50.0, stats[0].AverageScore)

	_, err = f.quizzes.TeacherStats(ctx, f.studentActor())
	require.ErrorIs(t, err, ErrForbidden)
}
