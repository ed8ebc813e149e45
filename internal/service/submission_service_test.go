package service

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learnflow-api/internal/dto"
	"github.com/noah-isme/learnflow-api/internal/events"
	"github.com/noah-isme/learnflow-api/internal/models"
	"github.com/noah-isme/learnflow-api/pkg/ai"
)

func createSubmission(t *testing.T, f *engineFixture) dto.SubmissionResponse {
	t.Helper()
	submission, err := f.submissions.Create(context.Background(), f.studentActor(), dto.SubmissionCreateRequest{
		ExerciseID: f.exercise.ID,
		Code:       "def total(xs):\n    return sum(xs)\n",
	})
	require.NoError(t, err)
	return submission
}

func TestSubmissionCreateDefaultsAndPublishes(t *testing.T) {
	f := newEngine(t, engineOptions{})

	submission := createSubmission(t, f)
	require.Equal(t, "submitted", submission.Status)
	require.Equal(t, "python", submission.Language)
	require.Nil(t, submission.Score)

	published := f.recorder.onTopic(events.TopicExerciseSubmissions)
	require.Len(t, published, 1)
	payload, ok := published[0].Event.(*events.SubmissionEvent)
	require.True(t, ok)
	require.Equal(t, submission.ID, payload.SubmissionID)
	require.Equal(t, "submitted", payload.Status)
}

func TestSubmissionCreateValidatesReferences(t *testing.T) {
	f := newEngine(t, engineOptions{})
	ctx := context.Background()

	_, err := f.submissions.Create(ctx, f.studentActor(), dto.SubmissionCreateRequest{ExerciseID: 999, Code: "print(1)"})
	require.ErrorIs(t, err, ErrExerciseNotFound)

	_, err = f.submissions.Create(ctx, Actor{ID: 999, Role: "student"}, dto.SubmissionCreateRequest{ExerciseID: f.exercise.ID, Code: "print(1)"})
	require.ErrorIs(t, err, ErrStudentNotFound)

	_, err = f.submissions.Create(ctx, f.teacherActor(), dto.SubmissionCreateRequest{ExerciseID: f.exercise.ID, Code: "print(1)"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.submissions.Create(ctx, f.studentActor(), dto.SubmissionCreateRequest{ExerciseID: f.exercise.ID})
	require.Error(t, err)
}

func TestSubmissionEvaluateUpdatesProgress(t *testing.T) {
	f := newEngine(t, engineOptions{})
	ctx := context.Background()
	submission := createSubmission(t, f)

	feedback := "  Nice work  "
	result, err := f.submissions.Evaluate(ctx, f.teacherActor(), submission.ID, dto.SubmissionEvaluateRequest{
		Status:   "passing",
		Score:    intRef(85),
		Feedback: &feedback,
	})
	require.NoError(t, err)
	require.Equal(t, "passing", result.Submission.Status)
	require.Equal(t, "Nice work", *result.Submission.Feedback)
	require.NotNil(t, result.Submission.CompletedAt)
	require.Equal(t, "completed", result.Progress.Status)
	require.Equal(t, 1, result.Progress.Attempts)
	require.Equal(t, 85, *result.Progress.BestScore)

	require.Len(t, f.recorder.onTopic(events.TopicExerciseSubmissions), 2)
	require.Len(t, f.recorder.onTopic(events.TopicProgressUpdates), 1)
	require.Len(t, f.activity.entries, 1)
	require.Equal(t, "submission.evaluated", f.activity.entries[0].Action)
	require.Equal(t, submission.ID, *f.activity.entries[0].EntityID)

	again, err := f.submissions.Evaluate(ctx, f.teacherActor(), submission.ID, dto.SubmissionEvaluateRequest{
		Status: "passing",
		Score:  intRef(95),
	})
	require.NoError(t, err)
	require.Equal(t, "mastered", again.Progress.Status)
	require.Equal(t, 2, again.Progress.Attempts)
	require.Equal(t, 95, *again.Progress.BestScore)
}

func TestSubmissionEvaluateKeepsScoreWhenOmitted(t *testing.T) {
	f := newEngine(t, engineOptions{})
	ctx := context.Background()
	submission := createSubmission(t, f)

	_, err := f.submissions.Evaluate(ctx, f.teacherActor(), submission.ID, dto.SubmissionEvaluateRequest{
		Status: "passing",
		Score:  intRef(85),
	})
	require.NoError(t, err)

	feedback := "Consider handling negative numbers."
	result, err := f.submissions.Evaluate(ctx, f.teacherActor(), submission.ID, dto.SubmissionEvaluateRequest{
		Status:   "passing",
		Feedback: &feedback,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Submission.Score)
	require.Equal(t, 85, *result.Submission.Score)
	require.Equal(t, feedback, *result.Submission.Feedback)

	var stored models.ExerciseSubmission
	require.NoError(t, f.db.First(&stored, submission.ID).Error)
	require.NotNil(t, stored.Score)
	require.Equal(t, 85, *stored.Score)
	require.Equal(t, 85, *result.Progress.BestScore)
}

func TestSubmissionEvaluateRejectsInvalidTransition(t *testing.T) {
	f := newEngine(t, engineOptions{})
	ctx := context.Background()
	submission := createSubmission(t, f)

	_, err := f.submissions.Evaluate(ctx, f.teacherActor(), submission.ID, dto.SubmissionEvaluateRequest{Status: "draft"})
	require.ErrorIs(t, err, ErrInvalidSubmissionTransition)

	stored, err := f.submissions.Get(ctx, f.studentActor(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, "submitted", stored.Status)

	var count int64
	require.NoError(t, f.db.Model(&models.Progress{}).Count(&count).Error)
	require.Zero(t, count)
	require.Empty(t, f.recorder.onTopic(events.TopicProgressUpdates))
}

func TestSubmissionEvaluatePermissions(t *testing.T) {
	f := newEngine(t, engineOptions{})
	ctx := context.Background()
	submission := createSubmission(t, f)

	_, err := f.submissions.Evaluate(ctx, f.studentActor(), submission.ID, dto.SubmissionEvaluateRequest{Status: "passing"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.submissions.Evaluate(ctx, f.teacherActor(), 999, dto.SubmissionEvaluateRequest{Status: "passing"})
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	_, err = f.submissions.Get(ctx, f.otherActor(), submission.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.submissions.ListByExercise(ctx, f.studentActor(), f.exercise.ID, dto.PageQuery{})
	require.ErrorIs(t, err, ErrForbidden)

	list, err := f.submissions.ListByExercise(ctx, f.teacherActor(), f.exercise.ID, dto.PageQuery{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
}

func TestSubmissionEvaluateSucceedsWhenTransportUnreachable(t *testing.T) {
	transport := events.NewRedisTransport(func(context.Context) (*redis.Client, error) {
		return nil, errors.New("dial tcp 127.0.0.1:6379: connection refused")
	}, "learnflow")
	notifier := events.NewNotifier(transport, events.Options{BufferSize: 4}, zerolog.Nop())
	notifier.Start(context.Background())
	t.Cleanup(func() { _ = notifier.Close(context.Background()) })
	require.Equal(t, events.StateFailing, notifier.Health().State)

	f := newEngine(t, engineOptions{publisher: notifier})
	ctx := context.Background()
	submission := createSubmission(t, f)

	result, err := f.submissions.Evaluate(ctx, f.teacherActor(), submission.ID, dto.SubmissionEvaluateRequest{
		Status: "failing",
		Score:  intRef(40),
	})
	require.NoError(t, err)
	require.Equal(t, "failing", result.Submission.Status)

	var stored models.ExerciseSubmission
	require.NoError(t, f.db.First(&stored, submission.ID).Error)
	require.Equal(t, models.SubmissionStatusFailing, stored.Status)
	require.Equal(t, events.StateFailing, notifier.Health().State)
	require.Zero(t, notifier.Health().Published)
}

func TestSubmissionAutoEvaluate(t *testing.T) {
	evaluator := &stubEvaluator{result: ai.EvaluationResult{Score: 0.72, Feedback: "Handles the empty list.", Verdict: ai.VerdictFail}}
	f := newEngine(t, engineOptions{evaluator: evaluator})
	submission := createSubmission(t, f)

	result, err := f.submissions.AutoEvaluate(context.Background(), f.teacherActor(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, 1, evaluator.calls)
	require.Equal(t, "passing", result.Submission.Status)
	require.Equal(t, 72, *result.Submission.Score)
	require.Equal(t, "Handles the empty list.", *result.Submission.Feedback)
	require.Equal(t, "completed", result.Progress.Status)
}

func TestSubmissionAutoEvaluateUnavailable(t *testing.T) {
	f := newEngine(t, engineOptions{})
	submission := createSubmission(t, f)

	_, err := f.submissions.AutoEvaluate(context.Background(), f.teacherActor(), submission.ID)
	require.ErrorIs(t, err, ErrEvaluatorUnavailable)

	failing := newEngine(t, engineOptions{evaluator: &stubEvaluator{err: errors.New("upstream timeout")}})
	other := createSubmission(t, failing)
	_, err = failing.submissions.AutoEvaluate(context.Background(), failing.teacherActor(), other.ID)
	require.ErrorIs(t, err, ErrEvaluatorUnavailable)

	stored, err := failing.submissions.Get(context.Background(), failing.teacherActor(), other.ID)
	require.NoError(t, err)
	require.Equal(t, "submitted", stored.Status)
}
