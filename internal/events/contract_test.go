package events

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + path)
	require.NoError(t, err)
	return schema
}

func publishOne(t *testing.T, topic, key string, event Event) []byte {
	t.Helper()
	transport := &fakeTransport{}
	notifier := NewNotifier(transport, Options{}, zerolog.Nop())
	notifier.Start(context.Background())
	notifier.Publish(context.Background(), topic, key, event)
	require.NoError(t, notifier.Close(context.Background()))

	sent := transport.messages()
	require.Len(t, sent, 1)
	return sent[0].Payload
}

func decodeForSchema(t *testing.T, payload []byte) interface{} {
	t.Helper()
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	var doc interface{}
	require.NoError(t, decoder.Decode(&doc))
	return doc
}

func TestSubmissionEventContract(t *testing.T) {
	schema := compileSchema(t, "submission_event.schema.json")
	score := 95

	payload := publishOne(t, TopicExerciseSubmissions, "42", &SubmissionEvent{
		StudentID:    1,
		ExerciseID:   5,
		SubmissionID: 42,
		Status:       "passing",
		Score:        &score,
	})

	require.NoError(t, schema.Validate(decodeForSchema(t, payload)))
}

func TestProgressEventContract(t *testing.T) {
	schema := compileSchema(t, "progress_event.schema.json")

	payload := publishOne(t, TopicProgressUpdates, ProgressKey(1, 5), &ProgressEvent{
		StudentID:  1,
		ExerciseID: 5,
		Status:     "in_progress",
		Attempts:   1,
	})

	require.NoError(t, schema.Validate(decodeForSchema(t, payload)))
}

func TestQuizEventContract(t *testing.T) {
	schema := compileSchema(t, "quiz_event.schema.json")
	questionID := uint(3)
	correct := true
	score := 50
	passed := false

	for _, event := range []*QuizEvent{
		{Kind: TypeQuizStarted, StudentID: 1, QuizID: 2, SubmissionID: 9},
		{Kind: TypeQuizAnswerSubmitted, StudentID: 1, QuizID: 2, SubmissionID: 9, QuestionID: &questionID, IsCorrect: &correct},
		{Kind: TypeQuizCompleted, StudentID: 1, QuizID: 2, SubmissionID: 9, Score: &score, Passed: &passed},
	} {
		payload := publishOne(t, TopicQuizEvents, IDKey(event.SubmissionID), event)
		require.NoError(t, schema.Validate(decodeForSchema(t, payload)), event.Kind)
	}
}

func TestQuizEventContractRejectsMissingKind(t *testing.T) {
	schema := compileSchema(t, "quiz_event.schema.json")

	payload := publishOne(t, TopicQuizEvents, "9", &QuizEvent{StudentID: 1, QuizID: 2, SubmissionID: 9})
	require.Error(t, schema.Validate(decodeForSchema(t, payload)))
}
