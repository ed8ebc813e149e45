// Package events delivers domain events to a message broker on a best-effort,
// at-most-once basis. Publishing never blocks and never fails the caller.
package events

import (
	"context"
	"fmt"
	"time"
)

// Topics published by the assessment engine.
const (
	TopicExerciseSubmissions = "exercise-submissions"
	TopicProgressUpdates     = "progress-updates"
	TopicQuizEvents          = "quiz-events"
	TopicChatMessages        = "chat-messages"
	TopicStudentEvents       = "student-events"
)

// Event types carried in the event_type discriminator.
const (
	TypeSubmission          = "submission"
	TypeProgressUpdate      = "progress_update"
	TypeQuizStarted         = "quiz_started"
	TypeQuizAnswerSubmitted = "quiz_answer_submitted"
	TypeQuizCompleted       = "quiz_completed"
	TypeChatMessage         = "chat_message"
	TypeStudentActivity     = "student_activity"
)

// Publisher is the narrow interface services depend on.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event Event)
}

// Event is a payload the notifier can stamp and serialise.
type Event interface {
	Type() string
	stamp(eventType string, at time.Time)
}

// Meta is embedded in every payload and serialised inline.
type Meta struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *Meta) stamp(eventType string, at time.Time) {
	m.EventType = eventType
	m.Timestamp = at
}

// SubmissionEvent is published on TopicExerciseSubmissions.
type SubmissionEvent struct {
	Meta
	StudentID    uint   `json:"student_id"`
	ExerciseID   uint   `json:"exercise_id"`
	SubmissionID uint   `json:"submission_id"`
	Status       string `json:"status"`
	Score        *int   `json:"score,omitempty"`
}

func (SubmissionEvent) Type() string { return TypeSubmission }

// ProgressEvent is published on TopicProgressUpdates.
type ProgressEvent struct {
	Meta
	StudentID  uint   `json:"student_id"`
	ExerciseID uint   `json:"exercise_id"`
	Status     string `json:"status"`
	Score      *int   `json:"score"`
	Attempts   int    `json:"attempts"`
	BestScore  *int   `json:"best_score"`
}

func (ProgressEvent) Type() string { return TypeProgressUpdate }

// QuizEvent is published on TopicQuizEvents for every quiz lifecycle step.
type QuizEvent struct {
	Meta
	Kind         string `json:"-"`
	StudentID    uint   `json:"student_id"`
	QuizID       uint   `json:"quiz_id"`
	SubmissionID uint   `json:"submission_id"`
	QuestionID   *uint  `json:"question_id,omitempty"`
	IsCorrect    *bool  `json:"is_correct,omitempty"`
	Score        *int   `json:"score,omitempty"`
	Passed       *bool  `json:"passed,omitempty"`
}

func (e QuizEvent) Type() string { return e.Kind }

// ChatEvent is published on TopicChatMessages.
type ChatEvent struct {
	Meta
	SessionID string `json:"session_id"`
	StudentID uint   `json:"student_id"`
	MessageID uint   `json:"message_id"`
	Role      string `json:"role"`
	AgentType string `json:"agent_type"`
}

func (ChatEvent) Type() string { return TypeChatMessage }

// StudentEvent is published on TopicStudentEvents.
type StudentEvent struct {
	Meta
	StudentID uint                   `json:"student_id"`
	Activity  string                 `json:"activity"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

func (StudentEvent) Type() string { return TypeStudentActivity }

// ProgressKey builds the partition key for progress updates.
func ProgressKey(studentID, exerciseID uint) string {
	return fmt.Sprintf("%d:%d", studentID, exerciseID)
}

// IDKey renders a numeric identity as a partition key.
func IDKey(id uint) string {
	return fmt.Sprintf("%d", id)
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, string, string, Event) {}
