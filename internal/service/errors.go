package service

import "errors"

// ErrForbidden indicates the caller may not act on the requested resource.
var ErrForbidden = errors.New("forbidden")

var (
	// ErrStudentNotFound indicates the referenced student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrExerciseNotFound indicates the referenced exercise does not exist.
	ErrExerciseNotFound = errors.New("exercise not found")
	// ErrSubmissionNotFound indicates the exercise submission does not exist.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrInvalidSubmissionTransition indicates the requested status change is not allowed.
	ErrInvalidSubmissionTransition = errors.New("invalid submission status transition")
	// ErrInvalidProgressTransition indicates an explicit progress change would move backwards.
	ErrInvalidProgressTransition = errors.New("invalid progress status transition")
	// ErrProgressNotFound indicates no rollup exists for the (student, exercise) pair.
	ErrProgressNotFound = errors.New("progress not found")
	// ErrEvaluatorUnavailable indicates automatic grading is not configured.
	ErrEvaluatorUnavailable = errors.New("automatic evaluation is not configured")
)

var (
	// ErrQuizNotFound indicates the referenced quiz does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates the question does not exist within the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuizSubmissionNotFound indicates the quiz attempt does not exist within the quiz.
	ErrQuizSubmissionNotFound = errors.New("quiz submission not found")
	// ErrQuizAlreadyCompleted indicates the attempt has been scored and is closed.
	ErrQuizAlreadyCompleted = errors.New("quiz submission already completed")
	// ErrQuizAttemptOpen indicates the student already has an unfinished attempt.
	ErrQuizAttemptOpen = errors.New("an open attempt already exists for this quiz")
)

var (
	// ErrChatSessionNotFound indicates the chat session does not exist.
	ErrChatSessionNotFound = errors.New("chat session not found")
	// ErrChatSessionClosed indicates the session has ended and accepts no messages.
	ErrChatSessionClosed = errors.New("chat session has ended")
)

// ErrInvalidAnswer indicates the answer payload is not a JSON value.
var ErrInvalidAnswer = errors.New("answer must be a JSON value")
