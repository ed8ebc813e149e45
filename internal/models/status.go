package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStatus indicates a status string outside the closed set of a lifecycle.
var ErrUnknownStatus = errors.New("unknown status")

// SubmissionStatus enumerates the evaluation states of an exercise submission.
type SubmissionStatus string

const (
	// SubmissionStatusDraft is reserved for unsent work; no current flow produces it.
	SubmissionStatusDraft SubmissionStatus = "draft"
	// SubmissionStatusSubmitted marks a provisional submission awaiting evaluation.
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	// SubmissionStatusPassing marks a submission the grader accepted.
	SubmissionStatusPassing SubmissionStatus = "passing"
	// SubmissionStatusFailing marks a submission the grader rejected.
	SubmissionStatusFailing SubmissionStatus = "failing"
)

var submissionTransitions = map[SubmissionStatus][]SubmissionStatus{
	SubmissionStatusDraft:     {SubmissionStatusSubmitted},
	SubmissionStatusSubmitted: {SubmissionStatusPassing, SubmissionStatusFailing},
	SubmissionStatusPassing:   {SubmissionStatusPassing, SubmissionStatusFailing},
	SubmissionStatusFailing:   {SubmissionStatusPassing, SubmissionStatusFailing},
}

// ParseSubmissionStatus validates a submission status string. Matching is exact.
func ParseSubmissionStatus(value string) (SubmissionStatus, error) {
	status := SubmissionStatus(value)
	if _, ok := submissionTransitions[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, value)
	}
	return status, nil
}

// IsTerminal reports whether the status is an evaluation outcome.
func (s SubmissionStatus) IsTerminal() bool {
	return s == SubmissionStatusPassing || s == SubmissionStatusFailing
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s SubmissionStatus) CanTransitionTo(next SubmissionStatus) bool {
	for _, allowed := range submissionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ProgressStatus enumerates a student's standing on one exercise.
type ProgressStatus string

const (
	ProgressStatusNotStarted ProgressStatus = "not_started"
	ProgressStatusInProgress ProgressStatus = "in_progress"
	ProgressStatusCompleted  ProgressStatus = "completed"
	ProgressStatusMastered   ProgressStatus = "mastered"
)

var progressRank = map[ProgressStatus]int{
	ProgressStatusNotStarted: 0,
	ProgressStatusInProgress: 1,
	ProgressStatusCompleted:  2,
	ProgressStatusMastered:   3,
}

// ParseProgressStatus validates a progress status string. Matching is exact.
func ParseProgressStatus(value string) (ProgressStatus, error) {
	status := ProgressStatus(value)
	if _, ok := progressRank[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, value)
	}
	return status, nil
}

// CanTransitionTo reports whether progress may move from s to next.
// Progress only moves forward and never returns to not_started.
func (s ProgressStatus) CanTransitionTo(next ProgressStatus) bool {
	from, ok := progressRank[s]
	if !ok {
		return false
	}
	to, ok := progressRank[next]
	if !ok || next == ProgressStatusNotStarted {
		return false
	}
	return to >= from
}

// IsComplete reports whether the status counts as a finished exercise.
func (s ProgressStatus) IsComplete() bool {
	return s == ProgressStatusCompleted || s == ProgressStatusMastered
}

// CompleteProgressStatuses lists the statuses aggregated as "completed" by analytics.
func CompleteProgressStatuses() []string {
	return []string{string(ProgressStatusCompleted), string(ProgressStatusMastered)}
}

// ProgressStatusForOutcome derives the progress target for an evaluated submission.
// A passing score at or above masteryThreshold counts as mastery; a threshold <= 0 disables mastery.
func ProgressStatusForOutcome(outcome SubmissionStatus, score *int, masteryThreshold int) ProgressStatus {
	switch outcome {
	case SubmissionStatusPassing:
		if masteryThreshold > 0 && score != nil && *score >= masteryThreshold {
			return ProgressStatusMastered
		}
		return ProgressStatusCompleted
	default:
		return ProgressStatusInProgress
	}
}

// QuestionType enumerates the grading rules available for quiz questions.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
	QuestionTypeCode           QuestionType = "code"
)

// ParseQuestionType normalises a question type; an empty value defaults to multiple choice.
func ParseQuestionType(value string) (QuestionType, error) {
	normalized := QuestionType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case "":
		return QuestionTypeMultipleChoice, nil
	case QuestionTypeMultipleChoice, QuestionTypeTrueFalse, QuestionTypeShortAnswer, QuestionTypeCode:
		return normalized, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, value)
	}
}

// QuizSubmissionState is the lifecycle of a quiz attempt.
type QuizSubmissionState string

const (
	QuizSubmissionStarted   QuizSubmissionState = "started"
	QuizSubmissionCompleted QuizSubmissionState = "completed"
)
