package service

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/noah-isme/learnflow-api/internal/models"
)

// GradeAnswer applies the question's grading rule to a submitted answer.
// Choice questions require exact equality with the canonical answer, short answers
// compare case-insensitively after trimming, and code questions are never auto-graded.
func GradeAnswer(question models.QuizQuestion, answer json.RawMessage) bool {
	if len(bytes.TrimSpace(question.CorrectAnswer)) == 0 || len(bytes.TrimSpace(answer)) == 0 {
		return false
	}

	switch question.QuestionType {
	case models.QuestionTypeMultipleChoice, models.QuestionTypeTrueFalse:
		var expected, actual interface{}
		if err := json.Unmarshal(question.CorrectAnswer, &expected); err != nil {
			return false
		}
		if err := json.Unmarshal(answer, &actual); err != nil {
			return false
		}
		return reflect.DeepEqual(expected, actual)
	case models.QuestionTypeShortAnswer:
		return normalizeShortAnswer(question.CorrectAnswer) == normalizeShortAnswer(answer)
	default:
		return false
	}
}

// PointsFor returns the points awarded for a graded answer.
func PointsFor(question models.QuizQuestion, correct bool) int {
	if !correct || question.Points < 0 {
		return 0
	}
	return question.Points
}

// ScoreQuiz converts earned points into a 0-100 score, floored.
// A quiz with no achievable points scores zero.
func ScoreQuiz(earned, max int) int {
	if max <= 0 {
		max = 1
	}
	if earned < 0 {
		earned = 0
	}
	score := earned * 100 / max
	if score > 100 {
		score = 100
	}
	return score
}

// MaxPoints sums the points of every question in a quiz, answered or not.
func MaxPoints(questions []models.QuizQuestion) int {
	total := 0
	for _, question := range questions {
		if question.Points > 0 {
			total += question.Points
		}
	}
	return total
}

func normalizeShortAnswer(raw []byte) string {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = string(raw)
	}
	return strings.ToLower(strings.TrimSpace(text))
}
