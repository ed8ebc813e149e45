package ai

import "context"

// EvaluationInput contains the artefacts needed to grade an exercise submission.
type EvaluationInput struct {
	ExerciseTitle   string
	Description     string
	StarterCode     string
	Language        string
	Code            string
	ExpectedOutput  string
	AdditionalNotes string
}

// EvaluationResult is the structured verdict returned by an evaluator.
type EvaluationResult struct {
	Score    float64                `json:"score"`
	Feedback string                 `json:"feedback"`
	Verdict  string                 `json:"verdict"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Raw      map[string]interface{} `json:"raw,omitempty"`
}

// Passed reports whether the verdict counts as a passing evaluation.
func (r EvaluationResult) Passed(threshold float64) bool {
	return r.Verdict == VerdictPass || r.Score >= threshold
}

// Verdict values the evaluator prompt asks for.
const (
	VerdictPass = "pass"
	VerdictFail = "fail"
)

// Evaluator grades exercise submissions.
type Evaluator interface {
	Evaluate(ctx context.Context, input EvaluationInput) (EvaluationResult, error)
}

// Turn is one message of chat history passed to a Responder.
type Turn struct {
	Role    string
	Content string
}

// Responder produces the assistant reply for a tutoring conversation.
type Responder interface {
	Respond(ctx context.Context, agentType string, history []Turn) (string, error)
}
