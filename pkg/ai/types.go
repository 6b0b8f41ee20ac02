package ai

import "context"

// ReviewInput contains the artefacts needed to suggest a grade for a
// short-answer question.
type ReviewInput struct {
	QuestionPrompt  string
	ReferenceAnswer string
	StudentAnswer   string
	MaxPoints       float64
	AdditionalNotes string
}

// ReviewResult is the structured suggestion returned by the AI reviewer.
// Score is a fraction in [0, 1] of the question's points; the final grade
// stays with the human reviewer.
type ReviewResult struct {
	Score    float64                `json:"score"`
	Verdict  string                 `json:"verdict"`
	Feedback string                 `json:"feedback"`
	Raw      map[string]interface{} `json:"raw,omitempty"`
}

// Reviewer describes an AI model capable of suggesting short-answer grades.
type Reviewer interface {
	Review(ctx context.Context, input ReviewInput) (ReviewResult, error)
}
