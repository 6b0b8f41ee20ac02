package dto

// ReviewSuggestionResponse carries an AI-suggested grade for a pending
// short answer. The suggestion is advisory; the reviewer submits the final
// score separately.
type ReviewSuggestionResponse struct {
	SubmissionID   uint    `json:"submission_id"`
	QuestionID     uint    `json:"question_id"`
	SuggestedScore float64 `json:"suggested_score"`
	MaxPoints      float64 `json:"max_points"`
	Verdict        string  `json:"verdict"`
	Feedback       string  `json:"feedback"`
}
