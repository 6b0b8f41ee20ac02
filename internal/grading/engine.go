package grading

import (
	"sort"
	"strings"
)

// Kind identifies the grading rule applied to a question.
type Kind string

// Question kinds understood by the engine. Anything else grades as
// incorrect with a zero score.
const (
	KindSingle    Kind = "single"
	KindMultiple  Kind = "multiple"
	KindTrueFalse Kind = "true_false"
	KindFill      Kind = "fill"
	KindShort     Kind = "short"
)

// Status reports how a result was produced.
type Status string

const (
	// StatusAuto marks a result decided by the engine.
	StatusAuto Status = "auto"
	// StatusPending marks a result awaiting human adjudication; it scores
	// zero until overridden externally.
	StatusPending Status = "pending"
)

// Question is the grading view of an exam question: identifier, kind,
// canonical answer (one value or an ordered sequence), and point value.
// Immutable for the duration of a grading pass.
type Question struct {
	ID     uint
	Kind   Kind
	Answer []string
	Points float64
}

// Result is the outcome for a single question.
type Result struct {
	QuestionID uint    `json:"question_id"`
	Correct    bool    `json:"correct"`
	Score      float64 `json:"score"`
	Status     Status  `json:"status"`
}

// Grade evaluates one question against the chosen answer values. It never
// fails: malformed or missing input grades as incorrect, and unrecognized
// kinds score zero.
func Grade(q Question, chosen []string) Result {
	result := Result{QuestionID: q.ID, Status: StatusAuto}

	switch q.Kind {
	case KindSingle, KindMultiple:
		result.Correct = joinSorted(chosen) == joinSorted(q.Answer)
	case KindTrueFalse:
		result.Correct = len(chosen) > 0 && len(q.Answer) > 0 &&
			strings.TrimSpace(chosen[0]) == strings.TrimSpace(q.Answer[0])
	case KindFill:
		result.Correct = gradeFill(q.Answer, chosen)
	case KindShort:
		// Free-text answers are adjudicated by a human; they contribute
		// no score until overridden.
		result.Status = StatusPending
		return result
	default:
		return result
	}

	if result.Correct {
		result.Score = q.Points
	}
	return result
}

// gradeFill grades a multi-blank answer: equal part count and positional
// equality of the normalized forms. The fuzzy threshold is deliberately not
// applied here; only normalization tolerance is granted.
func gradeFill(canonical, chosen []string) bool {
	reference := canonical
	if len(reference) == 1 {
		reference = SplitParts(reference[0])
	}
	candidate := []string{}
	if len(chosen) > 0 {
		candidate = SplitParts(chosen[0])
	}
	if len(chosen) > 1 {
		candidate = chosen
	}

	if len(candidate) != len(reference) || len(reference) == 0 {
		return false
	}
	for i := range reference {
		if Normalize(candidate[i]) != Normalize(reference[i]) {
			return false
		}
	}
	return true
}

func joinSorted(values []string) string {
	trimmed := make([]string, 0, len(values))
	for _, value := range values {
		trimmed = append(trimmed, strings.TrimSpace(value))
	}
	sort.Strings(trimmed)
	return strings.Join(trimmed, ",")
}

// GradeSubmission grades every question in order and returns the per-question
// results plus the aggregate score. Questions without a submitted answer are
// graded against an empty choice, never skipped or failed.
func GradeSubmission(questions []Question, answers map[uint][]string) ([]Result, float64) {
	results := make([]Result, 0, len(questions))
	var total float64
	for _, question := range questions {
		result := Grade(question, answers[question.ID])
		results = append(results, result)
		total += result.Score
	}
	return results, total
}
