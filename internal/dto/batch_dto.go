package dto

import "github.com/mingke-lab/exam-go-api/internal/async"

// BatchDeleteStudentsRequest lists the students to archive in one operation.
type BatchDeleteStudentsRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
}

// QuestionImportRow is one question in a bulk import payload. Rows are also
// validated against the import JSON schema before any insert happens.
type QuestionImportRow struct {
	PaperID  uint     `json:"paper_id"`
	Kind     string   `json:"kind"`
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options,omitempty"`
	Answer   []string `json:"answer"`
	Points   float64  `json:"points"`
	Position int      `json:"position"`
}

// BatchImportQuestionsRequest carries the rows for a bulk question import.
type BatchImportQuestionsRequest struct {
	Rows []QuestionImportRow `json:"rows" validate:"required,min=1,max=1000"`
}

// BatchFailureResponse serializes one failed batch item.
type BatchFailureResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// BatchOutcomeResponse summarizes a bulk operation for API clients.
type BatchOutcomeResponse struct {
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
	Failures  []BatchFailureResponse `json:"failures,omitempty"`
	Summary   string                 `json:"summary"`
}

// NewBatchOutcomeResponse converts an async.BatchResult into a DTO.
func NewBatchOutcomeResponse(result async.BatchResult) BatchOutcomeResponse {
	response := BatchOutcomeResponse{
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Summary:   result.Summary(3),
	}
	for _, failure := range result.Failures {
		response.Failures = append(response.Failures, BatchFailureResponse(failure))
	}

	return response
}

// BatchProgressEvent is streamed to websocket subscribers while a bulk
// operation runs.
type BatchProgressEvent struct {
	Operation string `json:"operation"`
	Done      int    `json:"done"`
	Total     int    `json:"total"`
	ItemID    string `json:"item_id"`
	Error     string `json:"error,omitempty"`
}
