package dto

import (
	"encoding/json"
	"time"

	"github.com/mingke-lab/exam-go-api/internal/models"
)

// QuestionCreateRequest describes the payload for adding a question to a paper.
type QuestionCreateRequest struct {
	PaperID  uint     `json:"paper_id" validate:"required,gt=0"`
	Kind     string   `json:"kind" validate:"required,oneof=single multiple true_false fill short"`
	Prompt   string   `json:"prompt" validate:"required,min=1"`
	Options  []string `json:"options" validate:"omitempty,dive,min=1"`
	Answer   []string `json:"answer" validate:"required,min=1,dive"`
	Points   float64  `json:"points" validate:"omitempty,gt=0"`
	Position int      `json:"position" validate:"omitempty,gte=0"`
	ImageURL string   `json:"image_url" validate:"omitempty,url"`
}

// QuestionUpdateRequest captures partial updates for a question.
type QuestionUpdateRequest struct {
	Prompt   *string  `json:"prompt" validate:"omitempty,min=1"`
	Options  []string `json:"options" validate:"omitempty,dive,min=1"`
	Answer   []string `json:"answer" validate:"omitempty,min=1,dive"`
	Points   *float64 `json:"points" validate:"omitempty,gt=0"`
	Position *int     `json:"position" validate:"omitempty,gte=0"`
	ImageURL *string  `json:"image_url" validate:"omitempty,url"`
}

// QuestionResponse is the student-safe view of a question: the canonical
// answer is never serialized.
type QuestionResponse struct {
	ID        uint      `json:"id"`
	PaperID   uint      `json:"paper_id"`
	Kind      string    `json:"kind"`
	Prompt    string    `json:"prompt"`
	Options   []string  `json:"options,omitempty"`
	Points    float64   `json:"points"`
	Position  int       `json:"position"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewQuestionResponse converts a Question model into a DTO.
func NewQuestionResponse(model models.Question) QuestionResponse {
	response := QuestionResponse{
		ID:        model.ID,
		PaperID:   model.PaperID,
		Kind:      model.Kind,
		Prompt:    model.Prompt,
		Points:    model.Points,
		Position:  model.Position,
		ImageURL:  model.ImageURL,
		CreatedAt: model.CreatedAt,
	}

	if len(model.Options) > 0 {
		var options []string
		if err := json.Unmarshal(model.Options, &options); err == nil {
			response.Options = options
		}
	}

	return response
}

// NewQuestionResponseSlice converts question models into DTOs.
func NewQuestionResponseSlice(questions []models.Question) []QuestionResponse {
	responses := make([]QuestionResponse, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, NewQuestionResponse(question))
	}

	return responses
}
