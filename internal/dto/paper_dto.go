package dto

import (
	"time"

	"github.com/mingke-lab/exam-go-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// PaperCreateRequest describes the payload for creating a paper.
type PaperCreateRequest struct {
	Title    string `json:"title" validate:"required,min=1,max=255"`
	Subject  string `json:"subject" validate:"omitempty,max=128"`
	Duration int    `json:"duration_minutes" validate:"omitempty,gt=0,lte=600"`
}

// PaperUpdateRequest captures partial updates for a paper.
type PaperUpdateRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=255"`
	Subject  *string `json:"subject" validate:"omitempty,max=128"`
	Duration *int    `json:"duration_minutes" validate:"omitempty,gt=0,lte=600"`
	Status   *string `json:"status" validate:"omitempty,oneof=draft published closed"`
}

// PaperFilter describes query string filters for listing papers.
type PaperFilter struct {
	Subject *string `query:"subject"`
	Status  *string `query:"status" validate:"omitempty,oneof=draft published closed"`
}

// PaperResponse is returned to API clients when viewing papers.
type PaperResponse struct {
	ID          uint               `json:"id"`
	Title       string             `json:"title"`
	Subject     string             `json:"subject"`
	Status      string             `json:"status"`
	Duration    int                `json:"duration_minutes"`
	TotalPoints float64            `json:"total_points"`
	Questions   []QuestionResponse `json:"questions,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NewPaperResponse converts a Paper model into a DTO.
func NewPaperResponse(model models.Paper) PaperResponse {
	response := PaperResponse{
		ID:          model.ID,
		Title:       model.Title,
		Subject:     model.Subject,
		Status:      model.Status,
		Duration:    model.Duration,
		TotalPoints: model.TotalPoints,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}

	if len(model.Questions) > 0 {
		response.Questions = NewQuestionResponseSlice(model.Questions)
	}

	return response
}

// NewPaperResponseSlice converts paper models into DTOs.
func NewPaperResponseSlice(papers []models.Paper) []PaperResponse {
	responses := make([]PaperResponse, 0, len(papers))
	for _, paper := range papers {
		responses = append(responses, NewPaperResponse(paper))
	}

	return responses
}
